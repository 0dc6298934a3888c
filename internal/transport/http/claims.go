package http

import (
	"context"
	"net/http"
	"time"

	"github.com/cimillas/giftlink/internal/app"
	"github.com/cimillas/giftlink/internal/domain"
	"github.com/go-chi/chi/v5"
)

// ClaimPreviewer resolves a claim link for display.
type ClaimPreviewer interface {
	ClaimPreview(ctx context.Context, rawToken string) (app.ClaimPreview, error)
}

// Claimer redeems a claim link.
type Claimer interface {
	Claim(ctx context.Context, in app.ClaimInput) (app.ClaimResult, error)
}

// RemainderProcessor settles the unspent budget of a claimed order.
type RemainderProcessor interface {
	FulfillRemainder(ctx context.Context, orderID string, action domain.RemainderAction) error
}

type catalogItemResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	Currency    string `json:"currency"`
	Category    string `json:"category"`
	ImageURL    string `json:"image_url,omitempty"`
	BestMatch   bool   `json:"best_match"`
}

type claimPreviewResponse struct {
	OrderID        string                `json:"order_id"`
	Status         string                `json:"status"`
	SenderName     string                `json:"sender_name"`
	RecipientName  string                `json:"recipient_name"`
	Message        string                `json:"message"`
	Occasion       *string               `json:"occasion,omitempty"`
	CardTemplateID string                `json:"card_template_id"`
	Currency       string                `json:"currency"`
	FloorCents     int64                 `json:"floor_cents"`
	CeilingCents   int64                 `json:"ceiling_cents"`
	ExpiresAt      *time.Time            `json:"expires_at,omitempty"`
	Items          []catalogItemResponse `json:"items"`
}

// HandleClaimPreview returns an HTTP handler for the claim page data.
func HandleClaimPreview(svc ClaimPreviewer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		preview, err := svc.ClaimPreview(r.Context(), chi.URLParam(r, "token"))
		if err != nil {
			writeServiceError(w, err)
			return
		}

		items := make([]catalogItemResponse, 0, len(preview.Items))
		for _, it := range preview.Items {
			items = append(items, catalogItemResponse{
				ID:          it.ID,
				Title:       it.Title,
				Description: it.Description,
				PriceCents:  it.PriceCents,
				Currency:    it.Currency,
				Category:    it.Category,
				ImageURL:    it.ImageURL,
				BestMatch:   it.BestMatch,
			})
		}
		writeJSON(w, http.StatusOK, claimPreviewResponse{
			OrderID:        preview.OrderID,
			Status:         string(preview.Status),
			SenderName:     preview.SenderName,
			RecipientName:  preview.RecipientName,
			Message:        preview.Message,
			Occasion:       preview.Occasion,
			CardTemplateID: preview.CardTemplateID,
			Currency:       preview.Currency,
			FloorCents:     preview.FloorCents,
			CeilingCents:   preview.CeilingCents,
			ExpiresAt:      preview.ExpiresAt,
			Items:          items,
		})
	}
}

type claimRequest struct {
	Token  string `json:"token"`
	ItemID string `json:"item_id"`
}

type claimResponse struct {
	Success        bool   `json:"success"`
	OrderID        string `json:"order_id"`
	ItemTitle      string `json:"item_title"`
	PriceCents     int64  `json:"price_cents"`
	RemainderCents int64  `json:"remainder_cents"`
}

// HandleClaim returns an HTTP handler for redeeming a gift. The response only
// confirms the claim; fulfillment continues in the background.
func HandleClaim(svc Claimer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req claimRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		res, err := svc.Claim(r.Context(), app.ClaimInput{Token: req.Token, ItemID: req.ItemID})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, claimResponse{
			Success:        true,
			OrderID:        res.OrderID,
			ItemTitle:      res.Item.Title,
			PriceCents:     res.Item.PriceCents,
			RemainderCents: res.RemainderCents,
		})
	}
}

type remainderRequest struct {
	OrderID string `json:"order_id"`
	Action  string `json:"action"`
}

// HandleRemainder returns an HTTP handler for settling a claim remainder.
func HandleRemainder(svc RemainderProcessor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req remainderRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.OrderID == "" {
			writeServiceError(w, domain.ValidationErrors{{Field: "order_id", Message: "Order id is required"}})
			return
		}

		action := domain.RemainderAction(req.Action)
		if err := svc.FulfillRemainder(r.Context(), req.OrderID, action); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "action": string(action)})
	}
}
