package http

import (
	"context"
	"net/http"
	"time"

	"github.com/cimillas/giftlink/internal/app"
	"github.com/cimillas/giftlink/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// GiftCreator is the minimal interface needed to create gifts.
type GiftCreator interface {
	CreateGift(ctx context.Context, in app.CreateGiftInput) (app.CreateGiftResult, error)
}

// OrderStatusReader is the minimal interface needed for the public status lookup.
type OrderStatusReader interface {
	OrderStatus(ctx context.Context, orderID string) (domain.GiftOrder, error)
}

type createGiftRequest struct {
	SenderName      string           `json:"sender_name"`
	SenderEmail     string           `json:"sender_email"`
	RecipientName   string           `json:"recipient_name"`
	RecipientEmail  string           `json:"recipient_email"`
	RecipientPhone  string           `json:"recipient_phone"`
	AmountType      string           `json:"amount_type"`
	AmountFixed     *decimal.Decimal `json:"amount_fixed"`
	AmountMin       *decimal.Decimal `json:"amount_min"`
	AmountMax       *decimal.Decimal `json:"amount_max"`
	Occasion        string           `json:"occasion"`
	Message         string           `json:"message"`
	CardTemplateID  string           `json:"card_template_id"`
	NotifyRecipient bool             `json:"notify_recipient"`
	ExpirationDays  int              `json:"expiration_days"`
}

type createGiftResponse struct {
	OrderID     string `json:"order_id"`
	Status      string `json:"status"`
	ChargeCents int64  `json:"charge_cents"`
	Currency    string `json:"currency"`
	ClaimURL    string `json:"claim_url,omitempty"`
}

// HandleCreateGift returns an HTTP handler for creating gift orders.
func HandleCreateGift(svc GiftCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createGiftRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		res, err := svc.CreateGift(r.Context(), app.CreateGiftInput{
			SenderName:      req.SenderName,
			SenderEmail:     req.SenderEmail,
			RecipientName:   req.RecipientName,
			RecipientEmail:  req.RecipientEmail,
			RecipientPhone:  req.RecipientPhone,
			AmountType:      domain.AmountType(req.AmountType),
			AmountFixed:     req.AmountFixed,
			AmountMin:       req.AmountMin,
			AmountMax:       req.AmountMax,
			Occasion:        req.Occasion,
			Message:         req.Message,
			CardTemplateID:  req.CardTemplateID,
			NotifyRecipient: req.NotifyRecipient,
			ExpirationDays:  req.ExpirationDays,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, createGiftResponse{
			OrderID:     res.Order.ID,
			Status:      string(res.Order.Status),
			ChargeCents: res.ChargeCents,
			Currency:    res.Order.Currency,
			ClaimURL:    res.ClaimURL,
		})
	}
}

type orderStatusResponse struct {
	ID             string     `json:"id"`
	Status         string     `json:"status"`
	SenderName     string     `json:"sender_name"`
	RecipientName  string     `json:"recipient_name"`
	AmountType     string     `json:"amount_type"`
	AmountFixed    *int64     `json:"amount_fixed,omitempty"`
	AmountMin      *int64     `json:"amount_min,omitempty"`
	AmountMax      *int64     `json:"amount_max,omitempty"`
	Currency       string     `json:"currency"`
	ClaimExpiresAt *time.Time `json:"claim_expires_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// HandleOrderStatus returns an HTTP handler for the public order status lookup.
// It never exposes contact details or claim credentials.
func HandleOrderStatus(svc OrderStatusReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := svc.OrderStatus(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, orderStatusResponse{
			ID:             order.ID,
			Status:         string(order.Status),
			SenderName:     order.SenderName,
			RecipientName:  order.RecipientName,
			AmountType:     string(order.AmountType),
			AmountFixed:    order.AmountFixed,
			AmountMin:      order.AmountMin,
			AmountMax:      order.AmountMax,
			Currency:       order.Currency,
			ClaimExpiresAt: order.ClaimExpiresAt,
			CreatedAt:      order.CreatedAt,
		})
	}
}
