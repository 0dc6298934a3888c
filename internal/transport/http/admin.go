package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/cimillas/giftlink/internal/app"
	"github.com/cimillas/giftlink/internal/domain"
	"github.com/go-chi/chi/v5"
)

// AdminService is the operator surface the admin routes need.
type AdminService interface {
	SessionValidator
	Login(ctx context.Context, password string) (string, error)
	ListOrders(ctx context.Context, in app.ListOrdersInput) (app.OrderPage, error)
	GetOrder(ctx context.Context, orderID string) (app.OrderDetail, error)
	RetryFulfillment(ctx context.Context, orderID string) (app.FulfillmentResult, error)
	ResendNotification(ctx context.Context, orderID string) (string, error)
	CancelOrder(ctx context.Context, orderID string) (domain.GiftOrder, error)
}

// SessionCookie controls the cookie set on login.
type SessionCookie struct {
	MaxAge time.Duration
	Secure bool
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Success   bool   `json:"success"`
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// HandleAdminLogin returns an HTTP handler that exchanges the operator password
// for a session, set both as a cookie and in the body.
func HandleAdminLogin(svc AdminService, cookie SessionCookie) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		token, err := svc.Login(r.Context(), req.Password)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookieName,
			Value:    token,
			Path:     "/",
			MaxAge:   int(cookie.MaxAge / time.Second),
			HttpOnly: true,
			Secure:   cookie.Secure,
			SameSite: http.SameSiteLaxMode,
		})
		writeJSON(w, http.StatusOK, loginResponse{Success: true, Token: token, ExpiresIn: int(cookie.MaxAge / time.Second)})
	}
}

type adminOrderResponse struct {
	ID                    string     `json:"id"`
	Status                string     `json:"status"`
	SenderName            string     `json:"sender_name"`
	SenderEmail           string     `json:"sender_email"`
	RecipientName         string     `json:"recipient_name"`
	RecipientEmail        string     `json:"recipient_email"`
	AmountType            string     `json:"amount_type"`
	AmountFixed           *int64     `json:"amount_fixed,omitempty"`
	AmountMin             *int64     `json:"amount_min,omitempty"`
	AmountMax             *int64     `json:"amount_max,omitempty"`
	Currency              string     `json:"currency"`
	Message               string     `json:"message"`
	ClaimTokenLast4       *string    `json:"claim_token_last4,omitempty"`
	ClaimExpiresAt        *time.Time `json:"claim_expires_at,omitempty"`
	ClaimedAt             *time.Time `json:"claimed_at,omitempty"`
	SelectedItemID        *string    `json:"selected_item_id,omitempty"`
	FulfillmentProvider   *string    `json:"fulfillment_provider,omitempty"`
	FulfillmentExternalID *string    `json:"fulfillment_external_id,omitempty"`
	PaymentReference      *string    `json:"payment_reference,omitempty"`
	RemainderCents        *int64     `json:"remainder_cents,omitempty"`
	RemainderAction       *string    `json:"remainder_action,omitempty"`
	RemainderFulfilled    bool       `json:"remainder_fulfilled"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

func toAdminOrder(o domain.GiftOrder) adminOrderResponse {
	resp := adminOrderResponse{
		ID:                    o.ID,
		Status:                string(o.Status),
		SenderName:            o.SenderName,
		SenderEmail:           o.SenderEmail,
		RecipientName:         o.RecipientName,
		RecipientEmail:        o.RecipientEmail,
		AmountType:            string(o.AmountType),
		AmountFixed:           o.AmountFixed,
		AmountMin:             o.AmountMin,
		AmountMax:             o.AmountMax,
		Currency:              o.Currency,
		Message:               o.Message,
		ClaimTokenLast4:       o.ClaimTokenLast4,
		ClaimExpiresAt:        o.ClaimExpiresAt,
		ClaimedAt:             o.ClaimedAt,
		SelectedItemID:        o.SelectedItemID,
		FulfillmentProvider:   o.FulfillmentProvider,
		FulfillmentExternalID: o.FulfillmentExternalID,
		PaymentReference:      o.PaymentReference,
		RemainderCents:        o.RemainderCents,
		RemainderFulfilled:    o.RemainderFulfilled,
		CreatedAt:             o.CreatedAt,
		UpdatedAt:             o.UpdatedAt,
	}
	if o.RemainderAction != nil {
		a := string(*o.RemainderAction)
		resp.RemainderAction = &a
	}
	return resp
}

type orderListResponse struct {
	Orders     []adminOrderResponse `json:"orders"`
	Page       int                  `json:"page"`
	PerPage    int                  `json:"per_page"`
	Total      int                  `json:"total"`
	TotalPages int                  `json:"total_pages"`
}

// HandleAdminOrders returns an HTTP handler listing orders with ?search=&status=&page=.
func HandleAdminOrders(svc AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := 1
		if raw := q.Get("page"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				writeServiceError(w, domain.ValidationErrors{{Field: "page", Message: "Page must be a positive integer"}})
				return
			}
			page = n
		}

		res, err := svc.ListOrders(r.Context(), app.ListOrdersInput{
			Search: q.Get("search"),
			Status: q.Get("status"),
			Page:   page,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		orders := make([]adminOrderResponse, 0, len(res.Orders))
		for _, o := range res.Orders {
			orders = append(orders, toAdminOrder(o))
		}
		writeJSON(w, http.StatusOK, orderListResponse{
			Orders:     orders,
			Page:       res.Page,
			PerPage:    res.PerPage,
			Total:      res.Total,
			TotalPages: res.TotalPages,
		})
	}
}

type auditEventResponse struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type outboxEmailResponse struct {
	ID        string     `json:"id"`
	To        string     `json:"to"`
	Subject   string     `json:"subject"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}

type orderDetailResponse struct {
	Order  adminOrderResponse    `json:"order"`
	Item   *catalogItemResponse  `json:"item,omitempty"`
	Events []auditEventResponse  `json:"events"`
	Emails []outboxEmailResponse `json:"emails"`
}

// HandleAdminOrder returns an HTTP handler for one order with its audit trail and outbox.
func HandleAdminOrder(svc AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		detail, err := svc.GetOrder(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := orderDetailResponse{
			Order:  toAdminOrder(detail.Order),
			Events: make([]auditEventResponse, 0, len(detail.Events)),
			Emails: make([]outboxEmailResponse, 0, len(detail.Emails)),
		}
		if it := detail.Item; it != nil {
			resp.Item = &catalogItemResponse{
				ID:          it.ID,
				Title:       it.Title,
				Description: it.Description,
				PriceCents:  it.PriceCents,
				Currency:    it.Currency,
				Category:    it.Category,
				ImageURL:    it.ImageURL,
			}
		}
		for _, e := range detail.Events {
			resp.Events = append(resp.Events, auditEventResponse{
				ID: e.ID, Type: string(e.Type), Message: e.Message, Metadata: e.Metadata, CreatedAt: e.CreatedAt,
			})
		}
		for _, e := range detail.Emails {
			resp.Emails = append(resp.Emails, outboxEmailResponse{
				ID: e.ID, To: e.To, Subject: e.Subject, Status: string(e.Status), CreatedAt: e.CreatedAt, SentAt: e.SentAt,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleRetryFulfillment returns an HTTP handler that re-runs fulfillment and reports the outcome.
func HandleRetryFulfillment(svc AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.RetryFulfillment(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":     true,
			"provider":    res.Provider,
			"external_id": res.ExternalID,
		})
	}
}

// HandleResendNotification returns an HTTP handler that rotates the claim link and mails it again.
func HandleResendNotification(svc AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		link, err := svc.ResendNotification(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "claim_url": link})
	}
}

// HandleCancelOrder returns an HTTP handler that cancels an unclaimed order.
func HandleCancelOrder(svc AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := svc.CancelOrder(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAdminOrder(order))
	}
}
