package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/cimillas/giftlink/internal/app"
	"github.com/cimillas/giftlink/internal/clock"
	"github.com/cimillas/giftlink/internal/payments"
)

// PaymentConfirmer activates paid orders.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, in app.ConfirmPaymentInput) (bool, error)
}

// HandlePaymentWebhook returns an HTTP handler for gateway events. Anything
// after a valid signature is acknowledged with 200 so the gateway does not
// retry; processing problems are only logged.
func HandlePaymentWebhook(verifier *payments.Verifier, svc PaymentConfirmer, clk clock.Clock, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		event, err := verifier.ConstructEvent(payload, r.Header.Get(payments.SignatureHeader), clk.Now())
		if err != nil {
			logger.WarnContext(r.Context(), "webhook signature rejected", "err", err)
			writeError(w, http.StatusBadRequest, codeInvalidSignature, "invalid signature")
			return
		}

		if event.Type == payments.EventCheckoutCompleted {
			session := event.Data.Object
			orderID := session.OrderID()
			if orderID == "" {
				logger.WarnContext(r.Context(), "checkout event without order id", "event_id", event.ID)
			} else {
				activated, err := svc.ConfirmPayment(r.Context(), app.ConfirmPaymentInput{
					OrderID:           orderID,
					PaymentReference:  session.PaymentIntent,
					CheckoutSessionID: session.ID,
				})
				if err != nil {
					logger.ErrorContext(r.Context(), "webhook processing failed", "event_id", event.ID, "order_id", orderID, "err", err)
				} else {
					logger.InfoContext(r.Context(), "webhook processed", "event_id", event.ID, "order_id", orderID, "activated", activated)
				}
			}
		}

		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
	}
}
