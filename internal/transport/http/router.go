package http

import (
	"log/slog"
	"net/http"

	"github.com/cimillas/giftlink/internal/clock"
	"github.com/cimillas/giftlink/internal/payments"
	"github.com/cimillas/giftlink/internal/ratelimit"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// GiftService is what the public gift routes need.
type GiftService interface {
	GiftCreator
	OrderStatusReader
	ClaimPreviewer
	PaymentConfirmer
}

// Deps wires the router. Limiter, Recorder and Pingers are optional.
type Deps struct {
	Gifts     GiftService
	Claims    Claimer
	Remainder RemainderProcessor
	Admin     AdminService
	Verifier  *payments.Verifier

	Limiter  ratelimit.Checker
	Recorder RejectionRecorder
	Pingers  []Pinger

	CORSOrigins []string
	Cookie      SessionCookie
	Clock       clock.Clock
	Logger      *slog.Logger
}

// NewRouter builds the HTTP handler for the whole API.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := d.Clock
	if clk == nil {
		clk = clock.NewSystem()
	}
	limiter := d.Limiter
	if limiter == nil {
		limiter = ratelimit.New(clk)
	}
	limit := func(scope string, p ratelimit.Policy) func(http.Handler) http.Handler {
		return RateLimit(limiter, scope, p, clk, d.Recorder, logger)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(func(next http.Handler) http.Handler { return RequestLogger(next, logger) })
	r.Use(middleware.Recoverer)
	r.NotFound(NotFoundHandler().ServeHTTP)
	r.MethodNotAllowed(MethodNotAllowedHandler().ServeHTTP)

	r.Get("/health", HandleHealth(d.Pingers...))

	r.Post("/gifts", HandleCreateGift(d.Gifts))
	r.Get("/orders/{id}/status", HandleOrderStatus(d.Gifts))
	r.Post("/webhooks/payments", HandlePaymentWebhook(d.Verifier, d.Gifts, clk, logger))

	r.Route("/claims", func(r chi.Router) {
		r.Post("/remainder", HandleRemainder(d.Remainder))
		r.With(limit("claim", ratelimit.ClaimPolicy)).Get("/{token}", HandleClaimPreview(d.Gifts))
		r.With(limit("claim", ratelimit.ClaimPolicy)).Post("/", HandleClaim(d.Claims))
	})

	r.Route("/admin", func(r chi.Router) {
		r.With(limit("login", ratelimit.LoginPolicy)).Post("/login", HandleAdminLogin(d.Admin, d.Cookie))

		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin(d.Admin))
			r.Get("/orders", HandleAdminOrders(d.Admin))
			r.Get("/orders/{id}", HandleAdminOrder(d.Admin))
			r.Post("/orders/{id}/retry-fulfillment", HandleRetryFulfillment(d.Admin))
			r.Post("/orders/{id}/resend-notification", HandleResendNotification(d.Admin))
			r.Post("/orders/{id}/cancel", HandleCancelOrder(d.Admin))
		})
	})

	return CORS(d.CORSOrigins, r)
}
