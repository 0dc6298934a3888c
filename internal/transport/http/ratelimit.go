package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cimillas/giftlink/internal/clock"
	"github.com/cimillas/giftlink/internal/ratelimit"
)

const headerRateLimitRemaining = "X-RateLimit-Remaining"

// RejectionRecorder counts requests turned away by RateLimit.
type RejectionRecorder interface {
	RateLimited(ctx context.Context, scope string)
}

// RateLimit admits at most p.Max requests per client and window for scope.
// A failing counter store lets the request through and logs the error.
func RateLimit(checker ratelimit.Checker, scope string, p ratelimit.Policy, clk clock.Clock, recorder RejectionRecorder, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := scope + ":" + ClientIP(r)
			res, err := checker.Check(r.Context(), key, p)
			if err != nil {
				logger.ErrorContext(r.Context(), "rate limit check failed", "scope", scope, "err", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set(headerRateLimitRemaining, strconv.Itoa(res.Remaining))
			if !res.Allowed {
				if recorder != nil {
					recorder.RateLimited(r.Context(), scope)
				}
				retry := res.ResetAt.Sub(clk.Now())
				if retry < time.Second {
					retry = time.Second
				}
				w.Header().Set("Retry-After", strconv.Itoa(int(retry.Round(time.Second)/time.Second)))
				writeError(w, http.StatusTooManyRequests, codeRateLimited, "too many requests, please try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP picks the first X-Forwarded-For hop, then X-Real-IP, then the peer address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
