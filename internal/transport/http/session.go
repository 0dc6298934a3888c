package http

import (
	"net/http"
	"strings"

	"github.com/cimillas/giftlink/internal/session"
)

const sessionCookieName = session.CookieName

// SessionValidator checks an operator session token.
type SessionValidator interface {
	ValidateSession(token string) bool
}

// RequireAdmin rejects requests without a valid session from the cookie or a bearer token.
func RequireAdmin(v SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessionToken(r)
			if token == "" || !v.ValidateSession(token) {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	auth := r.Header.Get("Authorization")
	if scheme, token, ok := strings.Cut(auth, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}
