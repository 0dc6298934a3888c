package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequireAdmin(t *testing.T) {
	t.Parallel()

	guard := RequireAdmin(&fakeAdmin{validToken: "good-token"})(teapot())

	cases := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{"no credentials", func(*http.Request) {}, http.StatusUnauthorized},
		{"valid cookie", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "good-token"})
		}, http.StatusTeapot},
		{"valid bearer", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer good-token")
		}, http.StatusTeapot},
		{"lowercase scheme", func(r *http.Request) {
			r.Header.Set("Authorization", "bearer good-token")
		}, http.StatusTeapot},
		{"wrong token", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer forged")
		}, http.StatusUnauthorized},
		{"basic auth", func(r *http.Request) {
			r.Header.Set("Authorization", "Basic Z29vZC10b2tlbg==")
		}, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
			tc.setup(req)
			rec := serve(guard, req)

			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusUnauthorized {
				assert.Equal(t, codeUnauthorized, decodeBody[errorResponse](t, rec).Code)
			}
		})
	}
}
