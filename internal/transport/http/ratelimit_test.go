package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cimillas/giftlink/internal/clock"
	"github.com/cimillas/giftlink/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rlNow = time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)

type recordingRecorder struct {
	mu     sync.Mutex
	scopes []string
}

func (r *recordingRecorder) RateLimited(_ context.Context, scope string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scopes = append(r.scopes, scope)
}

type failingChecker struct{}

func (failingChecker) Check(context.Context, string, ratelimit.Policy) (ratelimit.Result, error) {
	return ratelimit.Result{}, errors.New("redis: connection refused")
}

func TestRateLimit_RejectsOverBudget(t *testing.T) {
	t.Parallel()

	clk := clock.NewFixed(rlNow)
	rec := &recordingRecorder{}
	p := ratelimit.Policy{Max: 2, Window: 30 * time.Second}
	h := RateLimit(ratelimit.New(clk), "claim", p, clk, rec, discardLogger())(teapot())

	newReq := func(ip string) *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/claims", nil)
		r.RemoteAddr = ip + ":5555"
		return r
	}

	first := serve(h, newReq("203.0.113.7"))
	assert.Equal(t, http.StatusTeapot, first.Code)
	assert.Equal(t, "1", first.Header().Get(headerRateLimitRemaining))

	second := serve(h, newReq("203.0.113.7"))
	assert.Equal(t, http.StatusTeapot, second.Code)
	assert.Equal(t, "0", second.Header().Get(headerRateLimitRemaining))

	third := serve(h, newReq("203.0.113.7"))
	require.Equal(t, http.StatusTooManyRequests, third.Code)
	assert.Equal(t, "0", third.Header().Get(headerRateLimitRemaining))
	assert.Equal(t, "30", third.Header().Get("Retry-After"))
	assert.Equal(t, codeRateLimited, decodeBody[errorResponse](t, third).Code)
	assert.Equal(t, []string{"claim"}, rec.scopes)

	other := serve(h, newReq("198.51.100.1"))
	assert.Equal(t, http.StatusTeapot, other.Code)
}

func TestRateLimit_ScopesAreIndependent(t *testing.T) {
	t.Parallel()

	clk := clock.NewFixed(rlNow)
	limiter := ratelimit.New(clk)
	p := ratelimit.Policy{Max: 1, Window: time.Minute}
	claim := RateLimit(limiter, "claim", p, clk, nil, discardLogger())(teapot())
	login := RateLimit(limiter, "login", p, clk, nil, discardLogger())(teapot())

	req := func() *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.RemoteAddr = "203.0.113.7:1"
		return r
	}
	assert.Equal(t, http.StatusTeapot, serve(claim, req()).Code)
	assert.Equal(t, http.StatusTeapot, serve(login, req()).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(claim, req()).Code)
}

func TestRateLimit_FailsOpen(t *testing.T) {
	t.Parallel()

	clk := clock.NewFixed(rlNow)
	h := RateLimit(failingChecker{}, "claim", ratelimit.ClaimPolicy, clk, nil, discardLogger())(teapot())

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/claims", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded first hop", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.2:80", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": " 198.51.100.4 "}, "10.0.0.2:80", "198.51.100.4"},
		{"forwarded wins over real ip", map[string]string{"X-Forwarded-For": "203.0.113.7", "X-Real-IP": "198.51.100.4"}, "10.0.0.2:80", "203.0.113.7"},
		{"empty forwarded falls back", map[string]string{"X-Forwarded-For": " , 10.0.0.1"}, "192.0.2.9:4431", "192.0.2.9"},
		{"remote addr", nil, "192.0.2.9:4431", "192.0.2.9"},
		{"remote without port", nil, "192.0.2.9", "192.0.2.9"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, ClientIP(req))
		})
	}
}
