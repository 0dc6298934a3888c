package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cimillas/giftlink/internal/app"
	"github.com/cimillas/giftlink/internal/domain"
	"github.com/stretchr/testify/require"
)

type fakeGifts struct {
	createFn  func(ctx context.Context, in app.CreateGiftInput) (app.CreateGiftResult, error)
	statusFn  func(ctx context.Context, orderID string) (domain.GiftOrder, error)
	previewFn func(ctx context.Context, rawToken string) (app.ClaimPreview, error)
	confirmFn func(ctx context.Context, in app.ConfirmPaymentInput) (bool, error)
}

func (f *fakeGifts) CreateGift(ctx context.Context, in app.CreateGiftInput) (app.CreateGiftResult, error) {
	return f.createFn(ctx, in)
}

func (f *fakeGifts) OrderStatus(ctx context.Context, orderID string) (domain.GiftOrder, error) {
	return f.statusFn(ctx, orderID)
}

func (f *fakeGifts) ClaimPreview(ctx context.Context, rawToken string) (app.ClaimPreview, error) {
	return f.previewFn(ctx, rawToken)
}

func (f *fakeGifts) ConfirmPayment(ctx context.Context, in app.ConfirmPaymentInput) (bool, error) {
	return f.confirmFn(ctx, in)
}

type fakeClaimer struct {
	fn func(ctx context.Context, in app.ClaimInput) (app.ClaimResult, error)
}

func (f *fakeClaimer) Claim(ctx context.Context, in app.ClaimInput) (app.ClaimResult, error) {
	return f.fn(ctx, in)
}

type fakeRemainder struct {
	fn func(ctx context.Context, orderID string, action domain.RemainderAction) error
}

func (f *fakeRemainder) FulfillRemainder(ctx context.Context, orderID string, action domain.RemainderAction) error {
	return f.fn(ctx, orderID, action)
}

type fakeAdmin struct {
	validToken string

	loginFn  func(ctx context.Context, password string) (string, error)
	listFn   func(ctx context.Context, in app.ListOrdersInput) (app.OrderPage, error)
	getFn    func(ctx context.Context, orderID string) (app.OrderDetail, error)
	retryFn  func(ctx context.Context, orderID string) (app.FulfillmentResult, error)
	resendFn func(ctx context.Context, orderID string) (string, error)
	cancelFn func(ctx context.Context, orderID string) (domain.GiftOrder, error)
}

func (f *fakeAdmin) ValidateSession(token string) bool {
	return f.validToken != "" && token == f.validToken
}

func (f *fakeAdmin) Login(ctx context.Context, password string) (string, error) {
	return f.loginFn(ctx, password)
}

func (f *fakeAdmin) ListOrders(ctx context.Context, in app.ListOrdersInput) (app.OrderPage, error) {
	return f.listFn(ctx, in)
}

func (f *fakeAdmin) GetOrder(ctx context.Context, orderID string) (app.OrderDetail, error) {
	return f.getFn(ctx, orderID)
}

func (f *fakeAdmin) RetryFulfillment(ctx context.Context, orderID string) (app.FulfillmentResult, error) {
	return f.retryFn(ctx, orderID)
}

func (f *fakeAdmin) ResendNotification(ctx context.Context, orderID string) (string, error) {
	return f.resendFn(ctx, orderID)
}

func (f *fakeAdmin) CancelOrder(ctx context.Context, orderID string) (domain.GiftOrder, error) {
	return f.cancelFn(ctx, orderID)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(raw)
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func ptr[T any](v T) *T { return &v }
