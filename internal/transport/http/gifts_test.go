package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cimillas/giftlink/internal/app"
	"github.com/cimillas/giftlink/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleCreateGift(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)
	var got app.CreateGiftInput
	f.gifts.createFn = func(_ context.Context, in app.CreateGiftInput) (app.CreateGiftResult, error) {
		got = in
		return app.CreateGiftResult{
			Order:       domain.GiftOrder{ID: "o-1", Status: domain.OrderStatusActive, Currency: "USD"},
			ChargeCents: 2550,
			ClaimURL:    "http://localhost:5173/claim/abc",
		}, nil
	}

	body := `{
		"sender_name": "Ada",
		"sender_email": "ada@example.com",
		"recipient_name": "Grace",
		"recipient_email": "grace@example.com",
		"amount_type": "FIXED",
		"amount_fixed": 25.50,
		"message": "Happy birthday",
		"card_template_id": "confetti",
		"notify_recipient": true,
		"expiration_days": 30
	}`
	rec := f.do(httptest.NewRequest(http.MethodPost, "/gifts", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decodeBody[createGiftResponse](t, rec)
	assert.Equal(t, "o-1", resp.OrderID)
	assert.Equal(t, "ACTIVE", resp.Status)
	assert.EqualValues(t, 2550, resp.ChargeCents)
	assert.Equal(t, "http://localhost:5173/claim/abc", resp.ClaimURL)

	assert.Equal(t, domain.AmountTypeFixed, got.AmountType)
	require.NotNil(t, got.AmountFixed)
	assert.True(t, got.AmountFixed.Equal(decimal.RequireFromString("25.5")))
	assert.Nil(t, got.AmountMin)
	assert.True(t, got.NotifyRecipient)
	assert.Equal(t, 30, got.ExpirationDays)
}

func TestHandleCreateGift_ValidationError(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)
	f.gifts.createFn = func(context.Context, app.CreateGiftInput) (app.CreateGiftResult, error) {
		return app.CreateGiftResult{}, domain.ValidationErrors{{Field: "recipient_email", Message: "Invalid email"}}
	}

	rec := f.do(httptest.NewRequest(http.MethodPost, "/gifts", strings.NewReader(`{"recipient_email":"nope"}`)))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[errorResponse](t, rec)
	assert.Equal(t, codeValidation, resp.Code)
	assert.Equal(t, []domain.FieldError{{Field: "recipient_email", Message: "Invalid email"}}, resp.Fields)
}

func TestHandleCreateGift_RejectsUnknownFields(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)
	f.gifts.createFn = func(context.Context, app.CreateGiftInput) (app.CreateGiftResult, error) {
		t.Fatal("service must not be called")
		return app.CreateGiftResult{}, nil
	}

	rec := f.do(httptest.NewRequest(http.MethodPost, "/gifts", strings.NewReader(`{"status":"ACTIVE"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, codeInvalidRequestBody, decodeBody[errorResponse](t, rec).Code)
}

func TestHandleOrderStatus(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)
	expires := routerNow.Add(90 * 24 * time.Hour)
	f.gifts.statusFn = func(_ context.Context, id string) (domain.GiftOrder, error) {
		if id != "o-1" {
			return domain.GiftOrder{}, domain.ErrOrderNotFound
		}
		return domain.GiftOrder{
			ID:              "o-1",
			Status:          domain.OrderStatusActive,
			SenderName:      "Ada",
			SenderEmail:     "ada@example.com",
			RecipientName:   "Grace",
			RecipientEmail:  "grace@example.com",
			AmountType:      domain.AmountTypeRange,
			AmountMin:       ptr(int64(2000)),
			AmountMax:       ptr(int64(5000)),
			Currency:        "USD",
			ClaimTokenHash:  ptr("deadbeef"),
			ClaimTokenLast4: ptr("beef"),
			ClaimExpiresAt:  &expires,
			CreatedAt:       routerNow,
		}, nil
	}

	rec := f.do(httptest.NewRequest(http.MethodGet, "/orders/o-1/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[orderStatusResponse](t, rec)
	assert.Equal(t, "ACTIVE", resp.Status)
	assert.EqualValues(t, 5000, *resp.AmountMax)
	for _, secret := range []string{"ada@example.com", "grace@example.com", "deadbeef", "beef"} {
		assert.NotContains(t, rec.Body.String(), secret)
	}

	rec = f.do(httptest.NewRequest(http.MethodGet, "/orders/o-2/status", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleOrderStatus_InternalError(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)
	f.gifts.statusFn = func(context.Context, string) (domain.GiftOrder, error) {
		return domain.GiftOrder{}, errors.New("db down")
	}

	rec := f.do(httptest.NewRequest(http.MethodGet, "/orders/o-1/status", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}
