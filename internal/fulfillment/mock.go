package fulfillment

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

const mockRedeemBaseURL = "https://mock-gift.example.com/redeem/"

// MockProvider fabricates gift-card codes without talking to anyone.
type MockProvider struct {
	logger *slog.Logger
	delay  time.Duration
	now    func() time.Time
}

type MockOption func(*MockProvider)

// WithDelay simulates provider latency.
func WithDelay(d time.Duration) MockOption {
	return func(p *MockProvider) { p.delay = d }
}

func NewMockProvider(logger *slog.Logger, opts ...MockOption) *MockProvider {
	if logger == nil {
		logger = slog.Default()
	}
	p := &MockProvider{logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *MockProvider) Name() string { return "MOCK" }

func (p *MockProvider) SendGift(ctx context.Context, req Request) (Result, error) {
	if req.AmountCents <= 0 {
		return Result{}, fmt.Errorf("mock provider: amount must be positive, got %d", req.AmountCents)
	}
	if p.delay > 0 {
		timer := time.NewTimer(p.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	code, err := mockCode()
	if err != nil {
		return Result{}, fmt.Errorf("mock provider: %w", err)
	}
	externalID := "mock_" + uuid.NewString()

	raw, err := json.Marshal(map[string]any{
		"provider":          "mock",
		"externalId":        externalID,
		"code":              code,
		"amountCents":       req.AmountCents,
		"recipientEmail":    req.RecipientEmail,
		"providerProductId": req.ProviderProductID,
		"timestamp":         p.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return Result{}, fmt.Errorf("mock provider: encode payload: %w", err)
	}

	p.logger.InfoContext(ctx, "mock gift sent",
		"external_id", externalID,
		"amount_cents", req.AmountCents,
		"product", req.ProviderProductID,
	)

	return Result{
		ExternalID: externalID,
		Deliverable: Deliverable{
			Type:          "gift_card",
			Code:          code,
			RedemptionURL: mockRedeemBaseURL + code,
		},
		RawPayload: raw,
	}, nil
}

// mockCode returns MOCK-XXXX-XXXX-XXXX with uppercase hex segments.
func mockCode() (string, error) {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	h := strings.ToUpper(hex.EncodeToString(b))
	return fmt.Sprintf("MOCK-%s-%s-%s", h[0:4], h[4:8], h[8:12]), nil
}
