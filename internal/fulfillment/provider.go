// Package fulfillment turns a redeemed amount into a deliverable through a gift provider.
package fulfillment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// GenericProductID is the provider product used for remainder gift cards.
const GenericProductID = "generic-visa"

// Request describes one gift to deliver.
type Request struct {
	RecipientEmail    string
	AmountCents       int64
	ProviderProductID string
	Message           string
	CardTemplateID    string
}

// Deliverable is what the recipient ends up holding.
type Deliverable struct {
	Type          string `json:"type"`
	Code          string `json:"code"`
	RedemptionURL string `json:"redemptionUrl,omitempty"`
}

// Result is a successful delivery. RawPayload is stored verbatim on the order.
type Result struct {
	ExternalID  string
	Deliverable Deliverable
	RawPayload  []byte
}

// Provider delivers gifts. Implementations must honor ctx cancellation;
// callers bound each attempt with a deadline.
type Provider interface {
	Name() string
	SendGift(ctx context.Context, req Request) (Result, error)
}

// NewProvider selects a provider by its configured name.
func NewProvider(name string, logger *slog.Logger) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "mock":
		return NewMockProvider(logger), nil
	default:
		return nil, fmt.Errorf("unknown gift provider %q", name)
	}
}
