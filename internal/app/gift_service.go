package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cimillas/giftlink/internal/claimtoken"
	"github.com/cimillas/giftlink/internal/clock"
	"github.com/cimillas/giftlink/internal/domain"
	"github.com/shopspring/decimal"
)

type PaymentMode string

const (
	// PaymentModeMock activates orders at creation.
	PaymentModeMock PaymentMode = "mock"
	// PaymentModeGateway waits for the payment webhook.
	PaymentModeGateway PaymentMode = "gateway"
)

const (
	DefaultClaimTTL = 30 * 24 * time.Hour
	expireBatchSize = 500
)

type GiftConfig struct {
	BaseURL     string
	PaymentMode PaymentMode
	ClaimTTL    time.Duration
	Currency    string
}

type GiftService struct {
	orders   OrderRepository
	catalog  CatalogRepository
	audit    *AuditLog
	notifier *NotificationService
	cfg      GiftConfig
	clock    clock.Clock
	logger   *slog.Logger
}

func NewGiftService(orders OrderRepository, catalog CatalogRepository, audit *AuditLog, notifier *NotificationService, cfg GiftConfig, clk clock.Clock, logger *slog.Logger) *GiftService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = DefaultClaimTTL
	}
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if cfg.PaymentMode == "" {
		cfg.PaymentMode = PaymentModeMock
	}
	return &GiftService{
		orders:   orders,
		catalog:  catalog,
		audit:    audit,
		notifier: notifier,
		cfg:      cfg,
		clock:    clk,
		logger:   logger,
	}
}

// CreateGiftInput amounts are whole currency units as entered by the sender.
type CreateGiftInput struct {
	SenderName      string
	SenderEmail     string
	RecipientName   string
	RecipientEmail  string
	RecipientPhone  string
	AmountType      domain.AmountType
	AmountFixed     *decimal.Decimal
	AmountMin       *decimal.Decimal
	AmountMax       *decimal.Decimal
	Occasion        string
	Message         string
	CardTemplateID  string
	NotifyRecipient bool
	ExpirationDays  int
}

type CreateGiftResult struct {
	Order       domain.GiftOrder
	ChargeCents int64
	// ClaimURL is set only when the order was activated immediately.
	ClaimURL string
}

func (s *GiftService) CreateGift(ctx context.Context, in CreateGiftInput) (CreateGiftResult, error) {
	if errs := validateGift(in); len(errs) > 0 {
		return CreateGiftResult{}, errs
	}

	now := s.clock.Now()
	order := domain.GiftOrder{
		ID:              newUUID(),
		SenderName:      strings.TrimSpace(in.SenderName),
		SenderEmail:     normalizeEmail(in.SenderEmail),
		RecipientName:   strings.TrimSpace(in.RecipientName),
		RecipientEmail:  normalizeEmail(in.RecipientEmail),
		RecipientPhone:  optional(in.RecipientPhone),
		AmountType:      in.AmountType,
		Currency:        s.cfg.Currency,
		Occasion:        optional(in.Occasion),
		Message:         strings.TrimSpace(in.Message),
		CardTemplateID:  in.CardTemplateID,
		NotifyRecipient: in.NotifyRecipient,
		ClaimValidDays:  in.ExpirationDays,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if in.AmountType == domain.AmountTypeFixed {
		fixed := toCents(*in.AmountFixed)
		order.AmountFixed = &fixed
	} else {
		lo, hi := toCents(*in.AmountMin), toCents(*in.AmountMax)
		order.AmountMin, order.AmountMax = &lo, &hi
	}
	charge := order.BudgetCeiling()

	if s.cfg.PaymentMode == PaymentModeGateway {
		order.Status = domain.OrderStatusAwaitingPayment
		err := s.orders.WithTx(ctx, func(txCtx context.Context) error {
			if err := s.orders.CreateOrder(txCtx, order); err != nil {
				return err
			}
			return s.audit.Record(txCtx, order.ID, domain.AuditOrderCreated, "Gift order created, awaiting payment", map[string]any{
				"amountType":  string(order.AmountType),
				"chargeCents": charge,
			})
		})
		if err != nil {
			return CreateGiftResult{}, err
		}
		s.logger.InfoContext(ctx, "gift order created", "order_id", order.ID, "status", string(order.Status))
		return CreateGiftResult{Order: order, ChargeCents: charge}, nil
	}

	rawToken, err := s.issueToken(&order, now)
	if err != nil {
		return CreateGiftResult{}, err
	}
	order.Status = domain.OrderStatusActive

	err = s.orders.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.orders.CreateOrder(txCtx, order); err != nil {
			return err
		}
		if err := s.audit.Record(txCtx, order.ID, domain.AuditOrderCreated, "Gift order created (mock payment)", map[string]any{
			"amountType":  string(order.AmountType),
			"chargeCents": charge,
		}); err != nil {
			return err
		}
		return s.audit.Record(txCtx, order.ID, domain.AuditClaimLinkGenerated, "Claim link generated (mock mode)", linkMetadata(order))
	})
	if err != nil {
		return CreateGiftResult{}, err
	}

	s.notifier.sendActivation(ctx, order, s.cfg.BaseURL, rawToken)
	s.logger.InfoContext(ctx, "gift order created",
		"order_id", order.ID,
		"status", string(order.Status),
		"claim_token_last4", *order.ClaimTokenLast4,
	)
	return CreateGiftResult{Order: order, ChargeCents: charge, ClaimURL: claimURL(s.cfg.BaseURL, rawToken)}, nil
}

type ConfirmPaymentInput struct {
	OrderID           string
	PaymentReference  string
	CheckoutSessionID string
}

// ConfirmPayment activates an order whose payment went through. Duplicate
// confirmations for an order that is already ACTIVE or later are no-ops and
// report activated=false.
func (s *GiftService) ConfirmPayment(ctx context.Context, in ConfirmPaymentInput) (bool, error) {
	if in.OrderID == "" {
		return false, domain.ErrInvalidID
	}

	now := s.clock.Now()
	var (
		order     domain.GiftOrder
		rawToken  string
		activated bool
	)
	err := s.orders.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		order, err = s.orders.GetOrderForUpdate(txCtx, in.OrderID)
		if err != nil {
			return err
		}
		if !domain.CanTransition(order.Status, domain.OrderStatusActive) {
			return nil
		}

		prev := order.Status
		if rawToken, err = s.issueToken(&order, now); err != nil {
			return err
		}
		order.Status = domain.OrderStatusActive
		order.PaymentReference = optional(in.PaymentReference)
		order.CheckoutSessionID = optional(in.CheckoutSessionID)
		order.UpdatedAt = now
		if err := s.orders.UpdateOrder(txCtx, order, prev); err != nil {
			return err
		}
		if err := s.audit.Record(txCtx, order.ID, domain.AuditPaymentConfirmed, "Payment confirmed", map[string]any{
			"sessionId":        in.CheckoutSessionID,
			"paymentReference": in.PaymentReference,
		}); err != nil {
			return err
		}
		if err := s.audit.Record(txCtx, order.ID, domain.AuditClaimLinkGenerated, "Claim link generated and activated", linkMetadata(order)); err != nil {
			return err
		}
		activated = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if !activated {
		s.logger.InfoContext(ctx, "payment confirmation ignored", "order_id", order.ID, "status", string(order.Status))
		return false, nil
	}

	s.notifier.sendActivation(ctx, order, s.cfg.BaseURL, rawToken)
	s.logger.InfoContext(ctx, "order activated", "order_id", order.ID, "claim_token_last4", *order.ClaimTokenLast4)
	return true, nil
}

// issueToken puts a fresh claim credential on order and returns the raw token.
func (s *GiftService) issueToken(order *domain.GiftOrder, now time.Time) (string, error) {
	rawToken, err := claimtoken.Generate()
	if err != nil {
		return "", err
	}
	hash := claimtoken.Hash(rawToken)
	last4 := claimtoken.Last4(rawToken)

	ttl := s.cfg.ClaimTTL
	if order.ClaimValidDays > 0 {
		ttl = time.Duration(order.ClaimValidDays) * 24 * time.Hour
	}
	expires := now.Add(ttl)

	order.ClaimTokenHash = &hash
	order.ClaimTokenLast4 = &last4
	order.ClaimExpiresAt = &expires
	return rawToken, nil
}

type PreviewItem struct {
	domain.CatalogItem
	// BestMatch marks items priced at or above the budget floor.
	BestMatch bool
}

// ClaimPreview is what a recipient sees before choosing an item.
type ClaimPreview struct {
	OrderID        string
	Status         domain.OrderStatus
	SenderName     string
	RecipientName  string
	Message        string
	Occasion       *string
	CardTemplateID string
	Currency       string
	FloorCents     int64
	CeilingCents   int64
	ExpiresAt      *time.Time
	Items          []PreviewItem
}

// ClaimPreview resolves a claim link. An ACTIVE order read after its claim
// window is moved to EXPIRED here.
func (s *GiftService) ClaimPreview(ctx context.Context, rawToken string) (ClaimPreview, error) {
	if !claimtoken.WellFormed(rawToken) {
		return ClaimPreview{}, domain.ErrOrderNotFound
	}
	order, err := s.orders.FindByClaimHash(ctx, claimtoken.Hash(rawToken))
	if err != nil {
		return ClaimPreview{}, err
	}
	if order.ClaimTokenHash == nil || !claimtoken.Verify(rawToken, *order.ClaimTokenHash) {
		return ClaimPreview{}, domain.ErrOrderNotFound
	}

	if order.Status == domain.OrderStatusActive && order.ClaimExpired(s.clock.Now()) {
		if order, _, err = expireIfDue(ctx, s.orders, s.audit, order.ID, s.clock.Now()); err != nil {
			return ClaimPreview{}, err
		}
	}

	preview := ClaimPreview{
		OrderID:        order.ID,
		Status:         order.Status,
		SenderName:     order.SenderName,
		RecipientName:  order.RecipientName,
		Message:        order.Message,
		Occasion:       order.Occasion,
		CardTemplateID: order.CardTemplateID,
		Currency:       order.Currency,
		FloorCents:     order.BudgetFloor(),
		CeilingCents:   order.BudgetCeiling(),
		ExpiresAt:      order.ClaimExpiresAt,
	}
	if order.Status != domain.OrderStatusActive {
		return preview, nil
	}

	items, err := s.catalog.ListWithinBudget(ctx, preview.CeilingCents)
	if err != nil {
		return ClaimPreview{}, err
	}
	preview.Items = make([]PreviewItem, 0, len(items))
	for _, item := range items {
		preview.Items = append(preview.Items, PreviewItem{
			CatalogItem: item,
			BestMatch:   item.PriceCents >= preview.FloorCents,
		})
	}
	return preview, nil
}

// OrderStatus returns the order for the public status lookup.
func (s *GiftService) OrderStatus(ctx context.Context, orderID string) (domain.GiftOrder, error) {
	if orderID == "" {
		return domain.GiftOrder{}, domain.ErrInvalidID
	}
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return domain.GiftOrder{}, err
	}
	if order.Status == domain.OrderStatusActive && order.ClaimExpired(s.clock.Now()) {
		order, _, err = expireIfDue(ctx, s.orders, s.audit, order.ID, s.clock.Now())
	}
	return order, err
}

// ExpireStale moves every overdue ACTIVE order to EXPIRED and returns how many changed.
func (s *GiftService) ExpireStale(ctx context.Context) (int, error) {
	now := s.clock.Now()
	total := 0
	for {
		ids, err := s.orders.ListExpiredActive(ctx, now, expireBatchSize)
		if err != nil {
			return total, err
		}
		changed := 0
		for _, id := range ids {
			_, expired, err := expireIfDue(ctx, s.orders, s.audit, id, now)
			if err != nil && !errors.Is(err, domain.ErrOrderNotFound) {
				return total, fmt.Errorf("expire order %s: %w", id, err)
			}
			if expired {
				changed++
			}
		}
		total += changed
		if len(ids) < expireBatchSize || changed == 0 {
			return total, nil
		}
	}
}

func linkMetadata(order domain.GiftOrder) map[string]any {
	return map[string]any{
		"tokenLast4": *order.ClaimTokenLast4,
		"expiresAt":  order.ClaimExpiresAt.Format(time.RFC3339),
	}
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
