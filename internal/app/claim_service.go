package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/cimillas/giftlink/internal/claimtoken"
	"github.com/cimillas/giftlink/internal/clock"
	"github.com/cimillas/giftlink/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// FulfillmentQueue accepts claimed orders for background fulfillment.
// Enqueue must not block; false means the order was not queued.
type FulfillmentQueue interface {
	Enqueue(orderID string) bool
}

type ClaimService struct {
	orders    claimOrders
	catalog   catalogItems
	audit     *AuditLog
	queue     FulfillmentQueue
	clock     clock.Clock
	logger    *slog.Logger
	telemetry *Telemetry
}

func NewClaimService(orders claimOrders, catalog catalogItems, audit *AuditLog, queue FulfillmentQueue, clk clock.Clock, logger *slog.Logger, telemetry *Telemetry) *ClaimService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClaimService{
		orders:    orders,
		catalog:   catalog,
		audit:     audit,
		queue:     queue,
		clock:     clk,
		logger:    logger,
		telemetry: telemetry,
	}
}

type ClaimInput struct {
	Token  string
	ItemID string
}

type ClaimResult struct {
	OrderID        string
	Item           domain.CatalogItem
	RemainderCents int64
	Queued         bool
}

// Claim redeems the order behind Token for ItemID exactly once.
//
// All checks run against the row-locked order inside one transaction and fail
// before anything is written. Fulfillment is queued only after the LOCKED
// state commits; its outcome is never reported here.
func (s *ClaimService) Claim(ctx context.Context, in ClaimInput) (ClaimResult, error) {
	ctx, span := s.telemetry.start(ctx, "ClaimService.Claim")
	defer span.End()

	res, err := s.claim(ctx, in)
	if err != nil {
		s.telemetry.claimed(ctx, claimOutcome(err))
		span.SetStatus(codes.Error, claimOutcome(err))
		return ClaimResult{}, err
	}
	s.telemetry.claimed(ctx, "success")
	span.SetAttributes(attribute.String("order.id", res.OrderID))

	res.Queued = s.queue.Enqueue(res.OrderID)
	if !res.Queued {
		s.logger.WarnContext(ctx, "fulfillment queue full; order left LOCKED for retry", "order_id", res.OrderID)
	}
	return res, nil
}

func (s *ClaimService) claim(ctx context.Context, in ClaimInput) (ClaimResult, error) {
	token := strings.TrimSpace(in.Token)
	itemID := strings.TrimSpace(in.ItemID)

	var verrs domain.ValidationErrors
	if token == "" {
		verrs = append(verrs, domain.FieldError{Field: "token", Message: "Token is required"})
	}
	if itemID == "" {
		verrs = append(verrs, domain.FieldError{Field: "item_id", Message: "Item selection is required"})
	}
	if len(verrs) > 0 {
		return ClaimResult{}, verrs
	}
	if !claimtoken.WellFormed(token) {
		return ClaimResult{}, domain.ErrOrderNotFound
	}

	now := s.clock.Now()
	var result ClaimResult

	err := s.orders.WithTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByClaimHashForUpdate(txCtx, claimtoken.Hash(token))
		if err != nil {
			return err
		}
		if order.ClaimTokenHash == nil || !claimtoken.Verify(token, *order.ClaimTokenHash) {
			return domain.ErrOrderNotFound
		}
		if order.ClaimExpired(now) {
			return domain.ErrClaimExpired
		}
		if order.Status != domain.OrderStatusActive {
			switch {
			case order.Status.Claimed():
				return domain.ErrAlreadyClaimed
			case order.Status == domain.OrderStatusExpired:
				return domain.ErrClaimExpired
			default:
				return domain.ErrNotAvailable
			}
		}

		item, err := s.catalog.GetItem(txCtx, itemID)
		if err != nil {
			if errors.Is(err, domain.ErrCatalogItemNotFound) || errors.Is(err, domain.ErrInvalidID) {
				return domain.ErrItemUnavailable
			}
			return err
		}
		if !item.Active {
			return domain.ErrItemUnavailable
		}
		ceiling := order.BudgetCeiling()
		if item.PriceCents > ceiling {
			return domain.ErrBudgetExceeded
		}
		if err := domain.ValidateTransition(order.Status, domain.OrderStatusLocked); err != nil {
			return err
		}

		remainder := ceiling - item.PriceCents
		order.Status = domain.OrderStatusLocked
		order.SelectedItemID = &item.ID
		order.ClaimedAt = &now
		order.UpdatedAt = now
		order.RemainderCents = nil
		if remainder > 0 {
			order.RemainderCents = &remainder
		}
		if err := s.orders.UpdateOrder(txCtx, order, domain.OrderStatusActive); err != nil {
			if errors.Is(err, domain.ErrOrderConflict) {
				return domain.ErrAlreadyClaimed
			}
			return err
		}
		if err := s.audit.Record(txCtx, order.ID, domain.AuditClaimSucceeded, "Gift claimed successfully", map[string]any{
			"itemId":         item.ID,
			"itemTitle":      item.Title,
			"remainderCents": remainder,
		}); err != nil {
			return err
		}

		result = ClaimResult{OrderID: order.ID, Item: item, RemainderCents: remainder}
		return nil
	})
	if err != nil {
		return ClaimResult{}, err
	}

	s.logger.InfoContext(ctx, "gift claimed",
		"order_id", result.OrderID,
		"item_id", result.Item.ID,
		"remainder_cents", result.RemainderCents,
		"claim_token_last4", claimtoken.Last4(token),
	)
	return result, nil
}

func claimOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	case errors.Is(err, domain.ErrOrderNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrClaimExpired):
		return "expired"
	case errors.Is(err, domain.ErrAlreadyClaimed):
		return "already_claimed"
	case errors.Is(err, domain.ErrNotAvailable):
		return "not_available"
	case errors.Is(err, domain.ErrBudgetExceeded):
		return "budget_exceeded"
	default:
		return "error"
	}
}
