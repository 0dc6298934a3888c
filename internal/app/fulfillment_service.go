package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cimillas/giftlink/internal/clock"
	"github.com/cimillas/giftlink/internal/domain"
	"github.com/cimillas/giftlink/internal/fulfillment"
	"github.com/cimillas/giftlink/internal/notify"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type FulfillmentService struct {
	orders    fulfillmentOrders
	catalog   catalogItems
	audit     *AuditLog
	provider  fulfillment.Provider
	clock     clock.Clock
	logger    *slog.Logger
	telemetry *Telemetry
}

func NewFulfillmentService(orders fulfillmentOrders, catalog catalogItems, audit *AuditLog, provider fulfillment.Provider, clk clock.Clock, logger *slog.Logger, telemetry *Telemetry) *FulfillmentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FulfillmentService{
		orders:    orders,
		catalog:   catalog,
		audit:     audit,
		provider:  provider,
		clock:     clk,
		logger:    logger,
		telemetry: telemetry,
	}
}

type FulfillmentResult struct {
	OrderID     string
	Provider    string
	ExternalID  string
	Deliverable fulfillment.Deliverable
}

// Fulfill delivers the selected item of a LOCKED or FULFILLMENT_FAILED order.
//
// The provider is called outside any transaction. ctx bounds the provider call
// only; the outcome is recorded even if ctx has expired by then. A provider
// failure leaves the order FULFILLMENT_FAILED and returns an error wrapping
// domain.ErrFulfillmentFailed. There is no automatic retry.
func (s *FulfillmentService) Fulfill(ctx context.Context, orderID string) (FulfillmentResult, error) {
	ctx, span := s.telemetry.start(ctx, "FulfillmentService.Fulfill", attribute.String("order.id", orderID))
	defer span.End()

	order, item, err := s.begin(ctx, orderID)
	if err != nil {
		s.telemetry.fulfilled(ctx, "rejected")
		span.SetStatus(codes.Error, err.Error())
		return FulfillmentResult{}, err
	}

	res, sendErr := s.provider.SendGift(ctx, fulfillment.Request{
		RecipientEmail:    order.RecipientEmail,
		AmountCents:       item.PriceCents,
		ProviderProductID: item.ProviderProductID,
		Message:           order.Message,
		CardTemplateID:    order.CardTemplateID,
	})

	recordCtx := context.WithoutCancel(ctx)
	if sendErr != nil {
		s.telemetry.fulfilled(ctx, "failed")
		span.SetStatus(codes.Error, sendErr.Error())
		if err := s.fail(recordCtx, orderID, sendErr); err != nil {
			return FulfillmentResult{}, errors.Join(fmt.Errorf("%w: %v", domain.ErrFulfillmentFailed, sendErr), err)
		}
		s.logger.ErrorContext(ctx, "fulfillment failed", "order_id", orderID, "provider", s.provider.Name(), "err", sendErr)
		return FulfillmentResult{}, fmt.Errorf("%w: %v", domain.ErrFulfillmentFailed, sendErr)
	}

	if err := s.succeed(recordCtx, orderID, res); err != nil {
		s.telemetry.fulfilled(ctx, "error")
		return FulfillmentResult{}, err
	}
	s.telemetry.fulfilled(ctx, "success")
	s.logger.InfoContext(ctx, "gift fulfilled", "order_id", orderID, "provider", s.provider.Name(), "external_id", res.ExternalID)

	return FulfillmentResult{
		OrderID:     orderID,
		Provider:    s.provider.Name(),
		ExternalID:  res.ExternalID,
		Deliverable: res.Deliverable,
	}, nil
}

func (s *FulfillmentService) begin(ctx context.Context, orderID string) (domain.GiftOrder, domain.CatalogItem, error) {
	var (
		order domain.GiftOrder
		item  domain.CatalogItem
	)
	err := s.orders.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		order, err = s.orders.GetOrderForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if order.SelectedItemID == nil {
			return domain.ErrNoSelectedItem
		}
		// Only LOCKED and FULFILLMENT_FAILED may enter FULFILLING, so a
		// delivered or in-flight order never reaches the provider twice.
		if err := domain.ValidateTransition(order.Status, domain.OrderStatusFulfilling); err != nil {
			return err
		}
		item, err = s.catalog.GetItem(txCtx, *order.SelectedItemID)
		if err != nil {
			return err
		}

		prev := order.Status
		order.Status = domain.OrderStatusFulfilling
		order.UpdatedAt = s.clock.Now()
		if err := s.orders.UpdateOrder(txCtx, order, prev); err != nil {
			return err
		}
		return s.audit.Record(txCtx, order.ID, domain.AuditFulfillmentStarted, "Fulfillment process started", map[string]any{
			"provider": s.provider.Name(),
			"itemId":   item.ID,
		})
	})
	return order, item, err
}

func (s *FulfillmentService) succeed(ctx context.Context, orderID string, res fulfillment.Result) error {
	return s.finish(ctx, orderID, domain.OrderStatusFulfilled, func(txCtx context.Context, order *domain.GiftOrder) error {
		provider := s.provider.Name()
		order.FulfillmentProvider = &provider
		order.FulfillmentExternalID = &res.ExternalID
		order.FulfillmentPayload = res.RawPayload
		return s.audit.Record(txCtx, order.ID, domain.AuditFulfillmentSucceeded, "Gift fulfilled successfully", map[string]any{
			"externalId": res.ExternalID,
			"provider":   provider,
		})
	})
}

func (s *FulfillmentService) fail(ctx context.Context, orderID string, cause error) error {
	return s.finish(ctx, orderID, domain.OrderStatusFulfillmentFailed, func(txCtx context.Context, order *domain.GiftOrder) error {
		return s.audit.Record(txCtx, order.ID, domain.AuditFulfillmentFailed, "Fulfillment failed: "+cause.Error(), map[string]any{
			"error":    cause.Error(),
			"provider": s.provider.Name(),
		})
	})
}

// finish moves a FULFILLING order to status. record runs inside the
// transaction after the status is set and may amend the order before it is written.
func (s *FulfillmentService) finish(ctx context.Context, orderID string, status domain.OrderStatus, record func(txCtx context.Context, order *domain.GiftOrder) error) error {
	return s.orders.WithTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.GetOrderForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if err := domain.ValidateTransition(order.Status, status); err != nil {
			return err
		}
		order.Status = status
		order.UpdatedAt = s.clock.Now()
		if err := record(txCtx, &order); err != nil {
			return err
		}
		return s.orders.UpdateOrder(txCtx, order, domain.OrderStatusFulfilling)
	})
}

// FulfillRemainder settles the unspent budget of a claimed order once.
//
// donate records the choice without calling out. gift_card reserves the action,
// sends a generic gift card for the remainder, then marks it fulfilled; a
// provider failure releases the reservation so the recipient can try again.
func (s *FulfillmentService) FulfillRemainder(ctx context.Context, orderID string, action domain.RemainderAction) error {
	ctx, span := s.telemetry.start(ctx, "FulfillmentService.FulfillRemainder",
		attribute.String("order.id", orderID), attribute.String("remainder.action", string(action)))
	defer span.End()

	err := s.fulfillRemainder(ctx, orderID, action)
	switch {
	case err == nil:
		s.telemetry.remainder(ctx, "success")
	case errors.Is(err, domain.ErrAlreadyProcessed):
		s.telemetry.remainder(ctx, "already_processed")
	case errors.Is(err, domain.ErrNothingToProcess):
		s.telemetry.remainder(ctx, "nothing_to_process")
	default:
		s.telemetry.remainder(ctx, "error")
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *FulfillmentService) fulfillRemainder(ctx context.Context, orderID string, action domain.RemainderAction) error {
	if !action.Valid() {
		return domain.ValidationErrors{{Field: "action", Message: fmt.Sprintf("unknown remainder action %q", string(action))}}
	}

	var order domain.GiftOrder
	err := s.orders.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		order, err = s.orders.GetOrderForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if order.RemainderCents == nil || *order.RemainderCents <= 0 {
			return domain.ErrNothingToProcess
		}
		if order.RemainderFulfilled || order.RemainderAction != nil {
			return domain.ErrAlreadyProcessed
		}

		order.RemainderAction = &action
		order.UpdatedAt = s.clock.Now()
		if action == domain.RemainderDonate {
			order.RemainderFulfilled = true
			if err := s.audit.Record(txCtx, order.ID, domain.AuditRemainderProcessed,
				fmt.Sprintf("Remainder %s donated to charity", notify.FormatAmount(*order.RemainderCents)),
				map[string]any{"action": string(action), "amountCents": *order.RemainderCents},
			); err != nil {
				return err
			}
		}
		return s.orders.UpdateOrder(txCtx, order, order.Status)
	})
	if err != nil || action == domain.RemainderDonate {
		return err
	}

	amount := *order.RemainderCents
	res, sendErr := s.provider.SendGift(ctx, fulfillment.Request{
		RecipientEmail:    order.RecipientEmail,
		AmountCents:       amount,
		ProviderProductID: fulfillment.GenericProductID,
		Message:           "Remainder from your gift from " + order.SenderName,
		CardTemplateID:    order.CardTemplateID,
	})

	recordCtx := context.WithoutCancel(ctx)
	if sendErr != nil {
		s.logger.ErrorContext(ctx, "remainder gift card failed", "order_id", orderID, "err", sendErr)
		release := s.orders.WithTx(recordCtx, func(txCtx context.Context) error {
			current, err := s.orders.GetOrderForUpdate(txCtx, orderID)
			if err != nil {
				return err
			}
			current.RemainderAction = nil
			current.UpdatedAt = s.clock.Now()
			return s.orders.UpdateOrder(txCtx, current, current.Status)
		})
		return errors.Join(fmt.Errorf("%w: %v", domain.ErrFulfillmentFailed, sendErr), release)
	}

	return s.orders.WithTx(recordCtx, func(txCtx context.Context) error {
		current, err := s.orders.GetOrderForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		current.UpdatedAt = s.clock.Now()
		current.RemainderFulfilled = true
		if err := s.orders.UpdateOrder(txCtx, current, current.Status); err != nil {
			return err
		}
		return s.audit.Record(txCtx, current.ID, domain.AuditRemainderProcessed, "Remainder converted to gift card", map[string]any{
			"action":      string(action),
			"amountCents": amount,
			"externalId":  res.ExternalID,
		})
	})
}
