package app

import (
	"context"
	"time"

	"github.com/cimillas/giftlink/internal/domain"
)

// OrderRepository is the order store the services share. Each service depends
// only on the subset it needs; the postgres implementation satisfies all of them.
//
// Reads suffixed ForUpdate lock the row until the surrounding WithTx returns.
// UpdateOrder writes the order only if its stored status still equals expected
// and returns domain.ErrOrderConflict otherwise.
type OrderRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateOrder(ctx context.Context, order domain.GiftOrder) error
	GetOrder(ctx context.Context, id string) (domain.GiftOrder, error)
	GetOrderForUpdate(ctx context.Context, id string) (domain.GiftOrder, error)
	FindByClaimHash(ctx context.Context, hash string) (domain.GiftOrder, error)
	FindByClaimHashForUpdate(ctx context.Context, hash string) (domain.GiftOrder, error)
	UpdateOrder(ctx context.Context, order domain.GiftOrder, expected domain.OrderStatus) error
	ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.GiftOrder, int, error)
	ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]string, error)
}

type CatalogRepository interface {
	GetItem(ctx context.Context, id string) (domain.CatalogItem, error)
	ListWithinBudget(ctx context.Context, maxCents int64) ([]domain.CatalogItem, error)
}

type claimOrders interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	FindByClaimHashForUpdate(ctx context.Context, hash string) (domain.GiftOrder, error)
	UpdateOrder(ctx context.Context, order domain.GiftOrder, expected domain.OrderStatus) error
}

type fulfillmentOrders interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetOrderForUpdate(ctx context.Context, id string) (domain.GiftOrder, error)
	UpdateOrder(ctx context.Context, order domain.GiftOrder, expected domain.OrderStatus) error
}

type catalogItems interface {
	GetItem(ctx context.Context, id string) (domain.CatalogItem, error)
}

// expireIfDue moves an ACTIVE order past its claim window to EXPIRED and records it.
// It returns the order as stored afterwards.
func expireIfDue(ctx context.Context, orders fulfillmentOrders, audit *AuditLog, orderID string, now time.Time) (domain.GiftOrder, bool, error) {
	var (
		out     domain.GiftOrder
		expired bool
	)
	err := orders.WithTx(ctx, func(txCtx context.Context) error {
		order, err := orders.GetOrderForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		out = order
		if order.Status != domain.OrderStatusActive || !order.ClaimExpired(now) {
			return nil
		}
		if err := domain.ValidateTransition(order.Status, domain.OrderStatusExpired); err != nil {
			return err
		}
		order.Status = domain.OrderStatusExpired
		order.UpdatedAt = now
		if err := orders.UpdateOrder(txCtx, order, domain.OrderStatusActive); err != nil {
			return err
		}
		if err := audit.Record(txCtx, order.ID, domain.AuditClaimExpired, "Claim link expired", map[string]any{
			"claimExpiresAt": order.ClaimExpiresAt.Format(time.RFC3339),
		}); err != nil {
			return err
		}
		out = order
		expired = true
		return nil
	})
	if err != nil {
		return domain.GiftOrder{}, false, err
	}
	return out, expired, nil
}
