package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cimillas/giftlink/internal/clock"
	"github.com/cimillas/giftlink/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

var claimNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

var (
	itemFifty       = domain.CatalogItem{ID: "item-50", Title: "Steam Gift Card", PriceCents: 5000, ProviderProductID: "steam-50", Active: true}
	itemSeventyFive = domain.CatalogItem{ID: "item-75", Title: "Visa Gift Card", PriceCents: 7500, ProviderProductID: "visa-75", Active: true}
	itemHundred     = domain.CatalogItem{ID: "item-100", Title: "Amazon Gift Card", PriceCents: 10000, ProviderProductID: "amazon-100", Active: true}
	itemRetired     = domain.CatalogItem{ID: "item-old", Title: "Retired", PriceCents: 1000, ProviderProductID: "old-10", Active: false}
)

type claimFixture struct {
	svc    *ClaimService
	orders *fakeOrderRepo
	audit  *fakeAuditRepo
	queue  *fakeQueue
}

func newClaimFixture(t *testing.T, telemetry *Telemetry, orders ...domain.GiftOrder) claimFixture {
	t.Helper()
	repo := newFakeOrderRepo(orders...)
	auditRepo := &fakeAuditRepo{}
	queue := &fakeQueue{}
	clk := clock.NewFixed(claimNow)
	svc := NewClaimService(
		repo,
		newFakeCatalog(itemFifty, itemSeventyFive, itemHundred, itemRetired),
		NewAuditLog(auditRepo, clk, discardLogger()),
		queue,
		clk,
		discardLogger(),
		telemetry,
	)
	return claimFixture{svc: svc, orders: repo, audit: auditRepo, queue: queue}
}

func TestClaimService_Claim_LocksOrderAndComputesRemainder(t *testing.T) {
	t.Parallel()

	order, token := activeOrder("order-1", 7500, claimNow.Add(24*time.Hour))
	f := newClaimFixture(t, nil, order)

	res, err := f.svc.Claim(context.Background(), ClaimInput{Token: token, ItemID: "item-50"})
	require.NoError(t, err)
	assert.Equal(t, "order-1", res.OrderID)
	assert.Equal(t, int64(2500), res.RemainderCents)
	assert.True(t, res.Queued)

	stored := f.orders.get("order-1")
	assert.Equal(t, domain.OrderStatusLocked, stored.Status)
	require.NotNil(t, stored.SelectedItemID)
	assert.Equal(t, "item-50", *stored.SelectedItemID)
	require.NotNil(t, stored.RemainderCents)
	assert.Equal(t, int64(2500), *stored.RemainderCents)
	require.NotNil(t, stored.ClaimedAt)
	assert.Equal(t, claimNow, *stored.ClaimedAt)

	assert.Equal(t, []domain.AuditEventType{domain.AuditClaimSucceeded}, f.audit.types("order-1"))
	assert.Equal(t, []string{"order-1"}, f.queue.ids)
}

func TestClaimService_Claim_ExactBudgetLeavesNoRemainder(t *testing.T) {
	t.Parallel()

	order, token := activeOrder("order-1", 7500, claimNow.Add(time.Hour))
	f := newClaimFixture(t, nil, order)

	res, err := f.svc.Claim(context.Background(), ClaimInput{Token: token, ItemID: "item-75"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.RemainderCents)
	assert.Nil(t, f.orders.get("order-1").RemainderCents)
}

func TestClaimService_Claim_RangeBudgetUsesMaximum(t *testing.T) {
	t.Parallel()

	order, token := activeOrder("order-1", 0, claimNow.Add(time.Hour))
	order.AmountType = domain.AmountTypeRange
	order.AmountFixed = nil
	order.AmountMin = int64Ptr(2000)
	order.AmountMax = int64Ptr(10000)
	f := newClaimFixture(t, nil, order)

	res, err := f.svc.Claim(context.Background(), ClaimInput{Token: token, ItemID: "item-100"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.RemainderCents)
}

func TestClaimService_Claim_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(o *domain.GiftOrder)
		token   func(valid string) string
		itemID  string
		wantErr error
	}{
		{
			name:    "item above ceiling",
			itemID:  "item-100",
			wantErr: domain.ErrBudgetExceeded,
		},
		{
			name:    "inactive item",
			itemID:  "item-old",
			wantErr: domain.ErrItemUnavailable,
		},
		{
			name:    "unknown item",
			itemID:  "item-missing",
			wantErr: domain.ErrItemUnavailable,
		},
		{
			name:    "claim window passed",
			mutate:  func(o *domain.GiftOrder) { o.ClaimExpiresAt = timePtr(claimNow.Add(-time.Second)) },
			itemID:  "item-50",
			wantErr: domain.ErrClaimExpired,
		},
		{
			name: "expired window wins over status",
			mutate: func(o *domain.GiftOrder) {
				o.ClaimExpiresAt = timePtr(claimNow.Add(-time.Second))
				o.Status = domain.OrderStatusLocked
			},
			itemID:  "item-50",
			wantErr: domain.ErrClaimExpired,
		},
		{
			name:    "already locked",
			mutate:  func(o *domain.GiftOrder) { o.Status = domain.OrderStatusLocked },
			itemID:  "item-50",
			wantErr: domain.ErrAlreadyClaimed,
		},
		{
			name:    "already fulfilled",
			mutate:  func(o *domain.GiftOrder) { o.Status = domain.OrderStatusFulfilled },
			itemID:  "item-50",
			wantErr: domain.ErrAlreadyClaimed,
		},
		{
			name:    "fulfilling",
			mutate:  func(o *domain.GiftOrder) { o.Status = domain.OrderStatusFulfilling },
			itemID:  "item-50",
			wantErr: domain.ErrAlreadyClaimed,
		},
		{
			name:    "status expired",
			mutate:  func(o *domain.GiftOrder) { o.Status = domain.OrderStatusExpired },
			itemID:  "item-50",
			wantErr: domain.ErrClaimExpired,
		},
		{
			name:    "awaiting payment",
			mutate:  func(o *domain.GiftOrder) { o.Status = domain.OrderStatusAwaitingPayment },
			itemID:  "item-50",
			wantErr: domain.ErrNotAvailable,
		},
		{
			name:    "canceled",
			mutate:  func(o *domain.GiftOrder) { o.Status = domain.OrderStatusCanceled },
			itemID:  "item-50",
			wantErr: domain.ErrNotAvailable,
		},
		{
			name:    "unknown token",
			token:   func(string) string { return "ab" + "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcd" },
			itemID:  "item-50",
			wantErr: domain.ErrOrderNotFound,
		},
		{
			name:    "malformed token",
			token:   func(string) string { return "not-a-token" },
			itemID:  "item-50",
			wantErr: domain.ErrOrderNotFound,
		},
		{
			name:    "missing item",
			itemID:  "",
			wantErr: domain.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, token := activeOrder("order-1", 7500, claimNow.Add(time.Hour))
			if tt.mutate != nil {
				tt.mutate(&order)
			}
			if tt.token != nil {
				token = tt.token(token)
			}
			before := order
			f := newClaimFixture(t, nil, order)

			_, err := f.svc.Claim(context.Background(), ClaimInput{Token: token, ItemID: tt.itemID})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)

			assert.Equal(t, before, f.orders.get("order-1"), "failed claim must not mutate the order")
			assert.Zero(t, f.orders.updates)
			assert.Empty(t, f.audit.types("order-1"))
			assert.Empty(t, f.queue.ids)
		})
	}
}

func TestClaimService_Claim_ConcurrentClaimsSucceedOnce(t *testing.T) {
	t.Parallel()

	order, token := activeOrder("order-1", 7500, claimNow.Add(time.Hour))
	f := newClaimFixture(t, nil, order)

	const attempts = 8
	var (
		wg        sync.WaitGroup
		start     = make(chan struct{})
		errs      = make([]error, attempts)
		successes int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.svc.Claim(context.Background(), ClaimInput{Token: token, ItemID: "item-50"})
		}(i)
	}
	close(start)
	wg.Wait()

	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, f.audit.count("order-1", domain.AuditClaimSucceeded))
	assert.Len(t, f.queue.ids, 1)
}

// staleClaimRepo reports a conflicting write, as a compare-and-swap store would
// when another claim commits between read and update.
type staleClaimRepo struct {
	*fakeOrderRepo
}

func (r staleClaimRepo) UpdateOrder(context.Context, domain.GiftOrder, domain.OrderStatus) error {
	return domain.ErrOrderConflict
}

func TestClaimService_Claim_ConflictingWriteIsAlreadyClaimed(t *testing.T) {
	t.Parallel()

	order, token := activeOrder("order-1", 7500, claimNow.Add(time.Hour))
	clk := clock.NewFixed(claimNow)
	svc := NewClaimService(
		staleClaimRepo{newFakeOrderRepo(order)},
		newFakeCatalog(itemFifty),
		NewAuditLog(&fakeAuditRepo{}, clk, discardLogger()),
		&fakeQueue{},
		clk,
		discardLogger(),
		nil,
	)

	_, err := svc.Claim(context.Background(), ClaimInput{Token: token, ItemID: "item-50"})
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)
}

func TestClaimService_Claim_FullQueueStillSucceeds(t *testing.T) {
	t.Parallel()

	order, token := activeOrder("order-1", 7500, claimNow.Add(time.Hour))
	f := newClaimFixture(t, nil, order)
	f.queue.err = true

	res, err := f.svc.Claim(context.Background(), ClaimInput{Token: token, ItemID: "item-50"})
	require.NoError(t, err)
	assert.False(t, res.Queued)
	assert.Equal(t, domain.OrderStatusLocked, f.orders.get("order-1").Status)
}

func TestClaimService_Claim_CountsOutcomes(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	telemetry, err := NewTelemetry(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)), nil)
	require.NoError(t, err)

	order, token := activeOrder("order-1", 7500, claimNow.Add(time.Hour))
	f := newClaimFixture(t, telemetry, order)

	_, err = f.svc.Claim(context.Background(), ClaimInput{Token: token, ItemID: "item-50"})
	require.NoError(t, err)
	_, err = f.svc.Claim(context.Background(), ClaimInput{Token: token, ItemID: "item-50"})
	require.ErrorIs(t, err, domain.ErrAlreadyClaimed)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	got := counterByResult(t, rm, "giftlink.claims")
	assert.Equal(t, int64(1), got["success"])
	assert.Equal(t, int64(1), got["already_claimed"])
}

func counterByResult(t *testing.T, rm metricdata.ResourceMetrics, name string) map[string]int64 {
	t.Helper()
	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is %T", name, m.Data)
			for _, dp := range sum.DataPoints {
				v, _ := dp.Attributes.Value(attribute.Key("result"))
				out[v.AsString()] += dp.Value
			}
		}
	}
	return out
}
