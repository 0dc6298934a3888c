package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/cimillas/giftlink/internal/app"
	"github.com/cimillas/giftlink/internal/claimtoken"
	"github.com/cimillas/giftlink/internal/clock"
	"github.com/cimillas/giftlink/internal/domain"
	"github.com/cimillas/giftlink/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingQueue struct {
	mu  sync.Mutex
	ids []string
}

func (q *recordingQueue) Enqueue(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, id)
	return true
}

// Row locks must let exactly one of many simultaneous claims through.
func TestClaimService_ConcurrentClaimsAgainstPostgres(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	itemID := testutil.InsertCatalogItem(t, ctx, pool, domain.CatalogItem{
		Title: "Steam Gift Card", PriceCents: 5000, ProviderProductID: "steam-50", Active: true,
	})
	token, err := claimtoken.Generate()
	require.NoError(t, err)
	hash := claimtoken.Hash(token)
	expires := time.Now().Add(time.Hour)
	orderID := testutil.InsertOrder(t, ctx, pool, domain.OrderStatusActive, 7500, &hash, &expires)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := clock.NewSystem()
	orders := NewOrderRepository(pool)
	queue := &recordingQueue{}
	svc := app.NewClaimService(orders, NewCatalogRepository(pool), app.NewAuditLog(NewAuditRepository(pool), clk, logger), queue, clk, logger, nil)

	const attempts = 6
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		claimed int
	)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Claim(ctx, app.ClaimInput{Token: token, ItemID: itemID})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, domain.ErrAlreadyClaimed):
				claimed++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, attempts-1, claimed)
	assert.Equal(t, []string{orderID}, queue.ids)

	order, err := orders.GetOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusLocked, order.Status)
	assert.Equal(t, int64(2500), *order.RemainderCents)

	var succeeded int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM audit_events WHERE order_id = $1 AND type = 'CLAIM_SUCCEEDED'`, orderID,
	).Scan(&succeeded))
	assert.Equal(t, 1, succeeded)
}
