package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cimillas/giftlink/internal/claimtoken"
	"github.com/cimillas/giftlink/internal/domain"
	"github.com/cimillas/giftlink/internal/fulfillment"
	"github.com/cimillas/giftlink/internal/notify"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeTxKey struct{}

// fakeOrderRepo serializes transactions with one lock, standing in for the row lock
// a real store takes on SELECT ... FOR UPDATE.
type fakeOrderRepo struct {
	txMu sync.Mutex

	mu      sync.Mutex
	orders  map[string]domain.GiftOrder
	updates int

	updateErr error
}

func newFakeOrderRepo(orders ...domain.GiftOrder) *fakeOrderRepo {
	r := &fakeOrderRepo{orders: make(map[string]domain.GiftOrder)}
	for _, o := range orders {
		r.orders[o.ID] = o
	}
	return r
}

func (r *fakeOrderRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(fakeTxKey{}) != nil {
		return fn(ctx)
	}
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	snapshot := make(map[string]domain.GiftOrder, len(r.orders))
	for k, v := range r.orders {
		snapshot[k] = v
	}
	r.mu.Unlock()

	if err := fn(context.WithValue(ctx, fakeTxKey{}, true)); err != nil {
		r.mu.Lock()
		r.orders = snapshot
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *fakeOrderRepo) CreateOrder(_ context.Context, order domain.GiftOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.ID]; ok {
		return errors.New("duplicate order")
	}
	r.orders[order.ID] = order
	return nil
}

func (r *fakeOrderRepo) GetOrder(_ context.Context, id string) (domain.GiftOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return domain.GiftOrder{}, domain.ErrOrderNotFound
	}
	return o, nil
}

func (r *fakeOrderRepo) GetOrderForUpdate(ctx context.Context, id string) (domain.GiftOrder, error) {
	return r.GetOrder(ctx, id)
}

func (r *fakeOrderRepo) FindByClaimHash(_ context.Context, hash string) (domain.GiftOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.ClaimTokenHash != nil && *o.ClaimTokenHash == hash {
			return o, nil
		}
	}
	return domain.GiftOrder{}, domain.ErrOrderNotFound
}

func (r *fakeOrderRepo) FindByClaimHashForUpdate(ctx context.Context, hash string) (domain.GiftOrder, error) {
	return r.FindByClaimHash(ctx, hash)
}

func (r *fakeOrderRepo) UpdateOrder(_ context.Context, order domain.GiftOrder, expected domain.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	current, ok := r.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Status != expected {
		return domain.ErrOrderConflict
	}
	r.orders[order.ID] = order
	r.updates++
	return nil
}

func (r *fakeOrderRepo) ListOrders(_ context.Context, f domain.OrderFilter) ([]domain.GiftOrder, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []domain.GiftOrder
	for _, o := range r.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.Search != "" {
			hay := strings.ToLower(o.SenderName + " " + o.SenderEmail + " " + o.RecipientName + " " + o.RecipientEmail)
			if !strings.Contains(hay, strings.ToLower(f.Search)) {
				continue
			}
		}
		matched = append(matched, o)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := len(matched)
	if f.Offset >= total {
		return nil, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	return matched[f.Offset:end], total, nil
}

func (r *fakeOrderRepo) ListExpiredActive(_ context.Context, now time.Time, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for _, o := range r.orders {
		if o.Status == domain.OrderStatusActive && o.ClaimExpired(now) {
			ids = append(ids, o.ID)
		}
		if len(ids) == limit {
			break
		}
	}
	return ids, nil
}

func (r *fakeOrderRepo) get(id string) domain.GiftOrder {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orders[id]
}

type fakeCatalog struct {
	items map[string]domain.CatalogItem
}

func newFakeCatalog(items ...domain.CatalogItem) *fakeCatalog {
	c := &fakeCatalog{items: make(map[string]domain.CatalogItem)}
	for _, it := range items {
		c.items[it.ID] = it
	}
	return c
}

func (c *fakeCatalog) GetItem(_ context.Context, id string) (domain.CatalogItem, error) {
	it, ok := c.items[id]
	if !ok {
		return domain.CatalogItem{}, domain.ErrCatalogItemNotFound
	}
	return it, nil
}

func (c *fakeCatalog) ListWithinBudget(_ context.Context, maxCents int64) ([]domain.CatalogItem, error) {
	var out []domain.CatalogItem
	for _, it := range c.items {
		if it.Active && it.PriceCents <= maxCents {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PriceCents < out[j].PriceCents })
	return out, nil
}

type fakeAuditRepo struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (a *fakeAuditRepo) AppendAuditEvent(_ context.Context, e domain.AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
	return nil
}

func (a *fakeAuditRepo) ListAuditEvents(_ context.Context, orderID string) ([]domain.AuditEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []domain.AuditEvent
	for _, e := range a.events {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (a *fakeAuditRepo) types(orderID string) []domain.AuditEventType {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []domain.AuditEventType
	for _, e := range a.events {
		if e.OrderID == orderID {
			out = append(out, e.Type)
		}
	}
	return out
}

func (a *fakeAuditRepo) count(orderID string, typ domain.AuditEventType) int {
	n := 0
	for _, t := range a.types(orderID) {
		if t == typ {
			n++
		}
	}
	return n
}

type fakeOutbox struct {
	mu     sync.Mutex
	emails []domain.OutboxEmail
}

func (o *fakeOutbox) CreateEmail(_ context.Context, e domain.OutboxEmail) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.emails = append(o.emails, e)
	return nil
}

func (o *fakeOutbox) UpdateEmailStatus(_ context.Context, id string, status domain.EmailStatus, sentAt *time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.emails {
		if o.emails[i].ID == id {
			o.emails[i].Status = status
			o.emails[i].SentAt = sentAt
			return nil
		}
	}
	return errors.New("email not found")
}

func (o *fakeOutbox) ListEmails(_ context.Context, orderID string) ([]domain.OutboxEmail, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []domain.OutboxEmail
	for i := len(o.emails) - 1; i >= 0; i-- {
		if o.emails[i].OrderID == orderID {
			out = append(out, o.emails[i])
		}
	}
	return out, nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (s *fakeSender) Send(_ context.Context, msg notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

type fakeQueue struct {
	mu  sync.Mutex
	ids []string
	err bool
}

func (q *fakeQueue) Enqueue(orderID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err {
		return false
	}
	q.ids = append(q.ids, orderID)
	return true
}

type fakeProvider struct {
	mu    sync.Mutex
	calls []fulfillment.Request
	err   error
}

func (p *fakeProvider) Name() string { return "FAKE" }

func (p *fakeProvider) SendGift(_ context.Context, req fulfillment.Request) (fulfillment.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, req)
	if p.err != nil {
		return fulfillment.Result{}, p.err
	}
	return fulfillment.Result{
		ExternalID:  "ext-" + req.ProviderProductID,
		Deliverable: fulfillment.Deliverable{Type: "gift_card", Code: "CODE-1"},
		RawPayload:  []byte(`{"provider":"fake"}`),
	}, nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func int64Ptr(v int64) *int64 { return &v }

func timePtr(t time.Time) *time.Time { return &t }

// activeOrder returns an ACTIVE fixed-budget order reachable through the returned raw token.
func activeOrder(id string, budget int64, expires time.Time) (domain.GiftOrder, string) {
	token, err := claimtoken.Generate()
	if err != nil {
		panic(err)
	}
	hash, last4 := claimtoken.Hash(token), claimtoken.Last4(token)
	return domain.GiftOrder{
		ID:              id,
		SenderName:      "Ana",
		SenderEmail:     "ana@example.com",
		RecipientName:   "Luis",
		RecipientEmail:  "luis@example.com",
		AmountType:      domain.AmountTypeFixed,
		AmountFixed:     int64Ptr(budget),
		Currency:        "usd",
		Message:         "Happy birthday",
		CardTemplateID:  "classic",
		Status:          domain.OrderStatusActive,
		ClaimTokenHash:  &hash,
		ClaimTokenLast4: &last4,
		ClaimExpiresAt:  timePtr(expires),
	}, token
}
