package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cimillas/giftlink/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const orderColumns = `
	id, sender_name, sender_email, recipient_name, recipient_email, recipient_phone,
	amount_type, amount_fixed, amount_min, amount_max, currency,
	occasion, message, card_template_id, notify_recipient,
	status, created_at, updated_at,
	claim_token_hash, claim_token_last4, claim_expires_at, claimed_at, claim_valid_days,
	selected_item_id, fulfillment_provider, fulfillment_external_id, fulfillment_payload,
	payment_reference, checkout_session_id,
	remainder_cents, remainder_action, remainder_fulfilled`

type OrderRepository struct {
	store
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{store{pool: pool}}
}

func (r *OrderRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *OrderRepository) CreateOrder(ctx context.Context, o domain.GiftOrder) error {
	const stmt = `
INSERT INTO gift_orders (` + orderColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
	$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32)`

	_, err := r.exec(ctx, stmt,
		o.ID, o.SenderName, o.SenderEmail, o.RecipientName, o.RecipientEmail, o.RecipientPhone,
		string(o.AmountType), o.AmountFixed, o.AmountMin, o.AmountMax, o.Currency,
		o.Occasion, o.Message, o.CardTemplateID, o.NotifyRecipient,
		string(o.Status), o.CreatedAt, o.UpdatedAt,
		o.ClaimTokenHash, o.ClaimTokenLast4, o.ClaimExpiresAt, o.ClaimedAt, o.ClaimValidDays,
		o.SelectedItemID, o.FulfillmentProvider, o.FulfillmentExternalID, o.FulfillmentPayload,
		o.PaymentReference, o.CheckoutSessionID,
		o.RemainderCents, actionText(o.RemainderAction), o.RemainderFulfilled,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (r *OrderRepository) GetOrder(ctx context.Context, id string) (domain.GiftOrder, error) {
	return r.getOrder(ctx, `SELECT `+orderColumns+` FROM gift_orders WHERE id = $1`, id)
}

func (r *OrderRepository) GetOrderForUpdate(ctx context.Context, id string) (domain.GiftOrder, error) {
	return r.getOrder(ctx, `SELECT `+orderColumns+` FROM gift_orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *OrderRepository) FindByClaimHash(ctx context.Context, hash string) (domain.GiftOrder, error) {
	return r.getOrder(ctx, `SELECT `+orderColumns+` FROM gift_orders WHERE claim_token_hash = $1`, hash)
}

// FindByClaimHashForUpdate holds the row lock until the surrounding transaction ends,
// which serializes concurrent claims of the same token.
func (r *OrderRepository) FindByClaimHashForUpdate(ctx context.Context, hash string) (domain.GiftOrder, error) {
	return r.getOrder(ctx, `SELECT `+orderColumns+` FROM gift_orders WHERE claim_token_hash = $1 FOR UPDATE`, hash)
}

func (r *OrderRepository) getOrder(ctx context.Context, query string, arg string) (domain.GiftOrder, error) {
	o, err := scanOrder(r.queryRow(ctx, query, arg))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.GiftOrder{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.GiftOrder{}, domain.ErrOrderNotFound
		}
		return domain.GiftOrder{}, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// UpdateOrder writes every mutable column, guarded by the status the caller read.
func (r *OrderRepository) UpdateOrder(ctx context.Context, o domain.GiftOrder, expected domain.OrderStatus) error {
	const stmt = `
UPDATE gift_orders SET
	status = $3,
	updated_at = $4,
	claim_token_hash = $5,
	claim_token_last4 = $6,
	claim_expires_at = $7,
	claimed_at = $8,
	selected_item_id = $9,
	fulfillment_provider = $10,
	fulfillment_external_id = $11,
	fulfillment_payload = $12,
	payment_reference = $13,
	checkout_session_id = $14,
	remainder_cents = $15,
	remainder_action = $16,
	remainder_fulfilled = $17
WHERE id = $1 AND status = $2`

	tag, err := r.exec(ctx, stmt,
		o.ID, string(expected),
		string(o.Status), o.UpdatedAt,
		o.ClaimTokenHash, o.ClaimTokenLast4, o.ClaimExpiresAt, o.ClaimedAt,
		o.SelectedItemID, o.FulfillmentProvider, o.FulfillmentExternalID, o.FulfillmentPayload,
		o.PaymentReference, o.CheckoutSessionID,
		o.RemainderCents, actionText(o.RemainderAction), o.RemainderFulfilled,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.queryRow(ctx, `SELECT EXISTS (SELECT 1 FROM gift_orders WHERE id = $1)`, o.ID).Scan(&exists); err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if !exists {
		return domain.ErrOrderNotFound
	}
	return domain.ErrOrderConflict
}

// ListOrders returns one page of orders, newest first, and the total number of matches.
func (r *OrderRepository) ListOrders(ctx context.Context, f domain.OrderFilter) ([]domain.GiftOrder, int, error) {
	const where = `
WHERE ($1 = '' OR status = $1)
  AND ($2 = '' OR id::text ILIKE '%' || $2 || '%'
       OR sender_name ILIKE '%' || $2 || '%'
       OR sender_email ILIKE '%' || $2 || '%'
       OR recipient_name ILIKE '%' || $2 || '%'
       OR recipient_email ILIKE '%' || $2 || '%')`

	status, search := string(f.Status), escapeLike(f.Search)

	var total int
	if err := r.queryRow(ctx, `SELECT COUNT(*) FROM gift_orders`+where, status, search).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	rows, err := r.query(ctx,
		`SELECT `+orderColumns+` FROM gift_orders`+where+` ORDER BY created_at DESC, id LIMIT $3 OFFSET $4`,
		status, search, f.Limit, f.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.GiftOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if rows.Err() != nil {
		return nil, 0, fmt.Errorf("iterate orders: %w", rows.Err())
	}
	return orders, total, nil
}

// ListExpiredActive returns up to limit ACTIVE orders whose claim window closed before now.
func (r *OrderRepository) ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]string, error) {
	const query = `
SELECT id FROM gift_orders
WHERE status = 'ACTIVE' AND claim_expires_at < $1
ORDER BY claim_expires_at
LIMIT $2`

	rows, err := r.query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired orders: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list expired orders: %w", err)
	}
	return ids, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (domain.GiftOrder, error) {
	var (
		o          domain.GiftOrder
		amountType string
		status     string
		action     *string
	)
	err := row.Scan(
		&o.ID, &o.SenderName, &o.SenderEmail, &o.RecipientName, &o.RecipientEmail, &o.RecipientPhone,
		&amountType, &o.AmountFixed, &o.AmountMin, &o.AmountMax, &o.Currency,
		&o.Occasion, &o.Message, &o.CardTemplateID, &o.NotifyRecipient,
		&status, &o.CreatedAt, &o.UpdatedAt,
		&o.ClaimTokenHash, &o.ClaimTokenLast4, &o.ClaimExpiresAt, &o.ClaimedAt, &o.ClaimValidDays,
		&o.SelectedItemID, &o.FulfillmentProvider, &o.FulfillmentExternalID, &o.FulfillmentPayload,
		&o.PaymentReference, &o.CheckoutSessionID,
		&o.RemainderCents, &action, &o.RemainderFulfilled,
	)
	if err != nil {
		return domain.GiftOrder{}, err
	}
	o.AmountType = domain.AmountType(amountType)
	o.Status = domain.OrderStatus(status)
	if action != nil {
		a := domain.RemainderAction(*action)
		o.RemainderAction = &a
	}
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	o.ClaimExpiresAt = utcPtr(o.ClaimExpiresAt)
	o.ClaimedAt = utcPtr(o.ClaimedAt)
	return o, nil
}

func actionText(a *domain.RemainderAction) *string {
	if a == nil {
		return nil
	}
	s := string(*a)
	return &s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
