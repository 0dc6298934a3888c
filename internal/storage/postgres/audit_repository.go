package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cimillas/giftlink/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditRepository appends audit events. Inside WithTx the insert joins the
// caller's transaction, so an event never outlives a rolled back change.
type AuditRepository struct {
	store
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{store{pool: pool}}
}

func (r *AuditRepository) AppendAuditEvent(ctx context.Context, e domain.AuditEvent) error {
	const stmt = `
INSERT INTO audit_events (id, order_id, type, message, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	var metadata map[string]any
	if len(e.Metadata) > 0 {
		metadata = e.Metadata
	}
	_, err := r.exec(ctx, stmt, e.ID, e.OrderID, string(e.Type), e.Message, metadata, e.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isForeignKeyViolation(err) {
			return domain.ErrOrderNotFound
		}
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// ListAuditEvents returns the trail for orderID in insertion order.
func (r *AuditRepository) ListAuditEvents(ctx context.Context, orderID string) ([]domain.AuditEvent, error) {
	const query = `
SELECT id, order_id, type, message, metadata, created_at
FROM audit_events
WHERE order_id = $1
ORDER BY seq ASC`

	rows, err := r.query(ctx, query, orderID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []domain.AuditEvent
	for rows.Next() {
		var (
			e         domain.AuditEvent
			typ       string
			createdAt time.Time
		)
		if err := rows.Scan(&e.ID, &e.OrderID, &typ, &e.Message, &e.Metadata, &createdAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Type = domain.AuditEventType(typ)
		e.CreatedAt = createdAt.UTC()
		events = append(events, e)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate audit events: %w", rows.Err())
	}
	return events, nil
}
