package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cimillas/giftlink/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OutboxRepository struct {
	store
}

func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{store{pool: pool}}
}

func (r *OutboxRepository) CreateEmail(ctx context.Context, e domain.OutboxEmail) error {
	const stmt = `
INSERT INTO email_outbox (id, order_id, to_email, subject, body, status, created_at, sent_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.exec(ctx, stmt, e.ID, e.OrderID, e.To, e.Subject, e.Body, string(e.Status), e.CreatedAt, e.SentAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrOrderNotFound
		}
		return fmt.Errorf("create outbox email: %w", err)
	}
	return nil
}

func (r *OutboxRepository) UpdateEmailStatus(ctx context.Context, id string, status domain.EmailStatus, sentAt *time.Time) error {
	tag, err := r.exec(ctx, `UPDATE email_outbox SET status = $2, sent_at = $3 WHERE id = $1`, id, string(status), sentAt)
	if err != nil {
		return fmt.Errorf("update outbox email: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update outbox email %s: no such email", id)
	}
	return nil
}

// ListEmails returns the outbox for orderID, newest first.
func (r *OutboxRepository) ListEmails(ctx context.Context, orderID string) ([]domain.OutboxEmail, error) {
	const query = `
SELECT id, order_id, to_email, subject, body, status, created_at, sent_at
FROM email_outbox
WHERE order_id = $1
ORDER BY seq DESC`

	rows, err := r.query(ctx, query, orderID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list outbox: %w", err)
	}
	defer rows.Close()

	var emails []domain.OutboxEmail
	for rows.Next() {
		var (
			e      domain.OutboxEmail
			status string
		)
		if err := rows.Scan(&e.ID, &e.OrderID, &e.To, &e.Subject, &e.Body, &status, &e.CreatedAt, &e.SentAt); err != nil {
			return nil, fmt.Errorf("scan outbox email: %w", err)
		}
		e.Status = domain.EmailStatus(status)
		e.CreatedAt = e.CreatedAt.UTC()
		e.SentAt = utcPtr(e.SentAt)
		emails = append(emails, e)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate outbox: %w", rows.Err())
	}
	return emails, nil
}
