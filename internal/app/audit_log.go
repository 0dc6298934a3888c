package app

import (
	"context"
	"log/slog"

	"github.com/cimillas/giftlink/internal/clock"
	"github.com/cimillas/giftlink/internal/domain"
)

type AuditRepository interface {
	AppendAuditEvent(ctx context.Context, event domain.AuditEvent) error
	ListAuditEvents(ctx context.Context, orderID string) ([]domain.AuditEvent, error)
}

// AuditLog records state-changing actions. Events are appended, never updated.
// When ctx carries a repository transaction the event commits or rolls back with it.
type AuditLog struct {
	repo   AuditRepository
	clock  clock.Clock
	logger *slog.Logger
}

func NewAuditLog(repo AuditRepository, clk clock.Clock, logger *slog.Logger) *AuditLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLog{repo: repo, clock: clk, logger: logger}
}

func (a *AuditLog) Record(ctx context.Context, orderID string, typ domain.AuditEventType, message string, metadata map[string]any) error {
	event := domain.AuditEvent{
		ID:        newUUID(),
		OrderID:   orderID,
		Type:      typ,
		Message:   message,
		Metadata:  metadata,
		CreatedAt: a.clock.Now(),
	}
	if err := a.repo.AppendAuditEvent(ctx, event); err != nil {
		return err
	}
	a.logger.DebugContext(ctx, "audit event", "order_id", orderID, "type", string(typ))
	return nil
}

// Events returns the trail for orderID, oldest first.
func (a *AuditLog) Events(ctx context.Context, orderID string) ([]domain.AuditEvent, error) {
	return a.repo.ListAuditEvents(ctx, orderID)
}
