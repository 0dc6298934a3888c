package app

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/cimillas/giftlink/internal/claimtoken"
	"github.com/cimillas/giftlink/internal/clock"
	"github.com/cimillas/giftlink/internal/domain"
	"github.com/cimillas/giftlink/internal/notify"
)

type OutboxRepository interface {
	CreateEmail(ctx context.Context, email domain.OutboxEmail) error
	UpdateEmailStatus(ctx context.Context, id string, status domain.EmailStatus, sentAt *time.Time) error
	ListEmails(ctx context.Context, orderID string) ([]domain.OutboxEmail, error)
}

// NotificationService sends order notifications and keeps an outbox copy of each.
type NotificationService struct {
	outbox OutboxRepository
	sender notify.Sender
	audit  *AuditLog
	clock  clock.Clock
	logger *slog.Logger
}

func NewNotificationService(outbox OutboxRepository, sender notify.Sender, audit *AuditLog, clk clock.Clock, logger *slog.Logger) *NotificationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationService{outbox: outbox, sender: sender, audit: audit, clock: clk, logger: logger}
}

// Send records msg as QUEUED, hands it to the sender and stores the outcome.
// Delivery problems are logged and recorded, never returned: a notification
// failure must not undo the order change that triggered it.
//
// Every secret is masked in the outbox copy; the sender still gets the full message.
func (s *NotificationService) Send(ctx context.Context, orderID string, msg notify.Message, secrets ...string) domain.EmailStatus {
	stored := msg
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		mask := "****" + claimtoken.Last4(secret)
		stored.Subject = strings.ReplaceAll(stored.Subject, secret, mask)
		stored.Body = strings.ReplaceAll(stored.Body, secret, mask)
	}

	email := domain.OutboxEmail{
		ID:        newUUID(),
		OrderID:   orderID,
		To:        msg.To,
		Subject:   stored.Subject,
		Body:      stored.Body,
		Status:    domain.EmailStatusQueued,
		CreatedAt: s.clock.Now(),
	}
	if err := s.outbox.CreateEmail(ctx, email); err != nil {
		s.logger.ErrorContext(ctx, "outbox insert failed", "order_id", orderID, "err", err)
		return domain.EmailStatusFailed
	}

	if err := s.sender.Send(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "email send failed", "order_id", orderID, "email_id", email.ID, "err", err)
		if err := s.outbox.UpdateEmailStatus(ctx, email.ID, domain.EmailStatusFailed, nil); err != nil {
			s.logger.ErrorContext(ctx, "outbox update failed", "email_id", email.ID, "err", err)
		}
		return domain.EmailStatusFailed
	}

	sentAt := s.clock.Now()
	if err := s.outbox.UpdateEmailStatus(ctx, email.ID, domain.EmailStatusSent, &sentAt); err != nil {
		s.logger.ErrorContext(ctx, "outbox update failed", "email_id", email.ID, "err", err)
	}
	if err := s.audit.Record(ctx, orderID, domain.AuditEmailSent, "Email sent: "+msg.Subject, map[string]any{
		"emailId": email.ID,
	}); err != nil {
		s.logger.ErrorContext(ctx, "audit email sent failed", "order_id", orderID, "err", err)
	}
	return domain.EmailStatusSent
}

// Emails lists the outbox for orderID, newest first.
func (s *NotificationService) Emails(ctx context.Context, orderID string) ([]domain.OutboxEmail, error) {
	return s.outbox.ListEmails(ctx, orderID)
}

func budgetLabel(order domain.GiftOrder) string {
	return notify.FormatBudget(order.BudgetFloor(), order.BudgetCeiling())
}

// sendActivation notifies the sender, and the recipient if they asked for it, that a claim link exists.
func (s *NotificationService) sendActivation(ctx context.Context, order domain.GiftOrder, baseURL, rawToken string) {
	s.Send(ctx, order.ID, notify.SenderConfirmation{
		SenderName:    order.SenderName,
		RecipientName: order.RecipientName,
		ClaimURL:      claimURL(baseURL, rawToken),
		Amount:        budgetLabel(order),
	}.Build(order.SenderEmail), rawToken)

	if order.NotifyRecipient {
		s.sendRecipient(ctx, order, baseURL, rawToken)
	}
}

func (s *NotificationService) sendRecipient(ctx context.Context, order domain.GiftOrder, baseURL, rawToken string) domain.EmailStatus {
	return s.Send(ctx, order.ID, notify.RecipientNotification{
		SenderName:    order.SenderName,
		RecipientName: order.RecipientName,
		ClaimURL:      claimURL(baseURL, rawToken),
		Message:       order.Message,
		Amount:        budgetLabel(order),
	}.Build(order.RecipientEmail), rawToken)
}
