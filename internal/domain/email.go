package domain

import "time"

type EmailStatus string

const (
	EmailStatusQueued EmailStatus = "QUEUED"
	EmailStatusSent   EmailStatus = "SENT"
	EmailStatusFailed EmailStatus = "FAILED"
)

// OutboxEmail is the audit copy of a notification sent for an order.
type OutboxEmail struct {
	ID        string
	OrderID   string
	To        string
	Subject   string
	Body      string
	Status    EmailStatus
	CreatedAt time.Time
	SentAt    *time.Time
}
