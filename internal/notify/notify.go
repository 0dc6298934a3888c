// Package notify delivers plain-text notifications about gift orders.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Message is one outgoing notification.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a message or reports why it could not.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender selects a sender by its configured name.
func NewSender(name string, logger *slog.Logger) (Sender, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "stub":
		return NewStubSender(logger), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", name)
	}
}

// StubSender writes messages to the log instead of sending them.
type StubSender struct {
	logger *slog.Logger
}

func NewStubSender(logger *slog.Logger) *StubSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubSender{logger: logger}
}

func (s *StubSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("stub sender: empty recipient")
	}
	body := msg.Body
	if len(body) > 500 {
		body = body[:500]
	}
	s.logger.InfoContext(ctx, "stub email", "to", msg.To, "subject", msg.Subject, "body", body)
	return nil
}
