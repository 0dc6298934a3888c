package notify

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatAmount renders minor units as a dollar label, dropping zero cents: 7500 -> "$75", 1050 -> "$10.50".
func FormatAmount(cents int64) string {
	d := decimal.New(cents, -2)
	if cents%100 == 0 {
		return "$" + d.StringFixed(0)
	}
	return "$" + d.StringFixed(2)
}

// FormatBudget renders a fixed amount or a min-max range.
func FormatBudget(floor, ceiling int64) string {
	if floor == ceiling {
		return FormatAmount(ceiling)
	}
	return FormatAmount(floor) + "-" + FormatAmount(ceiling)
}

type SenderConfirmation struct {
	SenderName    string
	RecipientName string
	ClaimURL      string
	Amount        string
}

func (c SenderConfirmation) Build(to string) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", c.SenderName)
	fmt.Fprintf(&b, "Your %s gift for %s has been confirmed.\n\n", c.Amount, c.RecipientName)
	fmt.Fprintf(&b, "Share this link with your recipient:\n%s\n\n", c.ClaimURL)
	b.WriteString("This link can only be used once. Keep it safe!\n")
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Your gift link for %s is ready!", c.RecipientName),
		Body:    b.String(),
	}
}

type RecipientNotification struct {
	SenderName    string
	RecipientName string
	ClaimURL      string
	Message       string
	Amount        string
}

func (n RecipientNotification) Build(to string) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", n.RecipientName)
	fmt.Fprintf(&b, "%s sent you a gift worth up to %s.\n\n", n.SenderName, n.Amount)
	if n.Message != "" {
		fmt.Fprintf(&b, "%q\n\n", n.Message)
	}
	fmt.Fprintf(&b, "Claim your gift: %s\n\n", n.ClaimURL)
	b.WriteString("This gift link can only be used once.\n")
	return Message{
		To:      to,
		Subject: fmt.Sprintf("%s sent you a gift!", n.SenderName),
		Body:    b.String(),
	}
}
