package app

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/cimillas/giftlink/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	maxMessageLength  = 500
	minExpirationDays = 1
	maxExpirationDays = 90
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	minAmount    = decimal.NewFromInt(10)
	maxAmount    = decimal.NewFromInt(500)
)

func validateGift(in CreateGiftInput) domain.ValidationErrors {
	var errs domain.ValidationErrors
	add := func(field, msg string) {
		errs = append(errs, domain.FieldError{Field: field, Message: msg})
	}

	if strings.TrimSpace(in.SenderName) == "" {
		add("sender_name", "Sender name is required")
	}
	if !emailPattern.MatchString(strings.TrimSpace(in.SenderEmail)) {
		add("sender_email", "Valid sender email is required")
	}
	if strings.TrimSpace(in.RecipientName) == "" {
		add("recipient_name", "Recipient name is required")
	}
	if !emailPattern.MatchString(strings.TrimSpace(in.RecipientEmail)) {
		add("recipient_email", "Valid recipient email is required")
	}

	switch in.AmountType {
	case domain.AmountTypeFixed:
		if in.AmountFixed == nil || in.AmountFixed.LessThan(minAmount) || in.AmountFixed.GreaterThan(maxAmount) {
			add("amount_fixed", "Amount must be between $10 and $500")
		}
	case domain.AmountTypeRange:
		if in.AmountMin == nil || in.AmountMin.LessThan(minAmount) {
			add("amount_min", "Minimum must be at least $10")
		}
		if in.AmountMax == nil || in.AmountMax.GreaterThan(maxAmount) || in.AmountMax.LessThan(minAmount) {
			add("amount_max", "Maximum must be between $10 and $500")
		}
		if in.AmountMin != nil && in.AmountMax != nil && in.AmountMin.GreaterThan(*in.AmountMax) {
			add("amount_min", "Minimum must be less than or equal to maximum")
		}
	default:
		add("amount_type", "Amount type must be FIXED or RANGE")
	}

	if strings.TrimSpace(in.Message) == "" {
		add("message", "A message is required")
	}
	if utf8.RuneCountInString(in.Message) > maxMessageLength {
		add("message", "Message must be under 500 characters")
	}
	if strings.TrimSpace(in.CardTemplateID) == "" {
		add("card_template_id", "Please select a card template")
	}
	if in.ExpirationDays != 0 && (in.ExpirationDays < minExpirationDays || in.ExpirationDays > maxExpirationDays) {
		add("expiration_days", "Expiration must be between 1 and 90 days")
	}
	return errs
}

// toCents converts whole currency units to minor units, rounding half away from zero.
func toCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}
