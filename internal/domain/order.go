package domain

import "time"

type AmountType string

const (
	AmountTypeFixed AmountType = "FIXED"
	AmountTypeRange AmountType = "RANGE"
)

type RemainderAction string

const (
	RemainderGiftCard RemainderAction = "gift_card"
	RemainderDonate   RemainderAction = "donate"
)

// Valid reports whether a is one of the accepted remainder actions.
func (a RemainderAction) Valid() bool {
	return a == RemainderGiftCard || a == RemainderDonate
}

// GiftOrder is a funded, single-use voucher and its redemption state.
// Amounts are integer minor-currency units.
type GiftOrder struct {
	ID string

	SenderName     string
	SenderEmail    string
	RecipientName  string
	RecipientEmail string
	RecipientPhone *string

	AmountType  AmountType
	AmountFixed *int64
	AmountMin   *int64
	AmountMax   *int64
	Currency    string

	Occasion        *string
	Message         string
	CardTemplateID  string
	NotifyRecipient bool

	Status    OrderStatus
	CreatedAt time.Time
	UpdatedAt time.Time

	// ClaimTokenHash holds the SHA-256 of the raw claim token; the raw token is never stored.
	ClaimTokenHash  *string
	ClaimTokenLast4 *string
	ClaimExpiresAt  *time.Time
	ClaimedAt       *time.Time
	// ClaimValidDays is the claim window chosen at creation; 0 means the service default.
	ClaimValidDays  int

	SelectedItemID *string

	FulfillmentProvider   *string
	FulfillmentExternalID *string
	FulfillmentPayload    []byte

	PaymentReference  *string
	CheckoutSessionID *string

	RemainderCents     *int64
	RemainderAction    *RemainderAction
	RemainderFulfilled bool
}

// BudgetCeiling is the most the recipient may redeem: the fixed amount or the range maximum.
func (o GiftOrder) BudgetCeiling() int64 {
	if o.AmountType == AmountTypeFixed {
		if o.AmountFixed != nil {
			return *o.AmountFixed
		}
		return 0
	}
	if o.AmountMax != nil {
		return *o.AmountMax
	}
	return 0
}

// BudgetFloor is the lower bound shown to the recipient; equal to the ceiling for fixed budgets.
func (o GiftOrder) BudgetFloor() int64 {
	if o.AmountType == AmountTypeRange && o.AmountMin != nil {
		return *o.AmountMin
	}
	return o.BudgetCeiling()
}

// ClaimExpired reports whether the claim window has closed at now.
func (o GiftOrder) ClaimExpired(now time.Time) bool {
	return o.ClaimExpiresAt != nil && now.After(*o.ClaimExpiresAt)
}

// OutstandingRemainder returns the unprocessed remainder, or 0.
func (o GiftOrder) OutstandingRemainder() int64 {
	if o.RemainderCents == nil || o.RemainderFulfilled {
		return 0
	}
	return *o.RemainderCents
}

// OrderFilter narrows an operator listing. Search matches names, emails and id.
type OrderFilter struct {
	Search string
	Status OrderStatus
	Limit  int
	Offset int
}
