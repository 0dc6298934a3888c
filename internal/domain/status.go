package domain

import "fmt"

type OrderStatus string

const (
	OrderStatusDraft             OrderStatus = "DRAFT"
	OrderStatusAwaitingPayment   OrderStatus = "AWAITING_PAYMENT"
	OrderStatusPaid              OrderStatus = "PAID"
	OrderStatusActive            OrderStatus = "ACTIVE"
	OrderStatusLocked            OrderStatus = "LOCKED"
	OrderStatusRedeemed          OrderStatus = "REDEEMED"
	OrderStatusExpired           OrderStatus = "EXPIRED"
	OrderStatusFulfilling        OrderStatus = "FULFILLING"
	OrderStatusFulfilled         OrderStatus = "FULFILLED"
	OrderStatusFulfillmentFailed OrderStatus = "FULFILLMENT_FAILED"
	OrderStatusCanceled          OrderStatus = "CANCELED"
)

// AllOrderStatuses lists every status in lifecycle order.
var AllOrderStatuses = []OrderStatus{
	OrderStatusDraft,
	OrderStatusAwaitingPayment,
	OrderStatusPaid,
	OrderStatusActive,
	OrderStatusLocked,
	OrderStatusRedeemed,
	OrderStatusExpired,
	OrderStatusFulfilling,
	OrderStatusFulfilled,
	OrderStatusFulfillmentFailed,
	OrderStatusCanceled,
}

// transitions is the canonical lifecycle table. Anything absent is illegal.
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusDraft:             {OrderStatusAwaitingPayment, OrderStatusActive, OrderStatusCanceled},
	OrderStatusAwaitingPayment:   {OrderStatusPaid, OrderStatusActive, OrderStatusCanceled},
	OrderStatusPaid:              {OrderStatusActive, OrderStatusCanceled},
	OrderStatusActive:            {OrderStatusLocked, OrderStatusExpired, OrderStatusCanceled},
	OrderStatusLocked:            {OrderStatusFulfilling},
	OrderStatusFulfilling:        {OrderStatusFulfilled, OrderStatusFulfillmentFailed},
	OrderStatusFulfillmentFailed: {OrderStatusFulfilling},
}

// Transitions returns a copy of the legal targets for from.
func Transitions(from OrderStatus) []OrderStatus {
	return append([]OrderStatus(nil), transitions[from]...)
}

// CanTransition reports whether moving an order from one status to another is legal.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns an error wrapping ErrInvalidStateTransition for illegal moves.
func ValidateTransition(from, to OrderStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, from, to)
	}
	return nil
}

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusFulfilled || s == OrderStatusExpired || s == OrderStatusCanceled
}

// Claimed reports whether a redemption has already been committed for the status.
func (s OrderStatus) Claimed() bool {
	switch s {
	case OrderStatusLocked, OrderStatusRedeemed, OrderStatusFulfilling, OrderStatusFulfilled:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	for _, known := range AllOrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}
