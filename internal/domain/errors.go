package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation             = errors.New("validation failed")
	ErrInvalidID              = errors.New("invalid id")
	ErrOrderNotFound          = errors.New("order not found")
	ErrCatalogItemNotFound    = errors.New("catalog item not found")
	ErrClaimExpired           = errors.New("claim expired")
	ErrAlreadyClaimed         = errors.New("gift already claimed")
	ErrNotAvailable           = errors.New("gift not available for claiming")
	ErrBudgetExceeded         = errors.New("selected item exceeds the gift budget")
	ErrRateLimited            = errors.New("rate limited")
	ErrAuth                   = errors.New("invalid credentials")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrFulfillmentFailed      = errors.New("fulfillment failed")
	ErrAlreadyProcessed       = errors.New("remainder already processed")
	ErrNothingToProcess       = errors.New("no remainder to process")
	ErrNoSelectedItem         = errors.New("order has no selected item")
	ErrInvalidSignature       = errors.New("invalid webhook signature")
	ErrOrderConflict          = errors.New("order was modified concurrently")
)

// ErrItemUnavailable is a budget-fit failure for inactive or unknown items.
var ErrItemUnavailable = fmt.Errorf("%w: selected item is not available", ErrBudgetExceeded)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects every failing field of a request. It matches ErrValidation.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}
