package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cimillas/giftlink/internal/domain"
)

const (
	codeMethodNotAllowed   = "method_not_allowed"
	codeNotFound           = "not_found"
	codeInvalidRequestBody = "invalid_request_body"
	codeValidation         = "validation_failed"
	codeInvalidID          = "invalid_id"
	codeOrderNotFound      = "order_not_found"
	codeItemNotFound       = "item_not_found"
	codeClaimExpired       = "claim_expired"
	codeAlreadyClaimed     = "already_claimed"
	codeNotAvailable       = "not_available"
	codeBudgetExceeded     = "budget_exceeded"
	codeRateLimited        = "rate_limited"
	codeUnauthorized       = "unauthorized"
	codeInvalidTransition  = "invalid_state_transition"
	codeFulfillmentFailed  = "fulfillment_failed"
	codeAlreadyProcessed   = "already_processed"
	codeNothingToProcess   = "nothing_to_process"
	codeInvalidSignature   = "invalid_signature"
	codeForbidden          = "forbidden"
	codeInternalError      = "internal_error"
)

type errorResponse struct {
	Error  string              `json:"error"`
	Code   string              `json:"code"`
	Fields []domain.FieldError `json:"fields,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeErrorResponse(w, status, errorResponse{Error: msg, Code: code})
}

func writeErrorResponse(w http.ResponseWriter, status int, resp errorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(resp)
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps a service error to its status and code. Messages are
// fixed per code so internal detail never reaches the client.
func writeServiceError(w http.ResponseWriter, err error) {
	var verrs domain.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		writeErrorResponse(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Code: codeValidation, Fields: verrs})
	case errors.Is(err, domain.ErrInvalidID):
		writeError(w, http.StatusBadRequest, codeInvalidID, "invalid id")
	case errors.Is(err, domain.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, codeOrderNotFound, "invalid or unknown gift")
	case errors.Is(err, domain.ErrCatalogItemNotFound):
		writeError(w, http.StatusNotFound, codeItemNotFound, "catalog item not found")
	case errors.Is(err, domain.ErrClaimExpired):
		writeError(w, http.StatusGone, codeClaimExpired, "this gift link has expired")
	case errors.Is(err, domain.ErrAlreadyClaimed):
		writeError(w, http.StatusConflict, codeAlreadyClaimed, "this gift has already been claimed")
	case errors.Is(err, domain.ErrNotAvailable):
		writeError(w, http.StatusBadRequest, codeNotAvailable, "this gift is not available for claiming")
	case errors.Is(err, domain.ErrItemUnavailable):
		writeError(w, http.StatusBadRequest, codeBudgetExceeded, "selected item is not available")
	case errors.Is(err, domain.ErrBudgetExceeded):
		writeError(w, http.StatusBadRequest, codeBudgetExceeded, "selected item exceeds the gift budget")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, codeRateLimited, "too many requests")
	case errors.Is(err, domain.ErrAuth):
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid credentials")
	case errors.Is(err, domain.ErrInvalidStateTransition):
		writeError(w, http.StatusConflict, codeInvalidTransition, "action not allowed in the order's current status")
	case errors.Is(err, domain.ErrFulfillmentFailed):
		writeError(w, http.StatusBadGateway, codeFulfillmentFailed, "gift provider failed")
	case errors.Is(err, domain.ErrAlreadyProcessed):
		writeError(w, http.StatusConflict, codeAlreadyProcessed, "remainder already processed")
	case errors.Is(err, domain.ErrNothingToProcess):
		writeError(w, http.StatusBadRequest, codeNothingToProcess, "no remainder to process")
	case errors.Is(err, domain.ErrInvalidSignature):
		writeError(w, http.StatusBadRequest, codeInvalidSignature, "invalid signature")
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

// decodeJSON reads a single JSON object and rejects unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return false
	}
	return true
}

const maxBodyBytes = 64 << 10
