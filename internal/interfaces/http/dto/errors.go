package dto

import "net/http"

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeValidation is used for request validation failures
	ErrCodeValidation = "ERR_VALIDATION"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeStaleState is used when optimistic locking fails after retry
	ErrCodeStaleState = "ERR_STALE_STATE"
)

// Settlement business rule error codes
const (
	// ErrCodeIllegalTransition is used when an operation is invalid for the current state
	ErrCodeIllegalTransition = "ERR_ILLEGAL_TRANSITION"
	// ErrCodeInsufficientBalance is used when an allocation exceeds an available balance
	ErrCodeInsufficientBalance = "ERR_INSUFFICIENT_BALANCE"
	// ErrCodeUnbalancedNetting is used when netting sides do not cancel out
	ErrCodeUnbalancedNetting = "ERR_UNBALANCED_NETTING"
	// ErrCodeAllocationConflict is used when a change collides with existing allocations
	ErrCodeAllocationConflict = "ERR_ALLOCATION_CONFLICT"
	// ErrCodeInsufficientTargets is used when no voucher can absorb an allocation
	ErrCodeInsufficientTargets = "ERR_INSUFFICIENT_TARGETS"
	// ErrCodeModerationLocked is used when a moderation state blocks the mutation
	ErrCodeModerationLocked = "ERR_MODERATION_LOCKED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:    http.StatusInternalServerError,
	ErrCodeInternal:   http.StatusInternalServerError,
	ErrCodeBadRequest: http.StatusBadRequest,
	ErrCodeValidation: http.StatusBadRequest,

	ErrCodeNotFound:      http.StatusNotFound,
	ErrCodeAlreadyExists: http.StatusConflict,
	ErrCodeStaleState:    http.StatusConflict,

	// Business rule violations -> 422 Unprocessable Entity
	ErrCodeIllegalTransition:   http.StatusUnprocessableEntity,
	ErrCodeInsufficientBalance: http.StatusUnprocessableEntity,
	ErrCodeUnbalancedNetting:   http.StatusUnprocessableEntity,
	ErrCodeAllocationConflict:  http.StatusConflict,
	ErrCodeInsufficientTargets: http.StatusUnprocessableEntity,
	ErrCodeModerationLocked:    http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Returns 500 Internal Server Error if the error code is not found.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
