package shared

import "errors"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Error codes for the settlement core. Every failure an operation can produce
// maps to exactly one of these; callers branch on codes, never on messages.
const (
	CodeValidation          = "ERR_VALIDATION"
	CodeNotFound            = "ERR_NOT_FOUND"
	CodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	CodeStaleState          = "ERR_STALE_STATE"
	CodeIllegalTransition   = "ERR_ILLEGAL_TRANSITION"
	CodeInsufficientBalance = "ERR_INSUFFICIENT_BALANCE"
	CodeUnbalancedNetting   = "ERR_UNBALANCED_NETTING"
	CodeAllocationConflict  = "ERR_ALLOCATION_CONFLICT"
	CodeInsufficientTargets = "ERR_INSUFFICIENT_TARGETS"
	CodeModerationLocked    = "ERR_MODERATION_LOCKED"
)

// Common domain errors
var (
	ErrNotFound          = NewDomainError(CodeNotFound, "Resource not found")
	ErrAlreadyExists     = NewDomainError(CodeAlreadyExists, "Resource already exists")
	ErrInvalidInput      = NewDomainError(CodeValidation, "Invalid input provided")
	ErrStaleState        = NewDomainError(CodeStaleState, "Resource was modified by another process")
	ErrIllegalTransition = NewDomainError(CodeIllegalTransition, "Operation not allowed in current state")
)

// IsCode reports whether err is a DomainError carrying the given code.
func IsCode(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the domain error code of err, or ERR_UNKNOWN for
// non-domain errors.
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return "ERR_UNKNOWN"
}
