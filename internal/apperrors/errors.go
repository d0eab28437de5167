// internal/apperrors/errors.go
package apperrors

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Code identifies an error class across the API boundary.
type Code string

const (
	CodeValidation             Code = "VALIDATION_ERROR"
	CodeNotFound               Code = "NOT_FOUND"
	CodeForbidden              Code = "FORBIDDEN"
	CodeInvalidTransition      Code = "INVALID_TRANSITION"
	CodeConflictDetected       Code = "CONFLICT_DETECTED"
	CodeOfferExpired           Code = "OFFER_EXPIRED"
	CodeIneligibleForRenewal   Code = "INELIGIBLE_FOR_RENEWAL"
	CodeConcurrentModification Code = "CONCURRENT_MODIFICATION"
)

// Error is a business error with a stable code, a human-readable message and
// an optional structured payload (conflict lists, eligibility reasons).
type Error struct {
	Code    Code        `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Err     error       `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two business errors by code so callers can compare against the
// sentinel constructors with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func Validation(format string, args ...interface{}) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(resource string, id uuid.UUID) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %s not found", resource, id),
		Details: map[string]interface{}{"resource": resource, "id": id.String()},
	}
}

func Forbidden(format string, args ...interface{}) *Error {
	return &Error{Code: CodeForbidden, Message: fmt.Sprintf(format, args...)}
}

func InvalidTransition(from, to string) *Error {
	return &Error{
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("license cannot move from %s to %s", from, to),
		Details: map[string]interface{}{"from": from, "to": to},
	}
}

// ConflictDetected carries the full conflict list so callers can render each
// colliding license.
func ConflictDetected(conflicts interface{}) *Error {
	return &Error{
		Code:    CodeConflictDetected,
		Message: "proposed terms collide with one or more existing licenses",
		Details: conflicts,
	}
}

func OfferExpired(offerID uuid.UUID) *Error {
	return &Error{
		Code:    CodeOfferExpired,
		Message: fmt.Sprintf("renewal offer %s is no longer open", offerID),
	}
}

func Ineligible(reasons []string) *Error {
	return &Error{
		Code:    CodeIneligibleForRenewal,
		Message: "license is not eligible for renewal",
		Details: reasons,
	}
}

func ConcurrentModification() *Error {
	return &Error{
		Code:    CodeConcurrentModification,
		Message: "record was modified concurrently, retries exhausted",
	}
}

// CodeOf extracts the business code from err, or "" when err is not a
// business error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsRetryable reports whether the engine may retry the operation internally.
// Validation, permission and lookup failures never are.
func IsRetryable(err error) bool {
	return CodeOf(err) == CodeConcurrentModification
}
