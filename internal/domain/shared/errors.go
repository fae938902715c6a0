// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation   = errors.New("validation error")
	ErrInvalidID    = errors.New("invalid ID")
	ErrInvalidInput = errors.New("invalid input")

	// Access errors - one per failing gate predicate so callers can tell
	// exactly which check rejected the operation.
	ErrPermissionDenied = errors.New("caller lacks the required role")
	ErrCourseClosed     = errors.New("course is closed")
	ErrAlreadyEnrolled  = errors.New("student is already enrolled")
	ErrNotEnrolled      = errors.New("student is not enrolled")

	// Operation input errors
	ErrEmptyField             = errors.New("required field is empty")
	ErrInvalidEvaluationIndex = errors.New("evaluation index does not exist")
	ErrScoreOutOfRange        = errors.New("score is out of the allowed range")
	ErrDuplicateDocument      = errors.New("identification document already registered")

	// Boundary errors
	ErrValueTransferRejected = errors.New("value transfers are not accepted")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "course", "roster", "grading"
	Op      string // Operation that failed, e.g., "AddTeacher", "SetGrade"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsPermissionDenied checks if the error is a role-check rejection.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsCourseClosed checks if the error is a lifecycle rejection.
func IsCourseClosed(err error) bool {
	return errors.Is(err, ErrCourseClosed)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyField) ||
		errors.Is(err, ErrScoreOutOfRange) ||
		errors.Is(err, ErrInvalidEvaluationIndex)
}

// IsConflict checks if the error is a roster-precondition conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrAlreadyEnrolled) ||
		errors.Is(err, ErrDuplicateDocument)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}
