package models

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed input. *ValidationError matches it via errors.Is.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrSessionNotActive is returned when a vote is attempted outside the active phase.
	ErrSessionNotActive = errors.New("voting session is not active")
	// ErrInvalidState is returned for a disallowed session transition.
	ErrInvalidState = errors.New("invalid session state")
	// ErrForbidden is returned when the caller's role does not allow the operation.
	ErrForbidden = errors.New("insufficient permissions")
	// ErrRemoteUnavailable wraps failures of the shared store or notification channel.
	ErrRemoteUnavailable = errors.New("remote unavailable")
)

// ValidationError describes which field was rejected and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match any *ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError returns a *ValidationError for field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Unavailable wraps a store failure so it matches ErrRemoteUnavailable and keeps the cause.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrRemoteUnavailable, err)
}
