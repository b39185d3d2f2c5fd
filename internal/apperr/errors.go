// Package apperr defines the error taxonomy shared by the reward components.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAlreadyClaimedToday = errors.New("bonus already claimed today")
	ErrGatingBlocked       = errors.New("required subscriptions missing")
	ErrRequestConsumed     = errors.New("withdrawal request already processed")
	ErrUnavailable         = errors.New("storage unavailable")
)

// ValidationError reports malformed or out-of-range user input.
// Message is shown to the user as is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validation builds a ValidationError with a formatted message
func Validation(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is or wraps a ValidationError and returns it
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// Unavailable wraps a storage failure so callers can show a generic message
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
