package shared

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every core module. Callers classify with
// errors.Is; the HTTP layer maps each category to a response status.
var (
	// ErrValidation indicates malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates an unknown identifier.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition indicates a state machine violation.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrInsufficientBalance indicates a settlement or receipt would
	// over-draw an outstanding balance. Surfaced for manual
	// reconciliation, never clamped.
	ErrInsufficientBalance = errors.New("insufficient outstanding balance")
	// ErrConcurrencyConflict indicates a lost per-row lock race. The
	// caller may retry the whole operation from fresh state.
	ErrConcurrencyConflict = errors.New("concurrent update conflict")
)

// Validationf wraps ErrValidation with detail.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf wraps ErrNotFound with detail.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// InvalidTransitionf wraps ErrInvalidTransition with detail.
func InvalidTransitionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransition, fmt.Sprintf(format, args...))
}
