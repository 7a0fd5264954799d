package bookings

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFoundOrForbidden hides whether a booking is missing or belongs to
	// someone else.
	ErrNotFoundOrForbidden = errors.New("booking not found or not authorized")
	ErrInvalidTransition   = errors.New("invalid status transition")
)

// FormatError reports a value that could not be parsed.
type FormatError struct {
	Field string
	Value string
}

func (e FormatError) Error() string {
	return fmt.Sprintf("invalid %s format: %q", e.Field, e.Value)
}

func (e FormatError) ClientSafe() bool { return true }

// TransitionError carries the rejected transition and matches ErrInvalidTransition.
type TransitionError struct {
	From Status
	To   Status
}

func (e TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

func (e TransitionError) ClientSafe() bool { return true }
