package protocol

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed input detected before anything is sent.
// The device is never touched when a ValidationError is returned.
type ValidationError struct {
	// Field names the rejected input
	Field string

	// Expected is the required length in bytes (0 when not length related)
	Expected int

	// Actual is the received length in bytes
	Actual int

	// Reason describes non-length failures
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s must be exactly %d bytes, got %d", e.Field, e.Expected, e.Actual)
}

// ProtocolError represents a reply that was received but failed the length
// or sentinel checks for its command.
type ProtocolError struct {
	// Operation is the command that failed
	Operation string

	// Reason describes what was wrong with the reply
	Reason string

	// Reply holds the raw reply bytes
	Reply []byte
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s failed: %s (reply % X)", e.Operation, e.Reason, e.Reply)
}

// IsProtocolError returns true if err is or wraps a ProtocolError.
func IsProtocolError(err error) bool {
	var perr *ProtocolError
	return errors.As(err, &perr)
}

// IsValidationError returns true if err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

func lengthError(field string, expected, actual int) error {
	return &ValidationError{Field: field, Expected: expected, Actual: actual}
}
