package meter

import "errors"

var (
	// ErrValidation is the kind of every rejected user input.
	ErrValidation = errors.New("meter: validation failed")
	// ErrFormat is returned when a snapshot lacks a required top-level key.
	ErrFormat = errors.New("meter: invalid snapshot format")
	// ErrParse is returned when a snapshot payload cannot be decoded.
	ErrParse = errors.New("meter: malformed snapshot")
	// ErrNotFound is returned when an entry id is unknown.
	ErrNotFound = errors.New("meter: entry not found")
	// ErrPersist wraps store failures.
	ErrPersist = errors.New("meter: persistence failed")
)

// ValidationError describes a rejected field.
type ValidationError struct {
	Field  string
	Reason string
	Cause  error
}

func (e *ValidationError) Error() string {
	return "meter: invalid " + e.Field + ": " + e.Reason
}

// Is makes errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error { return e.Cause }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
