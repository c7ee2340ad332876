package domain

import "errors"

// ErrNotFound is returned when a record does not exist for the requesting
// owner. Records owned by someone else are reported the same way.
var ErrNotFound = errors.New("not found")

// ErrConcurrencyConflict indicates that the underlying storage rejected an
// update because a newer version of the entity is already persisted.
var ErrConcurrencyConflict = errors.New("concurrency conflict")

// ValidationError reports missing or malformed client input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Field + " is invalid"
}

func required(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
