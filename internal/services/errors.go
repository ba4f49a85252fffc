package services

import (
	"errors"
	"fmt"
)

// ErrItemNotFound is returned when a referenced id does not exist.
var ErrItemNotFound = errors.New("shopping item not found")

// ValidationError reports a single invalid input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func notFound(id int64) error {
	return fmt.Errorf("%w with id: %d", ErrItemNotFound, id)
}
