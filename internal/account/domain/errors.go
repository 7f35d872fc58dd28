package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no account matches a lookup.
var ErrNotFound = errors.New("account not found")

// ValidationError reports malformed or contradictory input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ConflictError reports that another account already holds a unique value.
type ConflictError struct {
	Field Field
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("account with this %s already exists", e.Field)
}

// DeliveryError wraps a failure to deliver the verification code.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("verification code delivery failed: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
