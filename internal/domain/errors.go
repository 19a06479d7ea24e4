package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signals malformed client input (query or filters).
	ErrValidation = errors.New("validation failed")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrExternalService signals a collaborator failure after any retry budget
	// is exhausted.
	ErrExternalService = errors.New("external service error")
)

// ExternalServiceError wraps ErrExternalService with the failing service name
// and the underlying cause.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return ErrExternalService }

// NewExternalServiceError creates an external service error.
func NewExternalServiceError(service string, err error) error {
	return &ExternalServiceError{Service: service, Err: err}
}
