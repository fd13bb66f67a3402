package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/batchgen/internal/store"
)

// Common service errors - sentinel errors used across service implementations.
// Callers check them with errors.Is; the API layer maps them to status codes.
var (
	// ErrNotOwned indicates a resource is owned by a different user than the one making the request.
	// API layer should map this to HTTP 404 Not Found so existence is not disclosed.
	ErrNotOwned = errors.New("resource is owned by another user")

	// ErrSessionNotFound indicates that the generation session does not exist.
	ErrSessionNotFound = errors.New("generation session not found")

	// ErrResultNotFound indicates that the result does not exist or is not the caller's.
	ErrResultNotFound = errors.New("generation result not found")

	// ErrSessionFinished is returned when cancelling a session that already ended.
	ErrSessionFinished = errors.New("generation session already finished")
)

// ServiceError wraps an unexpected failure with the service and operation it
// happened in.
type ServiceError struct {
	Service string
	Op      string
	Message string
	Err     error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	msg := fmt.Sprintf("%s service %s operation failed", e.Service, e.Op)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError wraps err. Store not-found errors are translated into the
// service sentinels and returned unwrapped, as are service sentinels.
func NewServiceError(service, op, message string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, store.ErrSessionNotFound):
		return ErrSessionNotFound
	case errors.Is(err, ErrResultNotFound), errors.Is(err, store.ErrResultNotFound):
		return ErrResultNotFound
	case errors.Is(err, ErrNotOwned):
		return ErrNotOwned
	}

	return &ServiceError{
		Service: service,
		Op:      op,
		Message: message,
		Err:     err,
	}
}
