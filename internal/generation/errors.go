package generation

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a provider failure.
type ErrorKind string

// Provider failure kinds
const (
	KindAuthenticationRejected ErrorKind = "authentication_rejected"
	KindProviderUnavailable    ErrorKind = "provider_unavailable"
	KindMalformedResponse      ErrorKind = "malformed_response"
	KindTimeout                ErrorKind = "timeout"
	KindRateLimited            ErrorKind = "rate_limited"
)

// Common errors returned by the generation package
var (
	// ErrInvalidConfig is returned when the provider configuration is invalid
	ErrInvalidConfig = errors.New("invalid provider configuration")

	// ErrEmptyPrompt is returned when Generate is called without a prompt
	ErrEmptyPrompt = errors.New("prompt must not be empty")
)

// ProviderError is the failure type returned by every Provider.
type ProviderError struct {
	Kind     ErrorKind
	Provider string
	Message  string
	Err      error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError builds a ProviderError.
func NewProviderError(provider string, kind ErrorKind, message string, err error) *ProviderError {
	return &ProviderError{Kind: kind, Provider: provider, Message: message, Err: err}
}

// KindOf returns the kind of a provider failure. Errors that are not a
// *ProviderError are classified by context state, defaulting to
// KindProviderUnavailable.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindProviderUnavailable
}

// KindForStatus maps an upstream HTTP status code to a failure kind.
func KindForStatus(code int) ErrorKind {
	switch {
	case code == 401 || code == 403:
		return KindAuthenticationRejected
	case code == 429:
		return KindRateLimited
	case code == 408 || code == 504:
		return KindTimeout
	case code >= 400 && code < 500:
		return KindMalformedResponse
	default:
		return KindProviderUnavailable
	}
}
