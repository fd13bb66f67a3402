package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/batchgen/internal/api/shared"
	"github.com/phrazzld/batchgen/internal/credential"
	"github.com/phrazzld/batchgen/internal/domain"
	"github.com/phrazzld/batchgen/internal/generation"
	"github.com/phrazzld/batchgen/internal/service"
	"github.com/phrazzld/batchgen/internal/service/auth"
	"github.com/phrazzld/batchgen/internal/store"
)

// ErrorCodeNoValidCredentials is returned with 422 when a user without a
// usable API key submits a generation.
const ErrorCodeNoValidCredentials = "no_valid_credentials"

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrWrongTokenType),
		errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized

	// Not found errors. Resources of other users are reported as missing.
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrResultNotFound),
		errors.Is(err, service.ErrNotOwned),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, service.ErrSessionFinished):
		return http.StatusConflict

	// Precondition errors
	case errors.Is(err, credential.ErrNoCredentialsAvailable):
		return http.StatusUnprocessableEntity

	// Bad request errors
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	// Upstream provider errors
	case isProviderError(err):
		switch generation.KindOf(err) {
		case generation.KindRateLimited:
			return http.StatusTooManyRequests
		case generation.KindTimeout:
			return http.StatusGatewayTimeout
		default:
			return http.StatusBadGateway
		}

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrWrongTokenType):
		return "Invalid token"

	case errors.Is(err, domain.ErrUnauthorized):
		return "Unauthorized"

	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrNotOwned),
		errors.Is(err, store.ErrSessionNotFound):
		return "Generation session not found"

	case errors.Is(err, service.ErrResultNotFound),
		errors.Is(err, store.ErrResultNotFound):
		return "Result not found"

	case errors.Is(err, store.ErrNotFound):
		return "Not found"

	case errors.Is(err, service.ErrSessionFinished):
		return "Generation session already finished"

	case errors.Is(err, credential.ErrNoCredentialsAvailable):
		return "No valid API keys available. Validate at least one key first"

	case errors.Is(err, domain.ErrValidation):
		return validationMessage(err)

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"

	case isProviderError(err):
		switch generation.KindOf(err) {
		case generation.KindAuthenticationRejected:
			return "The provider rejected your API keys"
		case generation.KindRateLimited:
			return "The provider rate limited your API keys. Try again later"
		case generation.KindTimeout:
			return "The provider did not answer in time"
		case generation.KindMalformedResponse:
			return "The provider returned an unusable answer"
		default:
			return "The provider is unavailable"
		}

	default:
		return "An unexpected error occurred"
	}
}

func isProviderError(err error) bool {
	var pe *generation.ProviderError
	return errors.As(err, &pe)
}

// validationMessage returns the domain validation text without the generic
// prefix. Domain validation messages are written for users and carry no
// internal detail.
func validationMessage(err error) string {
	msg := err.Error()
	prefix := domain.ErrValidation.Error() + ": "
	if i := strings.LastIndex(msg, prefix); i >= 0 {
		return msg[i+len(prefix):]
	}
	return "Validation error"
}

// HandleAPIError maps err to a status and safe message, logs the redacted
// details and writes the error response. fallbackMessage replaces the
// generic message for unexpected (500) errors when non-empty.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallbackMessage string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallbackMessage != "" {
		message = fallbackMessage
	}

	var opts []shared.ResponseOption
	if errors.Is(err, credential.ErrNoCredentialsAvailable) {
		opts = append(opts, shared.WithErrorCode(ErrorCodeNoValidCredentials))
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
}

// SanitizeValidationError turns the first failed field of a validator error
// into a short message naming the JSON field. Submitted values are never
// echoed.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		if errors.Is(err, domain.ErrValidation) {
			return validationMessage(err)
		}
		return "Validation error"
	}
	fe := verrs[0]
	return fmt.Sprintf("Invalid %s: %s", fe.Field(), validationTagMessage(fe.Tag()))
}

func validationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "url", "http_url":
		return "invalid URL"
	case "min", "gte":
		return "too small"
	case "max", "lte":
		return "too large"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
