package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/batchgen/internal/api/shared"
	"github.com/phrazzld/batchgen/internal/credential"
	"github.com/phrazzld/batchgen/internal/domain"
	"github.com/phrazzld/batchgen/internal/generation"
	"github.com/phrazzld/batchgen/internal/service"
	"github.com/phrazzld/batchgen/internal/service/auth"
	"github.com/phrazzld/batchgen/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapErrorToStatusCode(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
	}{
		{
			name:           "nil error",
			err:            nil,
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:           "authentication error",
			err:            auth.ErrInvalidToken,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "wrapped authentication error",
			err:            fmt.Errorf("failed to authenticate: %w", auth.ErrExpiredToken),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "unauthorized",
			err:            domain.ErrUnauthorized,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "session not found",
			err:            service.ErrSessionNotFound,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "session of another user",
			err:            service.ErrNotOwned,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "store not found wrapped by service",
			err:            service.NewServiceError("results", "select", "failed", store.ErrResultNotFound),
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "session already finished",
			err:            service.ErrSessionFinished,
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "no credentials",
			err:            fmt.Errorf("start: %w", credential.ErrNoCredentialsAvailable),
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "domain validation",
			err:            domain.ErrNoCredentialKeys,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid entity",
			err:            store.ErrInvalidEntity,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "provider rejected key",
			err:            generation.NewProviderError("gemini", generation.KindAuthenticationRejected, "", nil),
			expectedStatus: http.StatusBadGateway,
		},
		{
			name:           "provider rate limited",
			err:            generation.NewProviderError("gemini", generation.KindRateLimited, "", nil),
			expectedStatus: http.StatusTooManyRequests,
		},
		{
			name:           "provider timeout",
			err:            fmt.Errorf("write script: %w", generation.NewProviderError("openai", generation.KindTimeout, "", nil)),
			expectedStatus: http.StatusGatewayTimeout,
		},
		{
			name:           "unknown error",
			err:            errors.New("connection reset"),
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedStatus, MapErrorToStatusCode(tt.err))
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil error", nil, "An unexpected error occurred"},
		{"invalid token", auth.ErrInvalidToken, "Invalid token"},
		{"session not found", service.ErrSessionNotFound, "Generation session not found"},
		{"not owned hides existence", service.ErrNotOwned, "Generation session not found"},
		{"result not found", store.ErrResultNotFound, "Result not found"},
		{"finished", service.ErrSessionFinished, "Generation session already finished"},
		{
			"no credentials",
			credential.ErrNoCredentialsAvailable,
			"No valid API keys available. Validate at least one key first",
		},
		{"validation message kept", domain.ErrTooManyCredentialKeys, "too many API keys in one request"},
		{
			"wrapped validation message kept",
			fmt.Errorf("start generation: %w", fmt.Errorf("%w: prompt 2 is empty", domain.ErrValidation)),
			"prompt 2 is empty",
		},
		{
			"provider detail hidden",
			generation.NewProviderError("gemini", generation.KindMalformedResponse, "no characters in response", errors.New("unexpected end of JSON input")),
			"The provider returned an unusable answer",
		},
		{
			"internal detail hidden",
			errors.New("pq: relation \"generation_sessions\" does not exist"),
			"An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetSafeErrorMessage(tt.err))
		})
	}
}

func TestHandleAPIError(t *testing.T) {
	t.Run("no credentials carries error code", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/generations", nil)
		rr := httptest.NewRecorder()

		HandleAPIError(rr, req, credential.ErrNoCredentialsAvailable, "Failed to start generation")

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		var resp shared.ErrorResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, ErrorCodeNoValidCredentials, resp.ErrorCode)
	})

	t.Run("internal error uses fallback message", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/generations", nil)
		rr := httptest.NewRecorder()

		HandleAPIError(rr, req, errors.New("postgres://user:secret@db:5432 refused"), "Failed to list generations")

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		var resp shared.ErrorResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, "Failed to list generations", resp.Error)
		assert.Empty(t, resp.ErrorCode)
		assert.NotContains(t, rr.Body.String(), "secret")
	})

	t.Run("fallback ignored for client errors", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/generations/x", nil)
		rr := httptest.NewRecorder()

		HandleAPIError(rr, req, service.ErrSessionNotFound, "Failed to get generation")

		assert.Equal(t, http.StatusNotFound, rr.Code)
		var resp shared.ErrorResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, "Generation session not found", resp.Error)
	})
}

func TestSanitizeValidationError(t *testing.T) {
	t.Run("required field uses json name", func(t *testing.T) {
		err := shared.ValidateRequest(&ValidateCredentialsRequest{})
		require.Error(t, err)
		assert.Equal(t, "Invalid apiKeys: required field", SanitizeValidationError(err))
	})

	t.Run("url field", func(t *testing.T) {
		err := shared.ValidateRequest(&StartGenerationRequest{
			Prompts:           []string{"a"},
			VariationsCount:   1,
			ReferenceImageURL: "nope",
		})
		require.Error(t, err)
		assert.Equal(t, "Invalid referenceImageUrl: invalid URL", SanitizeValidationError(err))
	})

	t.Run("submitted value not echoed", func(t *testing.T) {
		err := shared.ValidateRequest(&StartGenerationRequest{
			Prompts:           []string{"a"},
			VariationsCount:   1,
			ReferenceImageURL: "sk-live-secret",
		})
		require.Error(t, err)
		assert.NotContains(t, SanitizeValidationError(err), "sk-live")
	})

	t.Run("domain validation message", func(t *testing.T) {
		assert.Equal(t, "too many API keys in one request", SanitizeValidationError(domain.ErrTooManyCredentialKeys))
	})

	t.Run("non validator error", func(t *testing.T) {
		assert.Equal(t, "Validation error", SanitizeValidationError(errors.New("boom")))
	})
}
