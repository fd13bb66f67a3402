package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/batchgen/internal/api/shared"
	"github.com/phrazzld/batchgen/internal/credential"
	"github.com/phrazzld/batchgen/internal/domain"
	"github.com/phrazzld/batchgen/internal/platform/logger"
)

// CredentialService is the key management API used by CredentialHandler.
type CredentialService interface {
	ValidateAndSave(ctx context.Context, userID uuid.UUID, keys []string) ([]credential.ValidationResult, error)
	List(ctx context.Context, userID uuid.UUID) ([]*domain.Credential, error)
}

// CredentialHandler handles API key validation and listing.
type CredentialHandler struct {
	credentials CredentialService
	logger      *slog.Logger
}

// NewCredentialHandler creates a new CredentialHandler.
func NewCredentialHandler(credentials CredentialService, logger *slog.Logger) *CredentialHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for CredentialHandler")
	}
	return &CredentialHandler{
		credentials: credentials,
		logger:      logger.With(slog.String("component", "credential_handler")),
	}
}

// Validate handles POST /credentials/validate. Each key is probed against
// the provider; valid keys are stored for the caller. The request body is
// never logged.
func (h *CredentialHandler) Validate(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := handleUserIDFromContext(w, r, log)
	if !ok {
		return
	}

	var req ValidateCredentialsRequest
	if !parseAndValidateRequest(w, r, &req, log) {
		return
	}

	results, err := h.credentials.ValidateAndSave(r.Context(), userID, req.APIKeys)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to validate API keys")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ValidateCredentialsResponse{Results: results})
}

// List handles GET /credentials.
func (h *CredentialHandler) List(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := handleUserIDFromContext(w, r, log)
	if !ok {
		return
	}

	creds, err := h.credentials.List(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list API keys")
		return
	}

	resp := CredentialsResponse{Credentials: make([]CredentialResponse, 0, len(creds))}
	for _, c := range creds {
		resp.Credentials = append(resp.Credentials, credentialToResponse(c))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}
