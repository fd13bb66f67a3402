package service

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/batchgen/internal/credential"
	"github.com/phrazzld/batchgen/internal/domain"
	"github.com/phrazzld/batchgen/internal/metrics"
	"github.com/phrazzld/batchgen/internal/platform/logger"
	"github.com/phrazzld/batchgen/internal/store"
)

// CredentialService validates provider API keys and stores the valid ones.
type CredentialService struct {
	store     store.CredentialStore
	validator *credential.Validator
	cipher    *credential.Cipher
	transact  store.Transactor
	metrics   *metrics.Collector
	logger    *slog.Logger
	now       func() time.Time
}

// NewCredentialService creates a CredentialService.
func NewCredentialService(
	credentialStore store.CredentialStore,
	validator *credential.Validator,
	cipher *credential.Cipher,
	transact store.Transactor,
	m *metrics.Collector,
	logger *slog.Logger,
) (*CredentialService, error) {
	switch {
	case credentialStore == nil:
		return nil, &ServiceError{Service: "credential", Op: "create_service", Message: "credential store cannot be nil"}
	case validator == nil:
		return nil, &ServiceError{Service: "credential", Op: "create_service", Message: "validator cannot be nil"}
	case cipher == nil:
		return nil, &ServiceError{Service: "credential", Op: "create_service", Message: "cipher cannot be nil"}
	case transact == nil:
		return nil, &ServiceError{Service: "credential", Op: "create_service", Message: "transactor cannot be nil"}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialService{
		store:     credentialStore,
		validator: validator,
		cipher:    cipher,
		transact:  transact,
		metrics:   m,
		logger:    logger.With("component", "credential_service"),
		now:       time.Now,
	}, nil
}

// ValidateAndSave probes every key and upserts the valid ones for userID in
// one transaction. Results are returned in input order. Keys repeated in
// the request are probed once per occurrence but stored once.
func (s *CredentialService) ValidateAndSave(
	ctx context.Context,
	userID uuid.UUID,
	keys []string,
) ([]credential.ValidationResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(keys) == 0 {
		return nil, domain.ErrNoCredentialKeys
	}
	if len(keys) > domain.MaxKeysPerValidation {
		return nil, domain.ErrTooManyCredentialKeys
	}

	results, err := s.validator.Validate(ctx, keys)
	if err != nil {
		return nil, NewServiceError("credential", "validate", "validation interrupted", err)
	}

	validatedAt := s.now()
	var toSave []*domain.Credential
	seen := make(map[string]struct{})
	for i, r := range results {
		s.metrics.CredentialValidated(r.Valid)
		if !r.Valid {
			continue
		}
		fp := domain.KeyFingerprint(r.Secret)
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}

		sealed, err := s.cipher.Seal(r.Secret)
		if err != nil {
			return nil, NewServiceError("credential", "validate", "failed to seal key", err)
		}
		c, err := domain.NewCredential(userID, credential.KeyName(validatedAt, i), r.Secret, sealed)
		if err != nil {
			return nil, NewServiceError("credential", "validate", "invalid credential", err)
		}
		toSave = append(toSave, c)
	}

	if len(toSave) > 0 {
		err = s.transact(ctx, func(ctx context.Context, tx *sql.Tx) error {
			txStore := s.store.WithTx(tx)
			for _, c := range toSave {
				if _, err := txStore.Upsert(ctx, c); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, NewServiceError("credential", "validate", "failed to save credentials", err)
		}
	}

	log.InfoContext(ctx, "credentials validated",
		"user_id", userID,
		"submitted", len(keys),
		"saved", len(toSave))
	return results, nil
}

// List returns all of the user's credentials, previews only.
func (s *CredentialService) List(ctx context.Context, userID uuid.UUID) ([]*domain.Credential, error) {
	creds, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, NewServiceError("credential", "list", "failed to list credentials", err)
	}
	return creds, nil
}
