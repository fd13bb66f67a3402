package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/batchgen/internal/platform/logger"
	"github.com/phrazzld/batchgen/internal/store"
)

// ErrNoCredentialsAvailable is returned when a user has no valid credential.
var ErrNoCredentialsAvailable = errors.New("no valid credentials available")

// Key is a decrypted credential ready to be handed to a provider.
type Key struct {
	CredentialID uuid.UUID
	// Index is the key's position in the pool.
	Index   int
	Secret  string
	Preview string
}

// UsageRecorder counts provider calls per credential.
type UsageRecorder interface {
	IncrementUsage(ctx context.Context, id uuid.UUID) error
}

// Pool is the ordered set of valid keys of one user, loaded when a session
// starts executing. Selection is round-robin over a running counter.
type Pool struct {
	keys    []Key
	usage   UsageRecorder
	logger  *slog.Logger
	onUsage func(credentialID uuid.UUID, err error)
}

// NewPool builds a pool over keys.
func NewPool(keys []Key, usage UsageRecorder, logger *slog.Logger) *Pool {
	return &Pool{
		keys:   keys,
		usage:  usage,
		logger: logger.With("component", "credential_pool"),
	}
}

// OnUsage registers a hook called after every RecordUsage attempt.
func (p *Pool) OnUsage(fn func(credentialID uuid.UUID, err error)) {
	p.onUsage = fn
}

// Len returns the number of keys in the pool.
func (p *Pool) Len() int {
	return len(p.keys)
}

// Select returns the key at index modulo the pool size.
func (p *Pool) Select(index int) (Key, error) {
	if len(p.keys) == 0 {
		return Key{}, ErrNoCredentialsAvailable
	}
	i := index % len(p.keys)
	if i < 0 {
		i += len(p.keys)
	}
	return p.keys[i], nil
}

// RecordUsage increments the usage counter of credentialID. Failures are
// logged and otherwise ignored so that generation is never aborted by
// bookkeeping.
func (p *Pool) RecordUsage(ctx context.Context, credentialID uuid.UUID) {
	err := p.usage.IncrementUsage(ctx, credentialID)
	if err != nil {
		logger.FromContextOrDefault(ctx, p.logger).WarnContext(ctx, "failed to record credential usage",
			"credential_id", credentialID,
			"error", err)
	}
	if p.onUsage != nil {
		p.onUsage(credentialID, err)
	}
}

// Source loads pools from the credential store.
type Source struct {
	store  store.CredentialStore
	cipher *Cipher
	logger *slog.Logger
}

// NewSource creates a Source.
func NewSource(credentialStore store.CredentialStore, cipher *Cipher, logger *slog.Logger) *Source {
	if credentialStore == nil {
		panic("credential store cannot be nil")
	}
	if cipher == nil {
		panic("cipher cannot be nil")
	}
	return &Source{
		store:  credentialStore,
		cipher: cipher,
		logger: logger.With("component", "credential_source"),
	}
}

// HasValid reports whether the user has at least one valid credential.
func (s *Source) HasValid(ctx context.Context, userID uuid.UUID) (bool, error) {
	creds, err := s.store.ListValid(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to list credentials: %w", err)
	}
	return len(creds) > 0, nil
}

// Load returns a pool over the user's valid credentials. Credentials that
// cannot be decrypted are skipped. Returns ErrNoCredentialsAvailable when
// nothing usable remains.
func (s *Source) Load(ctx context.Context, userID uuid.UUID) (*Pool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	creds, err := s.store.ListValid(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	keys := make([]Key, 0, len(creds))
	for _, c := range creds {
		secret, err := s.cipher.Open(c.EncryptedKey)
		if err != nil {
			log.ErrorContext(ctx, "skipping credential that cannot be decrypted",
				"credential_id", c.ID,
				"error", err)
			continue
		}
		keys = append(keys, Key{
			CredentialID: c.ID,
			Index:        len(keys),
			Secret:       secret,
			Preview:      c.Preview,
		})
	}
	if len(keys) == 0 {
		return nil, ErrNoCredentialsAvailable
	}

	return NewPool(keys, s.store, s.logger), nil
}

// KeyName returns the display name given to the index-th key validated at t.
func KeyName(t time.Time, index int) string {
	return fmt.Sprintf("Key %d-%d", t.UnixMilli(), index)
}
