package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// KeyPreviewLength is the number of leading key characters shown to users.
const KeyPreviewLength = 10

// Common validation errors for Credential
var (
	ErrEmptyCredentialUserID = validationError("credential user ID cannot be empty")
	ErrEmptyCredentialSecret = validationError("credential secret cannot be empty")
	ErrNoCredentialKeys      = validationError("at least one API key is required")
	ErrTooManyCredentialKeys = validationError("too many API keys in one request")
)

// MaxKeysPerValidation bounds the keys accepted by one validation request.
const MaxKeysPerValidation = 50

// Credential is a user's third-party provider API key. The secret is stored
// sealed; Fingerprint identifies the plaintext for de-duplication without
// revealing it. Credentials are never deleted by the generation pipeline,
// only excluded from selection when IsValid is false.
type Credential struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	Name            string     `json:"key_name"`
	EncryptedKey    []byte     `json:"-"`
	Fingerprint     string     `json:"-"`
	Preview         string     `json:"preview"`
	IsValid         bool       `json:"is_valid"`
	UsageCount      int64      `json:"usage_count"`
	LastValidatedAt *time.Time `json:"last_validated_at,omitempty"`
	LastUsedAt      *time.Time `json:"last_used_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// NewCredential builds a validated credential for a freshly probed key.
// sealed is the encrypted form of plaintext.
func NewCredential(userID uuid.UUID, name, plaintext string, sealed []byte) (*Credential, error) {
	if userID == uuid.Nil {
		return nil, ErrEmptyCredentialUserID
	}
	if plaintext == "" || len(sealed) == 0 {
		return nil, ErrEmptyCredentialSecret
	}
	now := time.Now().UTC()
	return &Credential{
		ID:              uuid.New(),
		UserID:          userID,
		Name:            name,
		EncryptedKey:    sealed,
		Fingerprint:     KeyFingerprint(plaintext),
		Preview:         KeyPreview(plaintext),
		IsValid:         true,
		LastValidatedAt: &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// KeyPreview returns the first KeyPreviewLength characters followed by "...".
func KeyPreview(key string) string {
	if len(key) <= KeyPreviewLength {
		return key + "..."
	}
	return key[:KeyPreviewLength] + "..."
}

// KeyFingerprint returns the hex SHA-256 digest of key.
func KeyFingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
