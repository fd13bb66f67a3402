package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyPreview(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "AIzaSyA123...", KeyPreview("AIzaSyA123456789abcdef"))
	assert.Equal(t, "short...", KeyPreview("short"))
}

func TestKeyFingerprint(t *testing.T) {
	t.Parallel()

	a := KeyFingerprint("key-one")
	assert.Len(t, a, 64)
	assert.Equal(t, a, KeyFingerprint("key-one"))
	assert.NotEqual(t, a, KeyFingerprint("key-two"))
}

func TestNewCredential(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	c, err := NewCredential(userID, "Key 1", "AIzaSyA123456789abcdef", []byte{1, 2, 3})

	require.NoError(t, err)
	assert.True(t, c.IsValid)
	assert.Equal(t, KeyFingerprint("AIzaSyA123456789abcdef"), c.Fingerprint)
	assert.Equal(t, "AIzaSyA123...", c.Preview)
	assert.NotNil(t, c.LastValidatedAt)
	assert.Zero(t, c.UsageCount)

	_, err = NewCredential(uuid.Nil, "", "k", []byte{1})
	assert.ErrorIs(t, err, ErrEmptyCredentialUserID)
	_, err = NewCredential(userID, "", "", []byte{1})
	assert.ErrorIs(t, err, ErrEmptyCredentialSecret)
}
