package credential

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHexKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestCipherRoundTrip(t *testing.T) {
	c, err := NewCipher(testHexKey)
	require.NoError(t, err)

	sealed, err := c.Seal("AIzaSyExampleKey123")
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "AIzaSyExampleKey123")

	plain, err := c.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "AIzaSyExampleKey123", plain)

	again, err := c.Seal("AIzaSyExampleKey123")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonces must differ")
}

func TestCipherRejectsTampering(t *testing.T) {
	c, err := NewCipher(testHexKey)
	require.NoError(t, err)

	sealed, err := c.Seal("secret")
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff

	_, err = c.Open(sealed)
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = c.Open([]byte("short"))
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestCipherWrongKey(t *testing.T) {
	c1, _ := NewCipher(testHexKey)
	c2, _ := NewCipher(strings.Repeat("ab", 32))

	sealed, err := c1.Seal("secret")
	require.NoError(t, err)
	_, err = c2.Open(sealed)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestNewCipherValidation(t *testing.T) {
	for _, key := range []string{"", "zz", strings.Repeat("ab", 16)} {
		_, err := NewCipher(key)
		assert.ErrorIs(t, err, ErrInvalidEncryptionKey, "key %q", key)
	}
}
