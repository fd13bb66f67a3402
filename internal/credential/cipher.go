package credential

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

// Cipher errors
var (
	ErrInvalidEncryptionKey = errors.New("encryption key must be 32 bytes hex encoded")
	ErrDecryptionFailed     = errors.New("failed to decrypt credential")
)

// Cipher seals API keys with NaCl secretbox. The sealed form is the random
// nonce followed by the box.
type Cipher struct {
	key [keySize]byte
}

// NewCipher creates a Cipher from a hex encoded 32 byte key.
func NewCipher(hexKey string) (*Cipher, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil || len(raw) != keySize {
		return nil, ErrInvalidEncryptionKey
	}
	c := &Cipher{}
	copy(c.key[:], raw)
	return c, nil
}

// Seal encrypts plaintext.
func (c *Cipher) Seal(plaintext string) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &c.key), nil
}

// Open decrypts a value produced by Seal.
func (c *Cipher) Open(sealed []byte) (string, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return "", ErrDecryptionFailed
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &c.key)
	if !ok {
		return "", ErrDecryptionFailed
	}
	return string(plain), nil
}
