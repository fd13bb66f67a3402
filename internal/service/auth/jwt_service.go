// Package auth verifies the HS256 bearer tokens issued by the external
// identity provider and, for local development, issues compatible tokens.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Token validation failures. The middleware maps all of them to 401.
var (
	ErrInvalidToken     = errors.New("invalid authentication token")
	ErrExpiredToken     = errors.New("authentication token has expired")
	ErrTokenNotYetValid = errors.New("authentication token not yet valid")
	ErrWrongTokenType   = errors.New("wrong authentication token type")
	ErrMissingSubject   = errors.New("authentication token has no user identifier")
)

// JWTService verifies bearer tokens.
type JWTService interface {
	// GenerateToken signs an access token for userID. Production tokens
	// come from the identity provider; cmd/devtoken and tests use this.
	GenerateToken(ctx context.Context, userID uuid.UUID) (string, error)

	// ValidateToken checks signature and lifetime and returns the claims.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims represents the verified identity carried by a token.
type Claims struct {
	UserID uuid.UUID `json:"uid,omitempty"`

	// TokenType must be "access" or empty for API calls.
	TokenType string `json:"type,omitempty"`

	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
