package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/batchgen/internal/service/auth"
)

// MockJWTService is a canned auth.JWTService. ValidateToken returns Claims
// and ValidateErr and remembers every token it was shown.
type MockJWTService struct {
	Token       string
	Claims      *auth.Claims
	ValidateErr error

	mu        sync.Mutex
	validated []string
}

var _ auth.JWTService = (*MockJWTService)(nil)

func (m *MockJWTService) GenerateToken(_ context.Context, userID uuid.UUID) (string, error) {
	if m.Token == "" {
		return "token-" + userID.String(), nil
	}
	return m.Token, nil
}

func (m *MockJWTService) ValidateToken(_ context.Context, token string) (*auth.Claims, error) {
	m.mu.Lock()
	m.validated = append(m.validated, token)
	m.mu.Unlock()
	return m.Claims, m.ValidateErr
}

// Validated returns the tokens passed to ValidateToken in call order.
func (m *MockJWTService) Validated() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.validated...)
}
