package mocks

import (
	"context"

	"github.com/phrazzld/batchgen/internal/generation"
	"github.com/stretchr/testify/mock"
)

// MockProvider is a mock of generation.Provider for use with testify/mock
type MockProvider struct {
	mock.Mock
}

var _ generation.Provider = (*MockProvider)(nil)

// Generate is a mock implementation of generation.Provider.Generate
func (m *MockProvider) Generate(ctx context.Context, req generation.Request, apiKey string) (*generation.Image, error) {
	args := m.Called(ctx, req, apiKey)
	if img, ok := args.Get(0).(*generation.Image); ok {
		return img, args.Error(1)
	}
	return nil, args.Error(1)
}

// Probe is a mock implementation of generation.Provider.Probe
func (m *MockProvider) Probe(ctx context.Context, apiKey string) error {
	args := m.Called(ctx, apiKey)
	return args.Error(0)
}

// Name is a mock implementation of generation.Provider.Name
func (m *MockProvider) Name() string {
	return "mock"
}

// ProviderFunc adapts functions to generation.Provider.
type ProviderFunc struct {
	GenerateFn func(ctx context.Context, req generation.Request, apiKey string) (*generation.Image, error)
	ProbeFn    func(ctx context.Context, apiKey string) error
}

var _ generation.Provider = (*ProviderFunc)(nil)

// Generate implements generation.Provider.
func (p *ProviderFunc) Generate(ctx context.Context, req generation.Request, apiKey string) (*generation.Image, error) {
	if p.GenerateFn != nil {
		return p.GenerateFn(ctx, req, apiKey)
	}
	return &generation.Image{URL: "https://images.example.com/" + apiKey + ".png", Model: "mock"}, nil
}

// Probe implements generation.Provider.
func (p *ProviderFunc) Probe(ctx context.Context, apiKey string) error {
	if p.ProbeFn != nil {
		return p.ProbeFn(ctx, apiKey)
	}
	return nil
}

// Name implements generation.Provider.
func (p *ProviderFunc) Name() string {
	return "mock"
}

// TextGeneratorFunc adapts a function to generation.TextGenerator.
type TextGeneratorFunc struct {
	GenerateTextFn func(ctx context.Context, req generation.TextRequest, apiKey string) (string, error)
}

var _ generation.TextGenerator = (*TextGeneratorFunc)(nil)

// GenerateText implements generation.TextGenerator.
func (g *TextGeneratorFunc) GenerateText(ctx context.Context, req generation.TextRequest, apiKey string) (string, error) {
	if g.GenerateTextFn != nil {
		return g.GenerateTextFn(ctx, req, apiKey)
	}
	return "text for " + apiKey, nil
}

// Name implements generation.TextGenerator.
func (g *TextGeneratorFunc) Name() string {
	return "mock"
}
