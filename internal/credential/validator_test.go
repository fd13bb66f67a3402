package credential

import (
	"context"
	"testing"

	"github.com/phrazzld/batchgen/internal/generation"
	"github.com/phrazzld/batchgen/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestValidatorValidate(t *testing.T) {
	provider := &mocks.MockProvider{}
	provider.On("Probe", mock.Anything, "AIzaGoodKey000001").Return(nil)
	provider.On("Probe", mock.Anything, "AIzaBadKey0000002").
		Return(generation.NewProviderError("mock", generation.KindAuthenticationRejected, "", nil))
	provider.On("Probe", mock.Anything, "AIzaBusyKey000003").
		Return(generation.NewProviderError("mock", generation.KindRateLimited, "", nil))

	v := NewValidator(provider, 2, discardLogger())
	results, err := v.Validate(context.Background(),
		[]string{"AIzaGoodKey000001", " AIzaBadKey0000002 ", "", "AIzaBusyKey000003"})

	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.True(t, results[0].Valid)
	assert.Equal(t, "AIzaGoodKe...", results[0].Key)
	assert.Equal(t, "AIzaGoodKey000001", results[0].Secret)

	assert.False(t, results[1].Valid)
	assert.Equal(t, "AIzaBadKey0000002", results[1].Secret, "keys are trimmed")
	assert.Contains(t, results[1].Message, "rejected")

	assert.False(t, results[2].Valid)
	assert.Equal(t, "API key is empty", results[2].Message)

	assert.False(t, results[3].Valid)
	assert.Contains(t, results[3].Message, "rate limited")

	provider.AssertNumberOfCalls(t, "Probe", 3)
}

func TestValidatorCancelled(t *testing.T) {
	provider := &mocks.ProviderFunc{
		ProbeFn: func(ctx context.Context, apiKey string) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v := NewValidator(provider, 0, discardLogger())
	_, err := v.Validate(ctx, []string{"k1", "k2"})
	assert.ErrorIs(t, err, context.Canceled)
}
