package generation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderError(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewProviderError("gemini", KindProviderUnavailable, "request failed", cause)

	assert.Equal(t, "gemini: provider_unavailable: request failed: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"provider error", NewProviderError("p", KindRateLimited, "", nil), KindRateLimited},
		{"wrapped provider error", fmt.Errorf("call: %w", NewProviderError("p", KindAuthenticationRejected, "", nil)), KindAuthenticationRejected},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"other", errors.New("boom"), KindProviderUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, KindOf(tc.err))
		})
	}
}

func TestKindForStatus(t *testing.T) {
	assert.Equal(t, KindAuthenticationRejected, KindForStatus(401))
	assert.Equal(t, KindAuthenticationRejected, KindForStatus(403))
	assert.Equal(t, KindRateLimited, KindForStatus(429))
	assert.Equal(t, KindTimeout, KindForStatus(504))
	assert.Equal(t, KindMalformedResponse, KindForStatus(400))
	assert.Equal(t, KindProviderUnavailable, KindForStatus(503))
}

func TestPlaceholder(t *testing.T) {
	img := Placeholder("https://placehold.co/x.png")
	assert.Equal(t, "https://placehold.co/x.png", img.URL)
	assert.Empty(t, img.Data)
}
