package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPromptBatch(t *testing.T) {
	t.Parallel()

	sessionID := uuid.New()
	b, err := NewPromptBatch(sessionID, 2, "a red fox", "https://example.com/ref.png", 3)

	require.NoError(t, err)
	assert.Equal(t, sessionID, b.SessionID)
	assert.Equal(t, 2, b.PromptIndex)
	assert.Equal(t, BatchStatusProcessing, b.Status)
	assert.Equal(t, 3, b.VariationsCount)

	_, err = NewPromptBatch(uuid.Nil, 0, "x", "", 1)
	assert.ErrorIs(t, err, ErrEmptyBatchSessionID)
	_, err = NewPromptBatch(sessionID, -1, "x", "", 1)
	assert.ErrorIs(t, err, ErrInvalidPromptIndex)
	_, err = NewPromptBatch(sessionID, 0, "  ", "", 1)
	assert.ErrorIs(t, err, ErrEmptyPrompt)
	_, err = NewPromptBatch(sessionID, 0, "x", "", 0)
	assert.ErrorIs(t, err, ErrInvalidVariations)
}

func TestGenerationRequestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     GenerationRequest
		wantErr error
	}{
		{"valid", GenerationRequest{Prompts: []string{"cat"}, VariationsCount: 2}, nil},
		{"valid with reference", GenerationRequest{
			Prompts: []string{"cat"}, VariationsCount: 1, ReferenceImageURL: "https://cdn.example.com/a.png",
		}, nil},
		{"empty prompts", GenerationRequest{VariationsCount: 1}, ErrNoPrompts},
		{"blank prompt", GenerationRequest{Prompts: []string{"cat", " "}, VariationsCount: 1}, ErrEmptyPrompt},
		{"zero variations", GenerationRequest{Prompts: []string{"cat"}}, ErrInvalidVariations},
		{"variations above cap", GenerationRequest{Prompts: []string{"cat"}, VariationsCount: 11}, ErrInvalidVariations},
		{"too many prompts", GenerationRequest{
			Prompts: strings.Split(strings.Repeat("p,", 5)+"p", ","), VariationsCount: 1,
		}, ErrTooManyPrompts},
		{"relative reference", GenerationRequest{
			Prompts: []string{"cat"}, VariationsCount: 1, ReferenceImageURL: "/uploads/a.png",
		}, ErrInvalidReferenceURL},
		{"ftp reference", GenerationRequest{
			Prompts: []string{"cat"}, VariationsCount: 1, ReferenceImageURL: "ftp://host/a.png",
		}, ErrInvalidReferenceURL},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate(10, 5)
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestNewGenerationResult(t *testing.T) {
	t.Parallel()

	batchID := uuid.New()
	meta := ResultMetadata{Prompt: "cat", APIKeyIndex: 1, Placeholder: true, FailureKind: "timeout"}
	r, err := NewGenerationResult(batchID, 1, "https://placehold.co/x.png", meta)

	require.NoError(t, err)
	assert.Equal(t, batchID, r.BatchID)
	assert.False(t, r.IsSelected)
	assert.Equal(t, meta, r.Metadata)

	_, err = NewGenerationResult(batchID, 0, "u", meta)
	assert.ErrorIs(t, err, ErrInvalidVariationSlot)
	_, err = NewGenerationResult(batchID, 1, "", meta)
	assert.ErrorIs(t, err, ErrEmptyImageURL)
}
