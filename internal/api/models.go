package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/batchgen/internal/credential"
	"github.com/phrazzld/batchgen/internal/domain"
)

// StartGenerationRequest defines the payload for POST /api/generations.
// Per-deployment limits (prompt count, variation cap) are enforced by the
// service; the tags here only reject structurally empty input.
type StartGenerationRequest struct {
	Prompts           []string `json:"prompts"           validate:"required,min=1,dive,required"`
	VariationsCount   int      `json:"variationsCount"   validate:"required,gte=1"`
	ReferenceImageURL string   `json:"referenceImageUrl" validate:"omitempty,url"`
}

func (r StartGenerationRequest) toDomain() domain.GenerationRequest {
	return domain.GenerationRequest{
		Prompts:           r.Prompts,
		VariationsCount:   r.VariationsCount,
		ReferenceImageURL: r.ReferenceImageURL,
	}
}

// StartGenerationResponse is returned with 202 once the session is accepted.
type StartGenerationResponse struct {
	SessionID    uuid.UUID `json:"sessionId"`
	TotalPrompts int       `json:"totalPrompts"`
}

// SessionResponse is the polled state of a generation session.
type SessionResponse struct {
	ID            uuid.UUID `json:"id"`
	Status        string    `json:"status"`
	Total         int       `json:"total"`
	Completed     int       `json:"completed"`
	Failed        int       `json:"failed"`
	Version       int64     `json:"version"`
	FailureReason string    `json:"failureReason,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// SessionSummaryResponse is one row of the generation history.
type SessionSummaryResponse struct {
	SessionResponse
	ResultCount   int `json:"resultCount"`
	SelectedCount int `json:"selectedCount"`
}

// HistoryResponse wraps a page of the caller's sessions.
type HistoryResponse struct {
	Sessions []SessionSummaryResponse `json:"sessions"`
	Limit    int                      `json:"limit"`
	Offset   int                      `json:"offset"`
}

// ResultResponse is one generated image or placeholder.
type ResultResponse struct {
	ID              uuid.UUID `json:"id"`
	PromptIndex     int       `json:"promptIndex"`
	PromptText      string    `json:"promptText"`
	VariationNumber int       `json:"variationNumber"`
	ImageURL        string    `json:"imageUrl"`
	IsSelected      bool      `json:"isSelected"`
	Placeholder     bool      `json:"placeholder"`
	FailureKind     string    `json:"failureKind,omitempty"`
	Model           string    `json:"model,omitempty"`
	APIKeyIndex     int       `json:"apiKeyIndex"`
	CreatedAt       time.Time `json:"createdAt"`
}

// ResultsResponse wraps the results of one session.
type ResultsResponse struct {
	SessionID uuid.UUID        `json:"sessionId"`
	Results   []ResultResponse `json:"results"`
}

// SelectionRequest defines the payload for PATCH /api/results/{id}/selection.
type SelectionRequest struct {
	Selected *bool `json:"selected" validate:"required"`
}

// ValidateCredentialsRequest defines the payload for POST /api/credentials/validate.
type ValidateCredentialsRequest struct {
	APIKeys []string `json:"apiKeys" validate:"required,min=1"`
}

// ValidateCredentialsResponse lists one outcome per submitted key, in order.
type ValidateCredentialsResponse struct {
	Results []credential.ValidationResult `json:"results"`
}

// CredentialResponse describes a stored key without revealing it.
type CredentialResponse struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"keyName"`
	Preview         string     `json:"preview"`
	IsValid         bool       `json:"isValid"`
	UsageCount      int64      `json:"usageCount"`
	LastValidatedAt *time.Time `json:"lastValidatedAt,omitempty"`
	LastUsedAt      *time.Time `json:"lastUsedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// CredentialsResponse wraps the caller's stored keys.
type CredentialsResponse struct {
	Credentials []CredentialResponse `json:"credentials"`
}

func sessionToResponse(s *domain.GenerationSession) SessionResponse {
	return SessionResponse{
		ID:            s.ID,
		Status:        string(s.Status),
		Total:         s.TotalPrompts,
		Completed:     s.CompletedPrompts,
		Failed:        s.FailedPrompts,
		Version:       s.Version,
		FailureReason: s.FailureReason,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

func summaryToResponse(s *domain.SessionSummary) SessionSummaryResponse {
	return SessionSummaryResponse{
		SessionResponse: sessionToResponse(&s.GenerationSession),
		ResultCount:     s.ResultCount,
		SelectedCount:   s.SelectedCount,
	}
}

func resultToResponse(v *domain.ResultView) ResultResponse {
	return ResultResponse{
		ID:              v.ID,
		PromptIndex:     v.PromptIndex,
		PromptText:      v.PromptText,
		VariationNumber: v.VariationNumber,
		ImageURL:        v.ImageURL,
		IsSelected:      v.IsSelected,
		Placeholder:     v.Metadata.Placeholder,
		FailureKind:     v.Metadata.FailureKind,
		Model:           v.Metadata.Model,
		APIKeyIndex:     v.Metadata.APIKeyIndex,
		CreatedAt:       v.CreatedAt,
	}
}

func credentialToResponse(c *domain.Credential) CredentialResponse {
	return CredentialResponse{
		ID:              c.ID,
		Name:            c.Name,
		Preview:         c.Preview,
		IsValid:         c.IsValid,
		UsageCount:      c.UsageCount,
		LastValidatedAt: c.LastValidatedAt,
		LastUsedAt:      c.LastUsedAt,
		CreatedAt:       c.CreatedAt,
	}
}

// VideoScriptRequest defines the payload for POST /api/scripts/video.
type VideoScriptRequest struct {
	Lyrics         string `json:"lyrics"         validate:"required"`
	Feedback       string `json:"feedback"`
	PreviousScript string `json:"previousScript"`
}

// VideoScriptResponse carries the written script.
type VideoScriptResponse struct {
	Script string `json:"script"`
}

// CharactersRequest defines the payload for POST /api/scripts/characters.
type CharactersRequest struct {
	Script             string             `json:"script"             validate:"required"`
	Feedback           string             `json:"feedback"`
	PreviousCharacters []domain.Character `json:"previousCharacters"`
	GenerateImages     bool               `json:"generateImages"`
	VariationsCount    int                `json:"variationsCount"    validate:"gte=0"`
}

func (r CharactersRequest) toDomain() domain.CharacterRequest {
	return domain.CharacterRequest{
		Script:          r.Script,
		Feedback:        r.Feedback,
		Previous:        r.PreviousCharacters,
		RenderImages:    r.GenerateImages,
		VariationsCount: r.VariationsCount,
	}
}

// CharactersResponse lists the extracted characters. SessionID is set when
// their images are being generated.
type CharactersResponse struct {
	Characters []domain.Character `json:"characters"`
	SessionID  *uuid.UUID         `json:"sessionId,omitempty"`
}
