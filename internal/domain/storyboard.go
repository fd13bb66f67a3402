package domain

import "strings"

// Storyboard validation errors
var (
	ErrEmptyLyrics           = validationError("lyrics cannot be empty")
	ErrEmptyScript           = validationError("script cannot be empty")
	ErrFeedbackWithoutDraft  = validationError("feedback requires the previous draft")
	ErrInvalidCharacterImage = validationError("character variations count out of range")
)

// Character is one recurring figure of a video script.
type Character struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Role        string `json:"role"`
}

// ScriptRequest asks for a music video script written from song lyrics.
// Feedback revises PreviousScript instead of starting over.
type ScriptRequest struct {
	Lyrics         string
	Feedback       string
	PreviousScript string
}

// Validate checks that lyrics are present and that feedback has a draft
// to apply to.
func (r ScriptRequest) Validate() error {
	if strings.TrimSpace(r.Lyrics) == "" {
		return ErrEmptyLyrics
	}
	if strings.TrimSpace(r.Feedback) != "" && strings.TrimSpace(r.PreviousScript) == "" {
		return ErrFeedbackWithoutDraft
	}
	return nil
}

// CharacterRequest asks for the characters of a script. With RenderImages
// every character description is submitted as a generation prompt.
type CharacterRequest struct {
	Script          string
	Feedback        string
	Previous        []Character
	RenderImages    bool
	VariationsCount int
}

// Validate checks the request. VariationsCount is only checked when
// images are requested; zero means the default.
func (r CharacterRequest) Validate(maxVariations int) error {
	if strings.TrimSpace(r.Script) == "" {
		return ErrEmptyScript
	}
	if strings.TrimSpace(r.Feedback) != "" && len(r.Previous) == 0 {
		return ErrFeedbackWithoutDraft
	}
	if r.RenderImages && (r.VariationsCount < 0 || r.VariationsCount > maxVariations) {
		return ErrInvalidCharacterImage
	}
	return nil
}
