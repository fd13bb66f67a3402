// Package openai implements generation.Provider on the OpenAI images API
// using github.com/openai/openai-go. It is the alternate provider, selected
// with provider.name=openai.
package openai
