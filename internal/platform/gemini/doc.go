// Package gemini implements generation.Provider on Google's Gemini API using
// the google.golang.org/genai client.
//
// A genai client is built per call because the API key changes with every
// variation as the credential pool rotates. Each Generate makes exactly one
// GenerateContent request asking for an image response; an optional
// reference image is downloaded first and sent inline with the prompt.
//
// Upstream failures are classified into generation.ProviderError kinds from
// the genai.APIError status code. The client never retries.
package gemini
