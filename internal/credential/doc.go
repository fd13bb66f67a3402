// Package credential manages the provider API keys a user contributes to the
// generation pipeline: sealing them at rest, probing new keys concurrently,
// and rotating through the valid ones round-robin while counting usage.
package credential
