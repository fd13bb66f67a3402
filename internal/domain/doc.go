// Package domain holds the generation entities (sessions, prompt batches,
// results and API keys) together with their constructors and invariants.
// It has no knowledge of storage or transport.
package domain
