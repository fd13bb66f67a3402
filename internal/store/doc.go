// Package store declares the persistence interfaces used by the generation
// services: sessions, prompt batches, results, API keys and tasks. Every
// store can be rebound to a transaction with WithTx.
package store
