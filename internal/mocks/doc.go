// Package mocks provides centralized mock implementations for testing.
//
// Function-field mocks (MockJWTService) let a test override single methods.
// MockProvider uses testify/mock for call assertions. MemoryDB is a stateful
// in-memory implementation of the generation stores that enforces the same
// constraints as the PostgreSQL schema, for tests that drive a whole session.
//
// Usage:
//
//	db := mocks.NewMemoryDB()
//	sessions := db.Sessions()
//	provider := &mocks.MockProvider{}
//	provider.On("Generate", mock.Anything, mock.Anything, "key-1").
//	    Return(&generation.Image{URL: "https://img"}, nil)
package mocks
