package store

import (
	"errors"
	"fmt"
)

// Base errors. Entity errors below wrap them, so errors.Is(err, ErrNotFound)
// matches a missing session as well as a missing result.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrDuplicate     = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")
)

var (
	ErrCredentialNotFound = fmt.Errorf("%w: credential", ErrNotFound)
	ErrSessionNotFound    = fmt.Errorf("%w: generation session", ErrNotFound)
	ErrBatchNotFound      = fmt.Errorf("%w: prompt batch", ErrNotFound)

	// ErrResultNotFound is also returned for results the caller does not own.
	ErrResultNotFound = fmt.Errorf("%w: generation result", ErrNotFound)

	// ErrDuplicateVariation means the (batch, variation) slot already holds
	// a result. Resumed prompts hit it when a variation was stored before a
	// restart.
	ErrDuplicateVariation = fmt.Errorf("%w: variation", ErrDuplicate)
)

// Session state errors returned by SessionStore.Advance and Finalize.
var (
	ErrSessionTerminal        = errors.New("session is in a terminal state")
	ErrSessionCounterOverflow = errors.New("session counters would exceed total prompts")
)
