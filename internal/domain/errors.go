package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is wrapped by every input rule in this package, so
	// callers can branch on it and show the text after the prefix to users.
	ErrValidation = errors.New("validation failed")

	ErrUnauthorized = errors.New("unauthorized operation")
)

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
