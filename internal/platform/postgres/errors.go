package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/batchgen/internal/store"
)

// SQLSTATE codes of the integrity violations the stores translate.
const (
	uniqueViolationCode     = "23505"
	foreignKeyViolationCode = "23503"
	checkViolationCode      = "23514"
	notNullViolationCode    = "23502"
)

// constraintErrors maps named constraints to the store error callers branch
// on. Constraints not listed fall back to the generic mapping by code.
var constraintErrors = map[string]error{
	"generation_results_batch_variation_key": store.ErrDuplicateVariation,
	"generation_sessions_counters_check":     store.ErrSessionCounterOverflow,
	"generation_sessions_terminal_check":     store.ErrSessionTerminal,
	"prompt_batches_session_index_key":       store.ErrDuplicate,
	"api_keys_user_fingerprint_key":          store.ErrDuplicate,
}

// MapError translates driver errors into store errors. The driver error is
// flattened into the message rather than wrapped, so table and column names
// cannot be recovered from the result with errors.As.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	if mapped, ok := constraintErrors[pgErr.ConstraintName]; ok {
		return fmt.Errorf("%w: %s", mapped, pgErr.ConstraintName)
	}

	switch pgErr.Code {
	case uniqueViolationCode:
		return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
	case foreignKeyViolationCode:
		return fmt.Errorf("%w: foreign key violation (%s)", store.ErrInvalidEntity, pgErr.ConstraintName)
	case checkViolationCode:
		return fmt.Errorf("%w: check constraint violation (%s)", store.ErrInvalidEntity, pgErr.ConstraintName)
	case notNullViolationCode:
		return fmt.Errorf("%w: not null violation (%s)", store.ErrInvalidEntity, pgErr.ColumnName)
	}
	return err
}

// IsUniqueViolation reports whether err is, or wraps, a unique violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// CheckRowsAffected returns store.ErrNotFound when an UPDATE or DELETE
// touched no rows.
func CheckRowsAffected(result sql.Result, entityName string) error {
	if result == nil {
		return errors.New("nil result provided to CheckRowsAffected")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	if entityName == "" {
		return store.ErrNotFound
	}
	return fmt.Errorf("%w: %s not found", store.ErrNotFound, entityName)
}
