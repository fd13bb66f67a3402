package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/batchgen/internal/platform/logger"
)

// TxFn is the body of a transaction.
type TxFn func(ctx context.Context, tx *sql.Tx) error

// Transactor runs fn inside a transaction. Services depend on it rather
// than on *sql.DB so they can be exercised without a database.
type Transactor func(ctx context.Context, fn TxFn) error

// DBTransactor returns a Transactor that opens transactions on db.
func DBTransactor(db *sql.DB) Transactor {
	return func(ctx context.Context, fn TxFn) error {
		return RunInTransaction(ctx, db, fn)
	}
}

// RunInTransaction commits when fn returns nil and rolls back otherwise.
// A panic in fn rolls the transaction back and is then re-raised. A failed
// rollback is joined onto fn's error.
func RunInTransaction(ctx context.Context, db *sql.DB, fn TxFn) (err error) {
	log := logger.FromContextOrDefault(ctx, slog.Default())

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		p := recover()
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.ErrorContext(ctx, "failed to roll back transaction", slog.String("error", rbErr.Error()))
			err = errors.Join(err, fmt.Errorf("failed to roll back transaction: %w", rbErr))
		}
		if p != nil {
			log.ErrorContext(ctx, "rolled back transaction after panic", slog.Any("panic", p))
			// ALLOW-PANIC: re-raising the caller's panic after rollback
			panic(p)
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}
