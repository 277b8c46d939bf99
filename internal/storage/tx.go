package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// querier is satisfied by both *sql.DB and *sql.Tx, so row loading can be
// shared between plain reads and transactional restore paths.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// runAtomic executes fn inside a transaction: every statement commits or
// none do. If fn fails, rollback is attempted; a rollback failure is
// logged but the error returned is always the one that triggered it.
func runAtomic(ctx context.Context, db *sql.DB, log *slog.Logger, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Warn("transaction rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
