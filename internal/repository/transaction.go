package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// TxRunner executes functions inside a single database transaction.
type TxRunner struct {
	db *sqlx.DB
}

// NewTxRunner creates a new TxRunner.
func NewTxRunner(db *sqlx.DB) *TxRunner {
	return &TxRunner{db: db}
}

// InTx opens a transaction, runs fn with it, and commits when fn returns nil.
// Any error from fn rolls the transaction back and is returned unchanged.
func (r *TxRunner) InTx(ctx context.Context, fn func(tx sqlx.ExtContext) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.Error("transaction rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
