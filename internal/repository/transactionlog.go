package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// changeTypeBackend is the change_type recorded for labels appended by
// server-side operations.
const changeTypeBackend = "Backend"

// TransactionLogRepository appends audit labels to the transaction log.
// The log is append-only; nothing here updates or deletes rows.
type TransactionLogRepository struct{}

// NewTransactionLogRepository creates a new TransactionLogRepository.
func NewTransactionLogRepository() *TransactionLogRepository {
	return &TransactionLogRepository{}
}

// Append writes one audit label through the given queryer, so the label
// shares the caller's transaction and commits or rolls back with it.
func (r *TransactionLogRepository) Append(ctx context.Context, q sqlx.ExtContext, userID int64, label string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO transaction_log (user_id, change_type, label) VALUES ($1, $2, $3)`,
		userID, changeTypeBackend, label)
	if err != nil {
		return fmt.Errorf("append transaction label %q: %w", label, err)
	}
	return nil
}
