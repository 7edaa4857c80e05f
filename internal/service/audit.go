package service

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/barrinalo/CATMAID/internal/domain"
)

// TxRunner runs a function inside one database transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx sqlx.ExtContext) error) error
}

// TransactionLogStore appends audit labels through a caller-supplied
// transaction.
type TransactionLogStore interface {
	Append(ctx context.Context, q sqlx.ExtContext, userID int64, label string) error
}

// AuditService attributes units of work to acting users. The wrapped
// operation and its label share one transaction, so the label is durable
// exactly when the operation's effects are.
type AuditService struct {
	runner TxRunner
	log    TransactionLogStore
}

// NewAuditService creates a new AuditService.
func NewAuditService(runner TxRunner, log TransactionLogStore) *AuditService {
	return &AuditService{runner: runner, log: log}
}

// WithLabel runs op inside one transaction and appends the label for userID
// after op returns nil. A failing op rolls the transaction back and its error
// is returned unchanged; no label is recorded for failed work. Nested audited
// operations each append their own label.
func (s *AuditService) WithLabel(ctx context.Context, userID int64, label string, op func(ctx context.Context, tx sqlx.ExtContext) error) error {
	return s.runner.InTx(ctx, func(tx sqlx.ExtContext) error {
		if err := op(ctx, tx); err != nil {
			return err
		}
		if err := s.log.Append(ctx, tx, userID, label); err != nil {
			return fmt.Errorf("audit label %q: %w", label, err)
		}
		return nil
	})
}

// WithLabelForCaller is WithLabel with the acting user resolved from the
// request context. The identity is checked before op runs: a call that gets
// here without one is a wiring bug, and skipping the label silently would
// leave a gap in the audit trail.
func (s *AuditService) WithLabelForCaller(ctx context.Context, label string, op func(ctx context.Context, tx sqlx.ExtContext) error) error {
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		return fmt.Errorf("audit label %q: %w", label, domain.ErrNoUserContext)
	}
	return s.WithLabel(ctx, userID, label, op)
}
