package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/barrinalo/CATMAID/internal/domain"
)

// ChangeRequestRepository handles change request data access operations.
type ChangeRequestRepository struct {
	db *sqlx.DB
}

// NewChangeRequestRepository creates a new ChangeRequestRepository.
func NewChangeRequestRepository(db *sqlx.DB) *ChangeRequestRepository {
	return &ChangeRequestRepository{db: db}
}

// CountOpenForRecipient returns the number of open change requests addressed
// to the recipient.
func (r *ChangeRequestRepository) CountOpenForRecipient(ctx context.Context, recipientID int64) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM change_requests WHERE recipient_id = $1 AND status = $2`,
		recipientID, domain.ChangeRequestOpen)
	if err != nil {
		return 0, fmt.Errorf("count open change requests for recipient %d: %w", recipientID, err)
	}
	return count, nil
}
