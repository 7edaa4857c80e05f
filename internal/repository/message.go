package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/barrinalo/CATMAID/internal/domain"
)

// MessageRepository handles message data access operations.
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository creates a new MessageRepository.
func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// ListUnread returns the owner's unread messages, most recent first. The
// result is a snapshot as of call time and may be empty.
func (r *MessageRepository) ListUnread(ctx context.Context, userID int64) ([]domain.Message, error) {
	var messages []domain.Message
	err := r.db.SelectContext(ctx, &messages,
		`SELECT id, user_id, title, text, action, time, read
		 FROM messages
		 WHERE user_id = $1 AND read = FALSE
		 ORDER BY time DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list unread messages for user %d: %w", userID, err)
	}
	return messages, nil
}

// MostRecentUnreadTime returns the newest unread message time for the owner,
// or nil when no unread messages exist. The aggregate runs in the database;
// the unread set is never loaded, since this is polled for badge refresh.
func (r *MessageRepository) MostRecentUnreadTime(ctx context.Context, userID int64) (*time.Time, error) {
	var latest sql.NullTime
	err := r.db.GetContext(ctx, &latest,
		`SELECT MAX(time) FROM messages WHERE user_id = $1 AND read = FALSE`, userID)
	if err != nil {
		return nil, fmt.Errorf("most recent unread time for user %d: %w", userID, err)
	}
	if !latest.Valid {
		return nil, nil
	}
	return &latest.Time, nil
}

// MarkRead marks the message as read and returns it. The update is scoped to
// the owner, so acknowledging someone else's message and acknowledging a
// nonexistent message both return the same ErrNotFound. Marking an
// already-read message succeeds and leaves the row unchanged.
func (r *MessageRepository) MarkRead(ctx context.Context, messageID, userID int64) (*domain.Message, error) {
	var message domain.Message
	err := r.db.QueryRowxContext(ctx,
		`UPDATE messages SET read = TRUE
		 WHERE id = $1 AND user_id = $2
		 RETURNING id, user_id, title, text, action, time, read`,
		messageID, userID,
	).StructScan(&message)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("mark message %d read: %w", messageID, err)
	}
	return &message, nil
}

// Create inserts a new message for its owner. It writes through the given
// queryer so callers can run it inside a unit of work.
func (r *MessageRepository) Create(ctx context.Context, q sqlx.ExtContext, m domain.Message) (*domain.Message, error) {
	var created domain.Message
	err := sqlx.GetContext(ctx, q, &created,
		`INSERT INTO messages (user_id, title, text, action)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, user_id, title, text, action, time, read`,
		m.UserID, m.Title, m.Text, m.Action)
	if err != nil {
		return nil, fmt.Errorf("create message for user %d: %w", m.UserID, err)
	}
	return &created, nil
}
