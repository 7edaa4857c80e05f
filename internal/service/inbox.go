package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/barrinalo/CATMAID/internal/domain"
)

// MessageStore defines the message data access interface consumed by
// InboxService.
type MessageStore interface {
	ListUnread(ctx context.Context, userID int64) ([]domain.Message, error)
	MostRecentUnreadTime(ctx context.Context, userID int64) (*time.Time, error)
	MarkRead(ctx context.Context, messageID, userID int64) (*domain.Message, error)
	Create(ctx context.Context, q sqlx.ExtContext, m domain.Message) (*domain.Message, error)
}

// ChangeRequestStore defines the change request access interface consumed by
// InboxService.
type ChangeRequestStore interface {
	CountOpenForRecipient(ctx context.Context, recipientID int64) (int, error)
}

// Notifier pushes events to a user's live sessions. Implementations must be
// fire-and-forget: no error, no blocking beyond enqueueing.
type Notifier interface {
	NotifyNewMessage(userID, messageID int64, messageTitle string)
}

// AckOutcome reports how an acknowledged message should be answered:
// a redirect to the message's action URI when one is set, plain success
// otherwise.
type AckOutcome struct {
	RedirectTo string
}

// InboxService implements the per-user message inbox.
type InboxService struct {
	messages       MessageStore
	changeRequests ChangeRequestStore
	notifier       Notifier
	audit          *AuditService
}

// NewInboxService creates a new InboxService.
func NewInboxService(messages MessageStore, changeRequests ChangeRequestStore, notifier Notifier, audit *AuditService) *InboxService {
	return &InboxService{
		messages:       messages,
		changeRequests: changeRequests,
		notifier:       notifier,
		audit:          audit,
	}
}

// GetLatestUnreadMarker returns the time of the user's most recent unread
// message, or nil when there are none. Absence is not an error.
func (s *InboxService) GetLatestUnreadMarker(ctx context.Context, userID int64) (*time.Time, error) {
	return s.messages.MostRecentUnreadTime(ctx, userID)
}

// ListInbox returns the user's unread messages (most recent first) together
// with the open change request count for the badge entry. Both are fetched in
// one call so the UI needs no second round trip.
func (s *InboxService) ListInbox(ctx context.Context, userID int64) (*domain.Inbox, error) {
	messages, err := s.messages.ListUnread(ctx, userID)
	if err != nil {
		return nil, err
	}

	count, err := s.changeRequests.CountOpenForRecipient(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("open change request count: %w", err)
	}

	return &domain.Inbox{Messages: messages, NotificationCount: count}, nil
}

// Acknowledge marks the message as read on behalf of its owner. The outcome
// carries the message's action URI when one is set. Acknowledging a message
// the user does not own fails with ErrNotFound, indistinguishable from a
// nonexistent message. Repeat acknowledgments succeed with the same outcome.
func (s *InboxService) Acknowledge(ctx context.Context, userID, messageID int64) (AckOutcome, error) {
	message, err := s.messages.MarkRead(ctx, messageID, userID)
	if err != nil {
		return AckOutcome{}, err
	}
	if message.HasAction() {
		return AckOutcome{RedirectTo: *message.Action}, nil
	}
	return AckOutcome{}, nil
}

// NotifyOnCreate pushes a new-message event to the owner's live sessions.
// Producers call this after creating a message; delivery never affects the
// producing operation.
func (s *InboxService) NotifyOnCreate(userID, messageID int64, messageTitle string) {
	s.notifier.NotifyNewMessage(userID, messageID, messageTitle)
}

// SendMessage creates a message for its owner inside an audited unit of work
// attributed to the requesting user, then notifies the owner's live sessions.
func (s *InboxService) SendMessage(ctx context.Context, m domain.Message) (*domain.Message, error) {
	var created *domain.Message
	err := s.audit.WithLabelForCaller(ctx, "messages.create", func(ctx context.Context, tx sqlx.ExtContext) error {
		var err error
		created, err = s.messages.Create(ctx, tx, m)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.NotifyOnCreate(created.UserID, created.ID, created.Title)
	return created, nil
}
