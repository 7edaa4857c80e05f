package domain

import "time"

// Message represents one notification delivered to exactly one user.
// The owner never changes after creation; the only mutation this core
// performs is flipping Read from false to true.
type Message struct {
	ID     int64     `json:"id" db:"id"`
	UserID int64     `json:"user_id" db:"user_id"`
	Title  string    `json:"title" db:"title"`
	Text   string    `json:"text" db:"text"`
	Action *string   `json:"action,omitempty" db:"action"`
	Time   time.Time `json:"time" db:"time"`
	Read   bool      `json:"read" db:"read"`
}

// HasAction reports whether acknowledging the message should redirect
// the reader to the message's action URI.
func (m Message) HasAction() bool {
	return m.Action != nil && *m.Action != ""
}

// Inbox is the aggregated unread view for one user: the unread messages
// (most recent first) plus the open change request count rendered as the
// trailing badge entry of the listing.
type Inbox struct {
	Messages          []Message
	NotificationCount int
}
