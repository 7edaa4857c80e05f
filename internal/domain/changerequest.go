package domain

import "time"

// ChangeRequestStatus represents the review state of a change request.
type ChangeRequestStatus int16

const (
	ChangeRequestOpen     ChangeRequestStatus = 0
	ChangeRequestApproved ChangeRequestStatus = 1
	ChangeRequestRejected ChangeRequestStatus = 2
)

// ChangeRequest represents a proposed change awaiting review by its
// recipient. Only the count of open requests per recipient is consumed
// here, to drive the inbox badge.
type ChangeRequest struct {
	ID          int64               `json:"id" db:"id"`
	UserID      int64               `json:"user_id" db:"user_id"`
	RecipientID int64               `json:"recipient_id" db:"recipient_id"`
	Status      ChangeRequestStatus `json:"status" db:"status"`
	CreatedAt   time.Time           `json:"created_at" db:"created_at"`
}
