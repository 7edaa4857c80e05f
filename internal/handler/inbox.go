package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/barrinalo/CATMAID/internal/domain"
	"github.com/barrinalo/CATMAID/internal/service"
)

// sentinelMessageID identifies the badge entry appended to the inbox
// listing. Real message ids are positive, so -1 never collides.
const sentinelMessageID = -1

// messageTimeLayout renders message times for the legacy listing shape.
const messageTimeLayout = "2006-01-02 15:04:05"

// InboxHandler handles the message inbox endpoints.
type InboxHandler struct {
	inbox *service.InboxService
}

// NewInboxHandler creates a new InboxHandler.
func NewInboxHandler(inbox *service.InboxService) *InboxHandler {
	return &InboxHandler{inbox: inbox}
}

// messageEntry is one unread message in the inbox listing.
type messageEntry struct {
	ID     int64   `json:"id"`
	Title  string  `json:"title"`
	Action *string `json:"action"`
	Text   string  `json:"text"`
	Time   string  `json:"time"`
}

// badgeEntry is the trailing listing entry carrying the open change
// request count for the notification badge.
type badgeEntry struct {
	ID                int64 `json:"id"`
	NotificationCount int   `json:"notification_count"`
}

// LatestUnreadDate returns the time of the user's most recent unread
// message as epoch seconds, or null when there are none.
func (h *InboxHandler) LatestUnreadDate(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return domain.ErrUnauthorized
	}

	latest, err := h.inbox.GetLatestUnreadMarker(c.Request().Context(), userID)
	if err != nil {
		return err
	}

	var epoch *int64
	if latest != nil {
		v := latest.Unix()
		epoch = &v
	}
	return c.JSON(http.StatusOK, map[string]*int64{"latest_unread_date": epoch})
}

// List returns the user's unread messages, most recent first, followed by
// exactly one badge entry. The badge entry is present even when the unread
// list is empty and even when the count is zero.
func (h *InboxHandler) List(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return domain.ErrUnauthorized
	}

	inbox, err := h.inbox.ListInbox(c.Request().Context(), userID)
	if err != nil {
		return err
	}

	entries := make([]any, 0, len(inbox.Messages)+1)
	for _, m := range inbox.Messages {
		entries = append(entries, messageEntry{
			ID:     m.ID,
			Title:  m.Title,
			Action: m.Action,
			Text:   m.Text,
			Time:   m.Time.UTC().Format(messageTimeLayout),
		})
	}
	entries = append(entries, badgeEntry{
		ID:                sentinelMessageID,
		NotificationCount: inbox.NotificationCount,
	})

	return c.JSON(http.StatusOK, entries)
}

// MarkRead acknowledges a message owned by the caller. When the message
// carries an action URI the response redirects there; otherwise a plain
// success body is returned.
func (h *InboxHandler) MarkRead(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return domain.ErrUnauthorized
	}

	messageID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid message id", domain.ErrInvalidInput)
	}

	outcome, err := h.inbox.Acknowledge(c.Request().Context(), userID, messageID)
	if err != nil {
		return err
	}

	if outcome.RedirectTo != "" {
		return c.Redirect(http.StatusFound, outcome.RedirectTo)
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

type sendMessageRequest struct {
	UserID int64   `json:"user_id" validate:"required"`
	Title  string  `json:"title" validate:"required"`
	Text   string  `json:"text"`
	Action *string `json:"action,omitempty" validate:"omitempty,uri"`
}

// Send creates a message for a user. Internal API for message producers;
// the write is audited under the requesting user and the owner's live
// sessions are notified.
func (h *InboxHandler) Send(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: invalid request body", domain.ErrInvalidInput)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	message, err := h.inbox.SendMessage(c.Request().Context(), domain.Message{
		UserID: req.UserID,
		Title:  req.Title,
		Text:   req.Text,
		Action: req.Action,
	})
	if err != nil {
		return err
	}

	return JSON(c, http.StatusCreated, message)
}
