// Package live delivers push events to a user's open realtime connections.
package live

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventNewMessage is pushed when a message is created for the user.
const EventNewMessage = "new-message"

const (
	sessionBuffer = 16
	writeTimeout  = 5 * time.Second
)

// Event is the wire envelope pushed to live sessions.
type Event struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// NewMessagePayload is the payload of a new-message event.
type NewMessagePayload struct {
	MessageID    int64  `json:"message_id"`
	MessageTitle string `json:"message_title"`
}

// Conn is the subset of a websocket connection the hub writes through.
type Conn interface {
	WriteJSON(v any) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Session is one live connection of a user. Each session has its own
// outbound buffer and writer, so one slow connection cannot hold up
// delivery to the user's other sessions.
type Session struct {
	id     string
	userID int64
	conn   Conn
	out    chan Event
	done   chan struct{}

	closeOnce sync.Once
}

// Hub maps user identities to their live sessions and delivers events to
// them. Delivery is fire-and-forget: Notify enqueues onto per-session
// buffers and returns immediately; when a buffer is full the event is
// dropped for that session.
type Hub struct {
	mu       sync.RWMutex
	sessions map[int64]map[string]*Session
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{sessions: make(map[int64]map[string]*Session)}
}

// Attach registers conn as a live session for userID and starts its writer.
// The session stays registered until Detach is called or a write fails.
func (h *Hub) Attach(userID int64, conn Conn) *Session {
	s := &Session{
		id:     uuid.New().String(),
		userID: userID,
		conn:   conn,
		out:    make(chan Event, sessionBuffer),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	if h.sessions[userID] == nil {
		h.sessions[userID] = make(map[string]*Session)
	}
	h.sessions[userID][s.id] = s
	h.mu.Unlock()

	go h.writeLoop(s)
	return s
}

// Detach removes the session from the hub and closes its connection.
// Safe to call more than once.
func (h *Hub) Detach(s *Session) {
	h.mu.Lock()
	if byID := h.sessions[s.userID]; byID != nil {
		delete(byID, s.id)
		if len(byID) == 0 {
			delete(h.sessions, s.userID)
		}
	}
	h.mu.Unlock()

	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// NotifyNewMessage pushes a new-message event to every live session of the
// user. Implements the notifier consumed by the inbox service.
func (h *Hub) NotifyNewMessage(userID, messageID int64, messageTitle string) {
	h.Notify(userID, Event{
		Event: EventNewMessage,
		Payload: NewMessagePayload{
			MessageID:    messageID,
			MessageTitle: messageTitle,
		},
	})
}

// Notify enqueues the event for every live session of the user. A user with
// no live sessions is a silent no-op, never an error.
func (h *Hub) Notify(userID int64, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, s := range h.sessions[userID] {
		select {
		case s.out <- ev:
		default:
			slog.Warn("live session buffer full, dropping event",
				"user_id", userID, "session_id", s.id, "event", ev.Event)
		}
	}
}

func (h *Hub) writeLoop(s *Session) {
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteJSON(ev); err != nil {
				slog.Warn("live delivery failed",
					"user_id", s.userID, "session_id", s.id, "error", err)
				h.Detach(s)
				return
			}
		}
	}
}
