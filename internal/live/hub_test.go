package live

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu       sync.Mutex
	delay    time.Duration
	writeErr error
	events   []Event
	closed   bool
}

func (c *fakeConn) WriteJSON(v any) error {
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	if ev, ok := v.(Event); ok {
		c.events = append(c.events, ev)
	}
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) eventCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func (c *fakeConn) firstEvent() Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[0]
}

func (h *Hub) sessionCount(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[userID])
}

func TestNotifyWithoutSessionsIsSilentNoOp(t *testing.T) {
	hub := NewHub()

	start := time.Now()
	hub.NotifyNewMessage(1, 10, "nobody home")
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 50*time.Millisecond, "dispatch must stay within a bounded budget")
}

func TestNotifyNewMessageReachesAllSessionsOfUser(t *testing.T) {
	hub := NewHub()
	first := &fakeConn{}
	second := &fakeConn{}
	other := &fakeConn{}
	hub.Attach(1, first)
	hub.Attach(1, second)
	hub.Attach(2, other)

	hub.NotifyNewMessage(1, 10, "new export")

	require.Eventually(t, func() bool {
		return first.eventCount() == 1 && second.eventCount() == 1
	}, time.Second, 5*time.Millisecond)

	ev := first.firstEvent()
	assert.Equal(t, EventNewMessage, ev.Event)
	assert.Equal(t, NewMessagePayload{MessageID: 10, MessageTitle: "new export"}, ev.Payload)

	assert.Zero(t, other.eventCount(), "other users' sessions must not receive the event")
}

func TestNotifyNeverBlocksOnSlowSession(t *testing.T) {
	hub := NewHub()
	slow := &fakeConn{delay: 50 * time.Millisecond}
	fast := &fakeConn{}
	hub.Attach(1, slow)
	hub.Attach(1, fast)

	start := time.Now()
	for i := 0; i < sessionBuffer+5; i++ {
		hub.Notify(1, Event{Event: "ping"})
	}
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 100*time.Millisecond, "enqueueing must not wait for slow writers")

	require.Eventually(t, func() bool {
		return fast.eventCount() >= 1
	}, time.Second, 5*time.Millisecond, "fast session must still receive events")
}

func TestWriteFailureDetachesOnlyThatSession(t *testing.T) {
	hub := NewHub()
	broken := &fakeConn{writeErr: errors.New("connection reset")}
	healthy := &fakeConn{}
	hub.Attach(1, broken)
	hub.Attach(1, healthy)

	hub.NotifyNewMessage(1, 10, "hello")

	require.Eventually(t, func() bool {
		return hub.sessionCount(1) == 1
	}, time.Second, 5*time.Millisecond, "failed session must be removed")

	require.Eventually(t, func() bool {
		return healthy.eventCount() == 1
	}, time.Second, 5*time.Millisecond, "healthy session must still be served")

	broken.mu.Lock()
	closed := broken.closed
	broken.mu.Unlock()
	assert.True(t, closed)
}

func TestDetachIsIdempotent(t *testing.T) {
	hub := NewHub()
	conn := &fakeConn{}
	session := hub.Attach(1, conn)

	hub.Detach(session)
	hub.Detach(session)

	assert.Zero(t, hub.sessionCount(1))

	hub.NotifyNewMessage(1, 10, "after detach")
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, conn.eventCount())
}
