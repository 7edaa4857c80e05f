package service

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barrinalo/CATMAID/internal/domain"
)

// fakeMessageStore keeps messages in memory with the same semantics as the
// SQL repository: owner-scoped reads, time-descending order, idempotent
// mark-read.
type fakeMessageStore struct {
	messages map[int64]domain.Message
	nextID   int64
}

func newFakeMessageStore(messages ...domain.Message) *fakeMessageStore {
	s := &fakeMessageStore{messages: make(map[int64]domain.Message), nextID: 1}
	for _, m := range messages {
		if m.ID >= s.nextID {
			s.nextID = m.ID + 1
		}
		s.messages[m.ID] = m
	}
	return s
}

func (s *fakeMessageStore) ListUnread(_ context.Context, userID int64) ([]domain.Message, error) {
	var unread []domain.Message
	for _, m := range s.messages {
		if m.UserID == userID && !m.Read {
			unread = append(unread, m)
		}
	}
	sort.Slice(unread, func(i, j int) bool { return unread[i].Time.After(unread[j].Time) })
	return unread, nil
}

func (s *fakeMessageStore) MostRecentUnreadTime(ctx context.Context, userID int64) (*time.Time, error) {
	unread, _ := s.ListUnread(ctx, userID)
	if len(unread) == 0 {
		return nil, nil
	}
	return &unread[0].Time, nil
}

func (s *fakeMessageStore) MarkRead(_ context.Context, messageID, userID int64) (*domain.Message, error) {
	m, ok := s.messages[messageID]
	if !ok || m.UserID != userID {
		return nil, domain.ErrNotFound
	}
	m.Read = true
	s.messages[messageID] = m
	return &m, nil
}

func (s *fakeMessageStore) Create(_ context.Context, _ sqlx.ExtContext, m domain.Message) (*domain.Message, error) {
	m.ID = s.nextID
	m.Time = time.Now()
	s.nextID++
	s.messages[m.ID] = m
	return &m, nil
}

type fakeChangeRequestStore struct {
	openByRecipient map[int64]int
}

func (s *fakeChangeRequestStore) CountOpenForRecipient(_ context.Context, recipientID int64) (int, error) {
	return s.openByRecipient[recipientID], nil
}

type notifyCall struct {
	userID    int64
	messageID int64
	title     string
}

type fakeNotifier struct {
	calls []notifyCall
}

func (n *fakeNotifier) NotifyNewMessage(userID, messageID int64, messageTitle string) {
	n.calls = append(n.calls, notifyCall{userID: userID, messageID: messageID, title: messageTitle})
}

func newInboxFixture(messages ...domain.Message) (*InboxService, *fakeMessageStore, *fakeChangeRequestStore, *fakeNotifier) {
	store := newFakeMessageStore(messages...)
	crs := &fakeChangeRequestStore{openByRecipient: make(map[int64]int)}
	notifier := &fakeNotifier{}
	audit := NewAuditService(&fakeTxRunner{}, &fakeTxLog{})
	return NewInboxService(store, crs, notifier, audit), store, crs, notifier
}

func strp(s string) *string { return &s }

func TestGetLatestUnreadMarkerNoUnreadMessages(t *testing.T) {
	svc, _, _, _ := newInboxFixture(
		domain.Message{ID: 1, UserID: 1, Title: "old news", Time: time.Unix(50, 0), Read: true},
	)

	marker, err := svc.GetLatestUnreadMarker(context.Background(), 1)

	require.NoError(t, err)
	assert.Nil(t, marker)
}

func TestGetLatestUnreadMarkerIgnoresReadMessages(t *testing.T) {
	svc, _, _, _ := newInboxFixture(
		domain.Message{ID: 1, UserID: 1, Title: "a", Time: time.Unix(100, 0)},
		domain.Message{ID: 2, UserID: 1, Title: "b", Time: time.Unix(200, 0)},
		domain.Message{ID: 3, UserID: 1, Title: "c", Time: time.Unix(50, 0), Read: true},
		domain.Message{ID: 4, UserID: 2, Title: "someone else", Time: time.Unix(900, 0)},
	)

	marker, err := svc.GetLatestUnreadMarker(context.Background(), 1)

	require.NoError(t, err)
	require.NotNil(t, marker)
	assert.Equal(t, time.Unix(200, 0), *marker)
}

func TestListInboxOrdersUnreadMostRecentFirst(t *testing.T) {
	svc, _, crs, _ := newInboxFixture(
		domain.Message{ID: 1, UserID: 1, Title: "a", Time: time.Unix(100, 0)},
		domain.Message{ID: 2, UserID: 1, Title: "b", Time: time.Unix(200, 0)},
		domain.Message{ID: 3, UserID: 1, Title: "c", Time: time.Unix(50, 0), Read: true},
	)
	crs.openByRecipient[1] = 3

	inbox, err := svc.ListInbox(context.Background(), 1)

	require.NoError(t, err)
	require.Len(t, inbox.Messages, 2)
	assert.Equal(t, int64(2), inbox.Messages[0].ID)
	assert.Equal(t, int64(1), inbox.Messages[1].ID)
	assert.Equal(t, 3, inbox.NotificationCount)
}

func TestListInboxEmptyStillCarriesBadgeCount(t *testing.T) {
	svc, _, crs, _ := newInboxFixture()
	crs.openByRecipient[1] = 2

	inbox, err := svc.ListInbox(context.Background(), 1)

	require.NoError(t, err)
	assert.Empty(t, inbox.Messages)
	assert.Equal(t, 2, inbox.NotificationCount)
}

func TestAcknowledgeOwnershipIsolation(t *testing.T) {
	svc, store, _, _ := newInboxFixture(
		domain.Message{ID: 1, UserID: 2, Title: "not yours", Time: time.Unix(100, 0)},
	)

	_, err := svc.Acknowledge(context.Background(), 1, 1)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, missingErr := svc.Acknowledge(context.Background(), 1, 999)
	assert.Equal(t, err, missingErr, "foreign and nonexistent messages must be indistinguishable")

	assert.False(t, store.messages[1].Read, "foreign message must stay unread")
}

func TestAcknowledgeIsIdempotent(t *testing.T) {
	svc, _, _, _ := newInboxFixture(
		domain.Message{ID: 1, UserID: 1, Title: "a", Action: strp("https://example.org/x"), Time: time.Unix(100, 0)},
	)

	first, err := svc.Acknowledge(context.Background(), 1, 1)
	require.NoError(t, err)

	second, err := svc.Acknowledge(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAcknowledgeOutcome(t *testing.T) {
	svc, _, _, _ := newInboxFixture(
		domain.Message{ID: 1, UserID: 1, Title: "with action", Action: strp("https://example.org/review"), Time: time.Unix(100, 0)},
		domain.Message{ID: 2, UserID: 1, Title: "empty action", Action: strp(""), Time: time.Unix(110, 0)},
		domain.Message{ID: 3, UserID: 1, Title: "no action", Time: time.Unix(120, 0)},
	)

	withAction, err := svc.Acknowledge(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/review", withAction.RedirectTo)

	emptyAction, err := svc.Acknowledge(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Empty(t, emptyAction.RedirectTo)

	noAction, err := svc.Acknowledge(context.Background(), 1, 3)
	require.NoError(t, err)
	assert.Empty(t, noAction.RedirectTo)
}

func TestNotifyOnCreatePassesThrough(t *testing.T) {
	svc, _, _, notifier := newInboxFixture()

	svc.NotifyOnCreate(1, 10, "hello")

	require.Len(t, notifier.calls, 1)
	assert.Equal(t, notifyCall{userID: 1, messageID: 10, title: "hello"}, notifier.calls[0])
}

func TestSendMessageLabelsAndNotifies(t *testing.T) {
	store := newFakeMessageStore()
	crs := &fakeChangeRequestStore{openByRecipient: make(map[int64]int)}
	notifier := &fakeNotifier{}
	log := &fakeTxLog{}
	svc := NewInboxService(store, crs, notifier, NewAuditService(&fakeTxRunner{}, log))

	ctx := WithUserID(context.Background(), 42)
	created, err := svc.SendMessage(ctx, domain.Message{UserID: 1, Title: "export done", Text: "ready"})

	require.NoError(t, err)
	require.NotNil(t, created)
	assert.False(t, created.Read)

	require.Len(t, log.appends, 1)
	assert.Equal(t, appendCall{userID: 42, label: "messages.create"}, log.appends[0])

	require.Len(t, notifier.calls, 1)
	assert.Equal(t, notifyCall{userID: 1, messageID: created.ID, title: "export done"}, notifier.calls[0])
}

func TestSendMessageRequiresCallerIdentity(t *testing.T) {
	svc, store, _, notifier := newInboxFixture()

	_, err := svc.SendMessage(context.Background(), domain.Message{UserID: 1, Title: "x"})

	require.ErrorIs(t, err, domain.ErrNoUserContext)
	assert.Empty(t, store.messages, "no message may be created without an acting user")
	assert.Empty(t, notifier.calls)
}
