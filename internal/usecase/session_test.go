package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/nguyentranbao-ct/chat-gateway/internal/events"
	"github.com/nguyentranbao-ct/chat-gateway/internal/models"
	"github.com/nguyentranbao-ct/chat-gateway/internal/protocol"
	"github.com/nguyentranbao-ct/chat-gateway/internal/protocol/loopback"
	"github.com/nguyentranbao-ct/chat-gateway/internal/repo/memstore"
	"github.com/nguyentranbao-ct/chat-gateway/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureDialer exposes the loopback connection to the test.
type captureDialer struct {
	inner *loopback.Dialer
	conn  *loopback.Conn
}

func (d *captureDialer) Dial(ctx context.Context, teamID string, account *models.AccountInfo) (protocol.Conn, error) {
	conn, err := d.inner.Dial(ctx, teamID, account)
	if err != nil {
		return nil, err
	}
	d.conn = conn.(*loopback.Conn)
	return conn, nil
}

type sessionEnv struct {
	store  *memstore.Store
	dialer *captureDialer
	deps   SessionDeps
}

func newSessionEnv() *sessionEnv {
	st := memstore.New()
	dialer := &captureDialer{inner: loopback.NewDialer()}
	return &sessionEnv{
		store:  st,
		dialer: dialer,
		deps: SessionDeps{
			Store:  st,
			Blobs:  memstore.NewBlobStore("http://blobs.local"),
			Dialer: dialer,
			Broker: events.NewBroker(nil),
		},
	}
}

func (e *sessionEnv) start(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession(context.Background(), "team-1", e.deps)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestSessionComposeImmediate(t *testing.T) {
	ctx := context.Background()
	env := newSessionEnv()
	s := env.start(t)

	live, cancel := s.Subscribe()
	defer cancel()

	msg, err := s.Compose(ctx, &models.ComposeRequest{
		JID:         "friend@c.us",
		MessageBody: models.MessageBody{Text: "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusServerAck, msg.Status)
	assert.False(t, msg.Scheduled)

	history, _, err := s.Messages(ctx, &models.MessagesRequest{JID: "friend@c.us"})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, msg.ID, history[0].ID)

	assert.Eventually(t, func() bool {
		select {
		case ev := <-live:
			return ev.Event == models.EventChatUpdate
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestSessionComposeScheduledPublishesUpdate(t *testing.T) {
	ctx := context.Background()
	env := newSessionEnv()
	s := env.start(t)

	live, cancel := s.Subscribe()
	defer cancel()

	msg, err := s.Compose(ctx, &models.ComposeRequest{
		JID:         "friend@c.us",
		MessageBody: models.MessageBody{Text: "later"},
		ScheduleAt:  time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, err)
	require.True(t, msg.Scheduled)

	assert.Eventually(t, func() bool {
		select {
		case ev := <-live:
			if ev.Event != models.EventChatUpdate {
				return false
			}
			upd, ok := ev.Data.(*models.ChatUpdate)
			return ok && len(upd.Messages) == 1 &&
				upd.Messages[0].ID == msg.ID && upd.Messages[0].Scheduled
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestSessionCreateNoteUnknownChat(t *testing.T) {
	env := newSessionEnv()
	s := env.start(t)

	_, err := s.CreateNote(context.Background(), &models.NoteCreateRequest{JID: "stranger@c.us", Text: "hi"}, "agent")
	assert.True(t, models.IsNotFound(err))
}

func TestSessionComposeEmptyBody(t *testing.T) {
	env := newSessionEnv()
	s := env.start(t)

	_, err := s.Compose(context.Background(), &models.ComposeRequest{JID: "friend@c.us"})
	assert.Error(t, err)
}

func TestSessionComposeScheduledFires(t *testing.T) {
	ctx := context.Background()
	env := newSessionEnv()
	s := env.start(t)

	msg, err := s.Compose(ctx, &models.ComposeRequest{
		JID:         "friend@c.us",
		MessageBody: models.MessageBody{Text: "later"},
		ScheduleAt:  time.Now().Unix(),
	})
	require.NoError(t, err)
	assert.True(t, msg.Scheduled)
	assert.Equal(t, models.StatusPending, msg.Status)

	assert.Eventually(t, func() bool {
		history, _, err := s.Messages(ctx, &models.MessagesRequest{JID: "friend@c.us"})
		require.NoError(t, err)
		return len(history) == 1 && !history[0].Scheduled && history[0].Status == models.StatusServerAck
	}, 3*time.Second, 20*time.Millisecond)

	pending, err := env.store.LoadPendingMessages(ctx, "team-1")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSessionScheduledCancel(t *testing.T) {
	ctx := context.Background()
	env := newSessionEnv()
	s := env.start(t)

	msg, err := s.Compose(ctx, &models.ComposeRequest{
		JID:         "friend@c.us",
		MessageBody: models.MessageBody{Text: "never"},
		ScheduleAt:  time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, err)

	got, err := s.DeleteMessage(ctx, "friend@c.us", msg.ID, false)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, got.ID)

	history, _, err := s.Messages(ctx, &models.MessagesRequest{JID: "friend@c.us"})
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSessionTagConflict(t *testing.T) {
	ctx := context.Background()
	env := newSessionEnv()
	s := env.start(t)

	_, err := s.Compose(ctx, &models.ComposeRequest{
		JID:         "friend@c.us",
		MessageBody: models.MessageBody{Text: "one"},
		Tag:         "order-42",
	})
	require.NoError(t, err)

	_, err = s.Compose(ctx, &models.ComposeRequest{
		JID:         "friend@c.us",
		MessageBody: models.MessageBody{Text: "two"},
		Tag:         "order-42",
	})
	assert.ErrorIs(t, err, models.ErrTagConflict)

	// a different tag passes
	_, err = s.Compose(ctx, &models.ComposeRequest{
		JID:         "friend@c.us",
		MessageBody: models.MessageBody{Text: "three"},
		Tag:         "order-43",
	})
	assert.NoError(t, err)
}

func TestSessionTagReleasedOnSendFailure(t *testing.T) {
	ctx := context.Background()
	env := newSessionEnv()
	s := env.start(t)

	env.dialer.conn.SendErr = protocol.NewError(428, "boom")
	_, err := s.Compose(ctx, &models.ComposeRequest{
		JID:         "friend@c.us",
		MessageBody: models.MessageBody{Text: "x"},
		Tag:         "order-42",
	})
	require.Error(t, err)

	env.dialer.conn.SendErr = nil
	_, err = s.Compose(ctx, &models.ComposeRequest{
		JID:         "friend@c.us",
		MessageBody: models.MessageBody{Text: "x"},
		Tag:         "order-42",
	})
	assert.NoError(t, err)
}

func TestSessionMergedHistory(t *testing.T) {
	ctx := context.Background()
	env := newSessionEnv()
	s := env.start(t)

	sent, err := s.Compose(ctx, &models.ComposeRequest{
		JID:         "friend@c.us",
		MessageBody: models.MessageBody{Text: "delivered"},
	})
	require.NoError(t, err)

	scheduled, err := s.Compose(ctx, &models.ComposeRequest{
		JID:         "friend@c.us",
		MessageBody: models.MessageBody{Text: "pending"},
		ScheduleAt:  time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, err)

	note, err := s.CreateNote(ctx, &models.NoteCreateRequest{JID: "friend@c.us", Text: "remember"}, "agent")
	require.NoError(t, err)

	history, _, err := s.Messages(ctx, &models.MessagesRequest{JID: "friend@c.us"})
	require.NoError(t, err)
	require.Len(t, history, 3)

	// ordered by the shared key: delivered and note share wall-clock time,
	// the scheduled one sits an hour ahead
	assert.Equal(t, scheduled.ID, history[2].ID)
	ids := []string{history[0].ID, history[1].ID}
	assert.Contains(t, ids, sent.ID)
	assert.Contains(t, ids, note.ID)
	assert.LessOrEqual(t, history[0].OrderKey(), history[1].OrderKey())
}

func TestSessionRestartKeepsPending(t *testing.T) {
	ctx := context.Background()
	env := newSessionEnv()
	s := env.start(t)

	msg, err := s.Compose(ctx, &models.ComposeRequest{
		JID:         "friend@c.us",
		MessageBody: models.MessageBody{Text: "survives"},
		ScheduleAt:  time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, err)
	s.Close()

	// same durable store, fresh connection
	env.dialer.conn = nil
	s2, err := NewSession(ctx, "team-1", env.deps)
	require.NoError(t, err)
	defer s2.Close()

	history, _, err := s2.Messages(ctx, &models.MessagesRequest{JID: "friend@c.us"})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, msg.ID, history[0].ID)
	assert.True(t, history[0].Scheduled)

	_, err = s2.Reschedule(ctx, &models.RescheduleRequest{
		JID:        "friend@c.us",
		MessageID:  msg.ID,
		ScheduleAt: time.Now().Unix(),
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		history, _, err := s2.Messages(ctx, &models.MessagesRequest{JID: "friend@c.us"})
		require.NoError(t, err)
		return len(history) == 1 && !history[0].Scheduled
	}, 3*time.Second, 20*time.Millisecond)
}

func TestSessionDeleteChatCancelsPending(t *testing.T) {
	ctx := context.Background()
	env := newSessionEnv()
	s := env.start(t)

	_, err := s.Compose(ctx, &models.ComposeRequest{
		JID:         "friend@c.us",
		MessageBody: models.MessageBody{Text: "x"},
		ScheduleAt:  time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteChat(ctx, "friend@c.us"))

	pending, err := env.store.LoadPendingMessages(ctx, "team-1")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSessionState(t *testing.T) {
	env := newSessionEnv()
	s := env.start(t)

	st := s.State()
	assert.Equal(t, models.StateOpen, st.Connection)
	require.NotNil(t, st.User)
}

func TestSessionProfilePictureCached(t *testing.T) {
	ctx := context.Background()
	env := newSessionEnv()
	s := env.start(t)

	env.dialer.conn.SetContact(&models.Contact{JID: "friend@c.us", Name: "Jane", ImgURL: "http://img/1"})

	url, err := s.ProfilePicture(ctx, "friend@c.us")
	require.NoError(t, err)
	assert.Equal(t, "http://img/1", url)

	// cached: a changed upstream value is not observed within the TTL
	env.dialer.conn.SetContact(&models.Contact{JID: "friend@c.us", Name: "Jane", ImgURL: "http://img/2"})
	url, err = s.ProfilePicture(ctx, "friend@c.us")
	require.NoError(t, err)
	assert.Equal(t, "http://img/1", url)
}

func TestSessionLogoutDisablesReconnect(t *testing.T) {
	ctx := context.Background()
	env := newSessionEnv()
	s := env.start(t)

	// the open event persists the account with auto reconnect on
	assert.Eventually(t, func() bool {
		account, err := env.store.GetAccount(ctx, "team-1")
		require.NoError(t, err)
		return account != nil && account.AutoReconnect
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, s.Logout(ctx))

	account, err := env.store.GetAccount(ctx, "team-1")
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.False(t, account.AutoReconnect)
}

func TestSessionChatFilters(t *testing.T) {
	ctx := context.Background()
	env := newSessionEnv()
	s := env.start(t)

	_, err := s.Compose(ctx, &models.ComposeRequest{
		JID:         "alice@c.us",
		MessageBody: models.MessageBody{Text: "hi alice"},
	})
	require.NoError(t, err)
	_, err = s.Compose(ctx, &models.ComposeRequest{
		JID:         "bob@c.us",
		MessageBody: models.MessageBody{Text: "hi bob"},
	})
	require.NoError(t, err)

	require.NoError(t, s.ModifyChat(ctx, &models.ChatModifyRequest{
		JID:          "alice@c.us",
		Modification: models.ModArchive,
	}))

	archived, _ := s.Chats(&models.ChatListRequest{Archived: util.Ptr(true)})
	require.Len(t, archived, 1)
	assert.Equal(t, "alice@c.us", archived[0].JID)

	active, _ := s.Chats(&models.ChatListRequest{Archived: util.Ptr(false)})
	require.Len(t, active, 1)
	assert.Equal(t, "bob@c.us", active[0].JID)

	all, _ := s.Chats(&models.ChatListRequest{})
	assert.Len(t, all, 2)
}
