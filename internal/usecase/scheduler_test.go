package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nguyentranbao-ct/chat-gateway/internal/models"
	"github.com/nguyentranbao-ct/chat-gateway/internal/repo/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []*models.Message
	err  error
}

func (f *fakeSender) State() models.ConnState { return models.StateOpen }

func (f *fakeSender) Send(_ context.Context, msg *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	msg.Status = models.StatusServerAck
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) sentIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, m := range f.sent {
		out[i] = m.ID
	}
	return out
}

func scheduledMessage(id, chatID string, at int64) *models.Message {
	return &models.Message{
		ID:        id,
		ChatID:    chatID,
		FromMe:    true,
		Timestamp: at,
		Status:    models.StatusPending,
		Scheduled: true,
		Body:      &models.MessageBody{Text: "later"},
	}
}

func TestSchedulerFiresDueMessage(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	sender := &fakeSender{}
	s := NewScheduler("team-1", st, sender)

	msg := scheduledMessage("m1", "a@b", time.Now().Unix())
	require.NoError(t, s.Relay(ctx, msg))
	s.ArmAll()

	assert.Eventually(t, func() bool {
		return len(sender.sentIDs()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	pending, err := st.LoadPendingMessages(ctx, "team-1")
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Empty(t, s.Pending())

	// the connection gets its own copy with the scheduled marker removed
	sender.mu.Lock()
	delivered := sender.sent[0]
	sender.mu.Unlock()
	assert.Equal(t, "m1", delivered.ID)
	assert.False(t, delivered.Scheduled)
	assert.NotSame(t, msg, delivered)
}

func TestSchedulerCancelPreventsDelivery(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	sender := &fakeSender{}
	s := NewScheduler("team-1", st, sender)

	msg := scheduledMessage("m1", "a@b", time.Now().Add(100*time.Millisecond).Unix())
	require.NoError(t, s.Relay(ctx, msg))
	s.ArmAll()

	got, err := s.CancelOne(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", got.ID)

	time.Sleep(1500 * time.Millisecond)
	assert.Empty(t, sender.sentIDs())

	pending, err := st.LoadPendingMessages(ctx, "team-1")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSchedulerCancelTwice(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	s := NewScheduler("team-1", st, &fakeSender{})

	msg := scheduledMessage("m1", "a@b", time.Now().Add(time.Hour).Unix())
	require.NoError(t, s.Relay(ctx, msg))

	_, err := s.CancelOne(ctx, "m1")
	require.NoError(t, err)
	_, err = s.CancelOne(ctx, "m1")
	assert.True(t, models.IsNotFound(err))
}

func TestSchedulerRescheduleEarlier(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	sender := &fakeSender{}
	s := NewScheduler("team-1", st, sender)

	msg := scheduledMessage("m1", "a@b", time.Now().Add(time.Hour).Unix())
	require.NoError(t, s.Relay(ctx, msg))
	s.ArmAll()

	_, err := s.Reschedule(ctx, "m1", time.Now().Unix())
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(sender.sentIDs()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSchedulerRearmDeliversOnce(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	sender := &fakeSender{}
	s := NewScheduler("team-1", st, sender)

	msg := scheduledMessage("m1", "a@b", time.Now().Unix())
	require.NoError(t, s.Relay(ctx, msg))
	s.ArmAll()
	s.DescheduleAll()
	s.ArmAll()
	s.ArmAll()

	assert.Eventually(t, func() bool {
		return len(sender.sentIDs()) >= 1
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, []string{"m1"}, sender.sentIDs())
}

func TestSchedulerKeepsFailedDelivery(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	sender := &fakeSender{err: errors.New("connection not open")}
	s := NewScheduler("team-1", st, sender)

	msg := scheduledMessage("m1", "a@b", time.Now().Unix())
	require.NoError(t, s.Relay(ctx, msg))
	s.ArmAll()

	assert.Eventually(t, func() bool {
		got, ok := s.Get("m1")
		return ok && got.Status == models.StatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	pending, err := st.LoadPendingMessages(ctx, "team-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, models.StatusFailed, pending[0].Status)
	assert.True(t, pending[0].Scheduled)

	// failed messages stay put on re-arm, a reschedule revives them
	s.DescheduleAll()
	s.ArmAll()
	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, sender.sentIDs())

	sender.mu.Lock()
	sender.err = nil
	sender.mu.Unlock()
	_, err = s.Reschedule(ctx, "m1", time.Now().Unix())
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		return len(sender.sentIDs()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSchedulerSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()

	first := NewScheduler("team-1", st, &fakeSender{})
	due := time.Now().Add(time.Hour).Unix()
	require.NoError(t, first.Relay(ctx, scheduledMessage("m1", "a@b", due)))
	require.NoError(t, first.Relay(ctx, scheduledMessage("m2", "c@d", due+10)))

	sender := &fakeSender{}
	second := NewScheduler("team-1", st, sender)
	require.NoError(t, second.LoadPending(ctx))

	pending := second.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "m1", pending[0].ID)
	assert.Equal(t, "m2", pending[1].ID)

	_, err := second.Reschedule(ctx, "m1", time.Now().Unix())
	require.NoError(t, err)
	second.ArmAll()
	assert.Eventually(t, func() bool {
		return len(sender.sentIDs()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSchedulerCancelChat(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	s := NewScheduler("team-1", st, &fakeSender{})

	due := time.Now().Add(time.Hour).Unix()
	require.NoError(t, s.Relay(ctx, scheduledMessage("m1", "a@b", due)))
	require.NoError(t, s.Relay(ctx, scheduledMessage("m2", "a@b", due+1)))
	require.NoError(t, s.Relay(ctx, scheduledMessage("m3", "c@d", due+2)))

	require.NoError(t, s.CancelChat(ctx, "a@b"))

	assert.Empty(t, s.PendingFor("a@b"))
	require.Len(t, s.PendingFor("c@d"), 1)

	pending, err := st.LoadPendingMessages(ctx, "team-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "m3", pending[0].ID)
}

func TestSchedulerChatDeliversSequentially(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	sender := &fakeSender{}
	s := NewScheduler("team-1", st, sender)

	now := time.Now().Unix()
	require.NoError(t, s.Relay(ctx, scheduledMessage("m1", "a@b", now)))
	require.NoError(t, s.Relay(ctx, scheduledMessage("m2", "a@b", now+1)))
	s.ArmAll()

	// one timer per chat: m2 only arms after m1 delivered
	assert.Eventually(t, func() bool {
		return len(sender.sentIDs()) == 2
	}, 4*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"m1", "m2"}, sender.sentIDs())
	assert.Empty(t, s.Pending())
}
