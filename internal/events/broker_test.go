package events

import (
	"context"
	"sync"
	"testing"

	"github.com/nguyentranbao-ct/chat-gateway/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu   sync.Mutex
	seen []*models.EventEnvelope
}

func (s *recordingSink) Deliver(_ context.Context, _ string, env *models.EventEnvelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, env)
}

func (s *recordingSink) events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.seen))
	for i, env := range s.seen {
		out[i] = env.Event
	}
	return out
}

func TestPublishFanout(t *testing.T) {
	sink := &recordingSink{}
	b := NewBroker([]Sink{sink})
	ctx := context.Background()

	ch, cancel := b.Subscribe("team-1")
	defer cancel()

	b.Publish(ctx, "team-1", models.EventChatUpdate, &models.ChatUpdate{JID: "a@b"})

	env := <-ch
	assert.Equal(t, models.EventChatUpdate, env.Event)
	assert.Equal(t, []string{models.EventChatUpdate}, sink.events())
}

func TestPublishBlacklist(t *testing.T) {
	sink := &recordingSink{}
	b := NewBroker([]Sink{sink})
	ctx := context.Background()

	ch, cancel := b.Subscribe("team-1")
	defer cancel()

	b.Publish(ctx, "team-1", models.EventReceivedPong, nil)
	b.Publish(ctx, "team-1", models.EventClose, "gone")
	b.Publish(ctx, "team-1", models.EventOpen, nil)

	env := <-ch
	assert.Equal(t, models.EventOpen, env.Event)
	assert.Equal(t, []string{models.EventOpen}, sink.events())
}

func TestPublishNonEmitting(t *testing.T) {
	sink := &recordingSink{}
	b := NewBroker([]Sink{sink})
	ctx := context.Background()

	ch, cancel := b.Subscribe("team-1")
	defer cancel()

	b.Publish(ctx, "team-1", models.EventMessageNew, &models.Message{ID: "m1"})
	b.Publish(ctx, "team-1", models.EventStateSync, nil)

	env := <-ch
	assert.Equal(t, models.EventStateSync, env.Event)
	require.Len(t, ch, 0)
	assert.Equal(t, []string{models.EventMessageNew, models.EventStateSync}, sink.events())
}

func TestSubscribeIsolation(t *testing.T) {
	b := NewBroker(nil)
	ctx := context.Background()

	ch1, cancel1 := b.Subscribe("team-1")
	defer cancel1()
	ch2, cancel2 := b.Subscribe("team-2")
	defer cancel2()

	b.Publish(ctx, "team-1", models.EventOpen, nil)

	assert.Len(t, ch1, 1)
	assert.Len(t, ch2, 0)
}

func TestCancelStopsDelivery(t *testing.T) {
	b := NewBroker(nil)
	ctx := context.Background()

	ch, cancel := b.Subscribe("team-1")
	cancel()

	b.Publish(ctx, "team-1", models.EventOpen, nil)

	_, open := <-ch
	assert.False(t, open)
}
