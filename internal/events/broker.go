// Package events fans tenant session events out to live subscribers and
// registered sinks (webhooks, Kafka).
package events

import (
	"context"
	"sync"

	"github.com/carousell/ct-go/pkg/logger"
	"github.com/nguyentranbao-ct/chat-gateway/internal/models"
)

// blacklisted events never leave the process. They are either internal
// bookkeeping or too chatty to forward.
var blacklisted = map[string]bool{
	models.EventReceivedPong: true,
	models.EventClose:        true,
	models.EventCredsUpdated: true,
	"user-presence-update":   true,
	"message-update":         true,
}

// nonEmitting events reach sinks but are withheld from live subscribers.
var nonEmitting = map[string]bool{
	models.EventMessageNew: true,
}

// Sink receives every non-blacklisted event at least once. Delivery
// retries are the sink's own concern.
type Sink interface {
	Deliver(ctx context.Context, teamID string, env *models.EventEnvelope)
}

type Broker interface {
	Publish(ctx context.Context, teamID, event string, data any)
	// Subscribe registers a live listener for one tenant's events.
	// Delivery is at-most-once; slow listeners lose events.
	Subscribe(teamID string) (<-chan *models.EventEnvelope, func())
}

type broker struct {
	log   *logger.Logger
	sinks []Sink

	mu   sync.Mutex
	subs map[string][]chan *models.EventEnvelope
}

var _ Broker = (*broker)(nil)

func NewBroker(sinks []Sink) Broker {
	return &broker{
		log:   logger.MustNamed("events"),
		sinks: sinks,
		subs:  make(map[string][]chan *models.EventEnvelope),
	}
}

func (b *broker) Publish(ctx context.Context, teamID, event string, data any) {
	if blacklisted[event] {
		return
	}
	env := &models.EventEnvelope{Event: event, Data: data}
	for _, sink := range b.sinks {
		sink.Deliver(ctx, teamID, env)
	}
	if nonEmitting[event] {
		return
	}

	b.mu.Lock()
	subs := make([]chan *models.EventEnvelope, len(b.subs[teamID]))
	copy(subs, b.subs[teamID])
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- env:
		default:
			b.log.Warnw("dropping event for slow subscriber", "team_id", teamID, "event", event)
		}
	}
}

func (b *broker) Subscribe(teamID string) (<-chan *models.EventEnvelope, func()) {
	ch := make(chan *models.EventEnvelope, 256)
	b.mu.Lock()
	b.subs[teamID] = append(b.subs[teamID], ch)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[teamID]
		for i, s := range subs {
			if s == ch {
				b.subs[teamID] = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
		if len(b.subs[teamID]) == 0 {
			delete(b.subs, teamID)
		}
	}
	return ch, cancel
}
