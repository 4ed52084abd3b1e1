package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/carousell/ct-go/pkg/logger"
	"github.com/nguyentranbao-ct/chat-gateway/internal/models"
	"github.com/nguyentranbao-ct/chat-gateway/internal/store"
	"github.com/nguyentranbao-ct/chat-gateway/pkg/msgq"
)

// Sender delivers a message over the live protocol connection.
type Sender interface {
	State() models.ConnState
	Send(ctx context.Context, msg *models.Message) error
}

// Scheduler holds back scheduled messages until their due time and
// delivers each at most once. The durable store is written before any
// in-memory change, so a crash between the two leaves a record that is
// re-armed on the next start instead of a message that silently vanished.
//
// All operations serialize on one mutex; a tenant's scheduling work is a
// single logical thread. Each chat carries at most one armed timer, for
// its earliest pending message; every mutation cancels the chat's timer
// before touching the queue and re-arms afterwards.
type Scheduler struct {
	log    *logger.Logger
	teamID string
	store  store.Store
	sender Sender

	mu     sync.Mutex
	queue  *msgq.Set[*models.Message]
	timers map[string]*timer // keyed by chat id
	armed  bool

	now func() time.Time
}

type timer struct {
	cancel context.CancelFunc
}

func NewScheduler(teamID string, st store.Store, sender Sender) *Scheduler {
	return &Scheduler{
		log:    logger.MustNamed("scheduler"),
		teamID: teamID,
		store:  st,
		sender: sender,
		queue:  newMessageSet(),
		timers: make(map[string]*timer),
		now:    time.Now,
	}
}

func newMessageSet() *msgq.Set[*models.Message] {
	return msgq.NewSet(
		func(m *models.Message) int64 { return m.OrderKey() },
		func(m *models.Message) string { return m.ID },
	)
}

// LoadPending rebuilds the queue from the durable records, typically once
// at session start. Timers are not armed until ArmAll.
func (s *Scheduler) LoadPending(ctx context.Context) error {
	pending, err := s.store.LoadPendingMessages(ctx, s.teamID)
	if err != nil {
		return fmt.Errorf("failed to load pending messages: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = newMessageSet()
	for _, msg := range pending {
		s.queue.Insert(msg)
	}
	return nil
}

// Relay accepts a scheduled message: durable record first, then queue,
// then a timer when the connection is armed.
func (s *Scheduler) Relay(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.SavePendingMessage(ctx, s.teamID, msg.ID, msg); err != nil {
		return fmt.Errorf("failed to persist scheduled message: %w", err)
	}
	s.queue.Insert(msg)
	if s.armed {
		s.armChatLocked(msg.ChatID)
	}
	return nil
}

// Reschedule moves a pending message to a new due time. A message that
// already failed goes back to pending and gets a fresh attempt.
func (s *Scheduler) Reschedule(ctx context.Context, messageID string, at int64) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.queue.Get(messageID)
	if !ok {
		return nil, models.ErrNotFound
	}
	updated := *msg
	updated.Timestamp = at
	updated.Status = models.StatusPending
	if err := s.store.SavePendingMessage(ctx, s.teamID, messageID, &updated); err != nil {
		return nil, fmt.Errorf("failed to persist reschedule: %w", err)
	}

	s.cancelTimerLocked(msg.ChatID)
	s.queue.UpdateKey(messageID, func(m *models.Message) {
		m.Timestamp = at
		m.Status = models.StatusPending
	})
	if s.armed {
		s.armChatLocked(msg.ChatID)
	}
	return msg, nil
}

// CancelOne withdraws a pending message. After it returns the message
// cannot be delivered anymore.
func (s *Scheduler) CancelOne(ctx context.Context, messageID string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.queue.Get(messageID)
	if !ok {
		return nil, models.ErrNotFound
	}
	if err := s.store.SavePendingMessage(ctx, s.teamID, messageID, nil); err != nil {
		return nil, fmt.Errorf("failed to delete pending message: %w", err)
	}
	s.cancelTimerLocked(msg.ChatID)
	s.queue.Delete(messageID)
	if s.armed {
		s.armChatLocked(msg.ChatID)
	}
	return msg, nil
}

// CancelChat withdraws every pending message of one chat.
func (s *Scheduler) CancelChat(ctx context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelTimerLocked(chatID)
	for _, msg := range s.queue.All() {
		if msg.ChatID != chatID {
			continue
		}
		if err := s.store.SavePendingMessage(ctx, s.teamID, msg.ID, nil); err != nil {
			return fmt.Errorf("failed to delete pending message: %w", err)
		}
		s.queue.Delete(msg.ID)
	}
	return nil
}

// ArmAll starts each chat's earliest-pending timer; due and overdue ones
// fire immediately. Called when the connection opens.
func (s *Scheduler) ArmAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.armed = true
	seen := make(map[string]bool)
	for _, msg := range s.queue.All() {
		if seen[msg.ChatID] {
			continue
		}
		seen[msg.ChatID] = true
		s.armChatLocked(msg.ChatID)
	}
}

// DescheduleAll stops every timer but keeps queue and durable records.
// Called when the connection drops.
func (s *Scheduler) DescheduleAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.armed = false
	for id := range s.timers {
		s.cancelTimerLocked(id)
	}
}

// PendingFor returns the pending messages of one chat in order.
func (s *Scheduler) PendingFor(chatID string) []*models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Message
	for _, msg := range s.queue.All() {
		if msg.ChatID == chatID {
			out = append(out, msg)
		}
	}
	return out
}

// Pending returns every queued message in order.
func (s *Scheduler) Pending() []*models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.All()
}

func (s *Scheduler) Get(messageID string) (*models.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Get(messageID)
}

// earliestLocked returns the chat's earliest pending message that has not
// failed. caller must hold s.mu
func (s *Scheduler) earliestLocked(chatID string) *models.Message {
	for _, msg := range s.queue.All() {
		if msg.ChatID == chatID && msg.Status != models.StatusFailed {
			return msg
		}
	}
	return nil
}

// armChatLocked replaces the chat's timer with one for its earliest
// pending message, or leaves the chat timerless when nothing is due.
// caller must hold s.mu
func (s *Scheduler) armChatLocked(chatID string) {
	s.cancelTimerLocked(chatID)

	msg := s.earliestLocked(chatID)
	if msg == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &timer{cancel: cancel}
	s.timers[chatID] = t

	delay := time.Unix(msg.Timestamp, 0).Sub(s.now())
	go s.wait(ctx, t, chatID, delay)
}

// caller must hold s.mu
func (s *Scheduler) cancelTimerLocked(chatID string) {
	if t, ok := s.timers[chatID]; ok {
		t.cancel()
		delete(s.timers, chatID)
	}
}

func (s *Scheduler) wait(ctx context.Context, t *timer, chatID string, delay time.Duration) {
	if delay > 0 {
		tm := time.NewTimer(delay)
		defer tm.Stop()
		select {
		case <-ctx.Done():
			return
		case <-tm.C:
		}
	}
	s.fire(t, chatID)
}

func (s *Scheduler) fire(t *timer, chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A canceled or replaced timer must never deliver; only the timer
	// still registered for the chat may proceed. While it stayed
	// registered no mutation touched this chat's queue.
	if current, ok := s.timers[chatID]; !ok || current != t {
		return
	}
	delete(s.timers, chatID)

	msg := s.earliestLocked(chatID)
	if msg == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	// the delivered message drops the scheduled marker before it reaches
	// the connection; sending a copy keeps the queue entry out of the
	// hands of event subscribers
	out := *msg
	out.Scheduled = false
	if err := s.sender.Send(ctx, &out); err != nil {
		s.log.Errorw("scheduled delivery failed", "team_id", s.teamID, "message_id", msg.ID, "error", err)
		failed := *msg
		failed.Status = models.StatusFailed
		if serr := s.store.SavePendingMessage(ctx, s.teamID, msg.ID, &failed); serr != nil {
			s.log.Errorw("failed to persist delivery failure", "team_id", s.teamID, "message_id", msg.ID, "error", serr)
		}
		msg.Status = models.StatusFailed
		s.armChatLocked(chatID)
		return
	}

	if err := s.store.SavePendingMessage(ctx, s.teamID, msg.ID, nil); err != nil {
		s.log.Errorw("failed to clear delivered message", "team_id", s.teamID, "message_id", msg.ID, "error", err)
	}
	s.queue.Delete(msg.ID)
	s.armChatLocked(chatID)
}
