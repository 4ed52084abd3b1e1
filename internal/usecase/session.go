package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/carousell/ct-go/pkg/logger"
	"github.com/nguyentranbao-ct/chat-gateway/internal/events"
	"github.com/nguyentranbao-ct/chat-gateway/internal/models"
	"github.com/nguyentranbao-ct/chat-gateway/internal/protocol"
	"github.com/nguyentranbao-ct/chat-gateway/internal/store"
	"github.com/nguyentranbao-ct/chat-gateway/pkg/keyedmutex"
	"github.com/nguyentranbao-ct/chat-gateway/pkg/memo"
	"github.com/nguyentranbao-ct/chat-gateway/pkg/msgq"
)

const (
	tagTTL        = 6 * time.Hour
	mediaURLTTL   = 3 * time.Hour
	mediaURLKeys  = 100
	defaultPage   = 50
	chatPreviewSz = 20
)

// SessionDeps are the process-wide services a session is built from.
type SessionDeps struct {
	Store  store.Store
	Blobs  store.BlobStore
	Dialer protocol.Dialer
	Broker events.Broker
}

// Session is one tenant's running gateway state: the protocol connection,
// the message scheduler, notes, flows and the event pump tying them to
// the broker.
type Session struct {
	log    *logger.Logger
	teamID string
	deps   SessionDeps

	conn      protocol.Conn
	scheduler *Scheduler
	notes     *Notes
	flows     *Flows

	tags      *memo.Cache[string, struct{}]
	mediaURLs *memo.Cache[string, string]
	mediaMu   *keyedmutex.KeyedMutex[string]

	composeMu *keyedmutex.KeyedMutex[string]

	unsubscribe func()
	done        chan struct{}
}

// NewSession dials the protocol, rebuilds the pending queue from the
// durable store and connects. The queue is rebuilt before the connection
// opens so messages that came due while the process was down fire as soon
// as the connection is armed.
func NewSession(ctx context.Context, teamID string, deps SessionDeps) (*Session, error) {
	account, err := deps.Store.GetAccount(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	conn, err := deps.Dialer.Dial(ctx, teamID, account)
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %w", err)
	}

	s := &Session{
		log:       logger.MustNamed("session"),
		teamID:    teamID,
		deps:      deps,
		conn:      conn,
		scheduler: NewScheduler(teamID, deps.Store, conn),
		notes:     NewNotes(teamID, deps.Store),
		flows:     NewFlows(teamID, deps.Store, deps.Blobs),
		tags:      memo.New[string, struct{}](tagTTL, 0),
		mediaURLs: memo.New[string, string](mediaURLTTL, mediaURLKeys),
		mediaMu:   keyedmutex.New[string](),
		composeMu: keyedmutex.New[string](),
		done:      make(chan struct{}),
	}
	if err := s.scheduler.LoadPending(ctx); err != nil {
		return nil, err
	}

	ch, unsubscribe := conn.Subscribe()
	s.unsubscribe = unsubscribe
	go s.pump(ch)

	if err := conn.Connect(ctx); err != nil {
		unsubscribe()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return s, nil
}

func (s *Session) TeamID() string { return s.teamID }

func (s *Session) Notes() *Notes { return s.notes }

func (s *Session) Flows() *Flows { return s.flows }

// Subscribe attaches a live listener to this tenant's event stream.
func (s *Session) Subscribe() (<-chan *models.EventEnvelope, func()) {
	return s.deps.Broker.Subscribe(s.teamID)
}

func (s *Session) pump(ch <-chan protocol.Event) {
	defer close(s.done)
	for ev := range ch {
		s.handleEvent(ev)
	}
}

func (s *Session) handleEvent(ev protocol.Event) {
	ctx := context.Background()
	switch ev.Name {
	case models.EventOpen:
		user, _ := ev.Data.(*models.User)
		s.onOpen(ctx, user)
	case models.EventClose:
		s.scheduler.DescheduleAll()
		s.deps.Broker.Publish(ctx, s.teamID, models.EventStateSync, s.State())
	case models.EventCredsUpdated:
		if creds, ok := ev.Data.([]byte); ok {
			s.saveCreds(ctx, creds)
		}
	case models.EventChatUpdate:
		upd, ok := ev.Data.(*models.ChatUpdate)
		if !ok {
			return
		}
		s.deps.Broker.Publish(ctx, s.teamID, models.EventChatUpdate, upd)
		for _, msg := range upd.Messages {
			if !msg.FromMe {
				s.deps.Broker.Publish(ctx, s.teamID, models.EventMessageNew, msg)
			}
		}
	default:
		s.deps.Broker.Publish(ctx, s.teamID, ev.Name, ev.Data)
	}
}

func (s *Session) onOpen(ctx context.Context, user *models.User) {
	account, err := s.deps.Store.GetAccount(ctx, s.teamID)
	if err != nil {
		s.log.Errorw("failed to load account on open", "team_id", s.teamID, "error", err)
	}
	if account == nil {
		account = &models.AccountInfo{ID: s.teamID}
	}
	lastConnect := account.LastConnect

	now := time.Now()
	account.LastConnect = &now
	account.AutoReconnect = true
	if user != nil {
		account.LastKnownUser = user
	}
	if err := s.deps.Store.SaveAccount(ctx, s.teamID, account); err != nil {
		s.log.Errorw("failed to save account on open", "team_id", s.teamID, "error", err)
	}

	s.scheduler.ArmAll()
	s.deps.Broker.Publish(ctx, s.teamID, models.EventOpen, user)
	s.deps.Broker.Publish(ctx, s.teamID, models.EventStateSync, s.State())

	if lastConnect != nil {
		s.replaySince(ctx, *lastConnect)
	}
}

// replaySince surfaces messages that arrived while no session was
// running, so consumers behind webhooks do not miss them.
func (s *Session) replaySince(ctx context.Context, since time.Time) {
	msgs, err := s.conn.MessagesSince(ctx, since)
	if err != nil {
		s.log.Errorw("failed to replay missed messages", "team_id", s.teamID, "error", err)
		return
	}
	if len(msgs) == 0 {
		return
	}
	s.deps.Broker.Publish(ctx, s.teamID, models.EventMessagesPostSleep, msgs)
}

func (s *Session) saveCreds(ctx context.Context, creds []byte) {
	account, err := s.deps.Store.GetAccount(ctx, s.teamID)
	if err != nil {
		s.log.Errorw("failed to load account for creds update", "team_id", s.teamID, "error", err)
		return
	}
	if account == nil {
		account = &models.AccountInfo{ID: s.teamID}
	}
	account.Creds = creds
	if err := s.deps.Store.SaveAccount(ctx, s.teamID, account); err != nil {
		s.log.Errorw("failed to save creds", "team_id", s.teamID, "error", err)
	}
}

// State assembles the state document broadcast on state-sync.
func (s *Session) State() *models.SessionState {
	st := &models.SessionState{
		Connection: s.conn.State(),
		CanLogin:   s.conn.CanLogin(),
		User:       s.conn.User(),
	}
	chats, _ := s.conn.Chats(1, "")
	st.Chats.HasSome = len(chats) > 0
	st.Chats.HasLatest = s.conn.HasLatestChats()
	return st
}

// Compose sends a message now or hands it to the scheduler. A tag that
// was already used within its validity window rejects the whole request
// before anything is sent or persisted.
func (s *Session) Compose(ctx context.Context, req *models.ComposeRequest) (*models.Message, error) {
	if req.MessageBody.Empty() {
		return nil, fmt.Errorf("message needs text or an attachment")
	}
	release, err := s.reserveTag(req.Tag)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		ID:       models.NewMessageID(),
		ChatID:   req.JID,
		FromMe:   true,
		Body:     req.MessageBody.Clone(),
		QuotedID: req.QuotedID,
		Tag:      req.Tag,
	}
	if req.ScheduleAt > 0 {
		msg.Scheduled = true
		msg.Status = models.StatusPending
		msg.Timestamp = req.ScheduleAt
		s.conn.EnsureChat(req.JID)
		err = s.scheduler.Relay(ctx, msg)
	} else {
		msg.Timestamp = models.UnixNow()
		s.conn.EnsureChat(req.JID)
		err = s.conn.Send(ctx, msg)
	}
	if err != nil {
		release()
		return nil, err
	}
	if msg.Scheduled {
		// scheduled messages never pass through the connection, so the
		// history update is published here; a snapshot keeps later
		// scheduler mutations away from subscribers
		snap := *msg
		s.deps.Broker.Publish(ctx, s.teamID, models.EventChatUpdate, &models.ChatUpdate{
			JID:      req.JID,
			Messages: []*models.Message{&snap},
		})
	}
	return msg, nil
}

// ComposeFlow resolves a stored flow against the recipient and sends the
// result like Compose.
func (s *Session) ComposeFlow(ctx context.Context, req *models.ComposeFlowRequest) (*models.Message, error) {
	contact, _ := s.conn.Contact(req.JID)
	body, err := s.flows.Resolve(ctx, req, contact)
	if err != nil {
		return nil, err
	}
	return s.Compose(ctx, &models.ComposeRequest{
		JID:         req.JID,
		MessageBody: *body,
		ScheduleAt:  req.ScheduleAt,
		QuotedID:    req.QuotedID,
		Tag:         req.Tag,
	})
}

// reserveTag claims an idempotency tag. The returned release puts the tag
// back when the send it guarded failed.
func (s *Session) reserveTag(tag string) (release func(), err error) {
	if tag == "" {
		return func() {}, nil
	}
	unlock := s.composeMu.Lock(tag)
	defer unlock()
	if s.tags.Has(tag) {
		return nil, models.ErrTagConflict
	}
	s.tags.Set(tag, struct{}{})
	return func() { s.tags.Delete(tag) }, nil
}

// Messages returns one page of the chat's merged history: delivered
// messages, pending scheduled messages and notes interleaved by the
// shared ordering key.
func (s *Session) Messages(ctx context.Context, req *models.MessagesRequest) ([]*models.Message, string, error) {
	count := req.Count
	if count == 0 {
		count = defaultPage
	}
	live, cursor, err := s.conn.Messages(ctx, req.JID, count, req.Before)
	if err != nil {
		return nil, "", err
	}

	// The merge window covers exactly this page: unbounded towards now on
	// the latest page, unbounded towards the past on the oldest.
	var before, till int64
	if req.Before != "" && len(live) > 0 {
		before = live[len(live)-1].Timestamp + 1
	}
	if cursor != "" && len(live) > 0 {
		till = live[0].Timestamp
	}

	var pending []*models.Message
	for _, msg := range s.scheduler.PendingFor(req.JID) {
		if before > 0 && msg.Timestamp >= before {
			continue
		}
		if till > 0 && msg.Timestamp < till {
			continue
		}
		pending = append(pending, msg)
	}

	notes, err := s.notes.Load(ctx, []models.NoteQuery{{ChatID: req.JID, Before: before, Till: till}})
	if err != nil {
		return nil, "", err
	}

	key := func(m *models.Message) int64 { return m.OrderKey() }
	merged := msgq.Merge(live, pending, key)
	merged = msgq.Merge(merged, notes[req.JID], key)
	return merged, cursor, nil
}

// DeleteMessage cancels a still-pending scheduled message, or revokes a
// delivered one. With forMe only the local copy is removed.
func (s *Session) DeleteMessage(ctx context.Context, chatID, messageID string, forMe bool) (*models.Message, error) {
	if msg, ok := s.scheduler.Get(messageID); ok && msg.ChatID == chatID {
		canceled, err := s.scheduler.CancelOne(ctx, messageID)
		if err != nil {
			return nil, err
		}
		revoked := *canceled
		revoked.Body = nil
		revoked.Stub = models.StubRevoke
		revoked.Scheduled = false
		s.deps.Broker.Publish(ctx, s.teamID, models.EventChatUpdate, &models.ChatUpdate{
			JID:      chatID,
			Messages: []*models.Message{&revoked},
		})
		return &revoked, nil
	}
	if forMe {
		if err := s.conn.ClearMessage(ctx, chatID, messageID); err != nil {
			return nil, err
		}
		return nil, nil
	}
	msg, err := s.conn.DeleteMessage(ctx, chatID, messageID)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// Reschedule moves a pending scheduled message to a new due time.
func (s *Session) Reschedule(ctx context.Context, req *models.RescheduleRequest) (*models.Message, error) {
	msg, err := s.scheduler.Reschedule(ctx, req.MessageID, req.ScheduleAt)
	if err != nil {
		return nil, err
	}
	s.deps.Broker.Publish(ctx, s.teamID, models.EventChatUpdate, &models.ChatUpdate{
		JID:      msg.ChatID,
		Messages: []*models.Message{msg},
	})
	return msg, nil
}

// DeleteChat removes the chat and withdraws its pending messages.
func (s *Session) DeleteChat(ctx context.Context, chatID string) error {
	if err := s.scheduler.CancelChat(ctx, chatID); err != nil {
		return err
	}
	return s.conn.DeleteChat(ctx, chatID)
}

// Chats pages through the chat list, most recent activity first.
func (s *Session) Chats(req *models.ChatListRequest) ([]*models.Chat, string) {
	count := req.Count
	if count == 0 {
		count = defaultPage
	}
	chats, cursor := s.conn.Chats(count, req.Before)
	if req.Archived == nil && req.Unread == nil {
		return chats, cursor
	}
	filtered := make([]*models.Chat, 0, len(chats))
	for _, chat := range chats {
		if req.Archived != nil && chat.Archived != *req.Archived {
			continue
		}
		if req.Unread != nil && (chat.UnreadCount > 0) != *req.Unread {
			continue
		}
		filtered = append(filtered, chat)
	}
	return filtered, cursor
}

// Chat returns one chat with its latest merged history page.
func (s *Session) Chat(ctx context.Context, chatID string) (*models.PreparedChat, error) {
	chat, ok := s.conn.Chat(chatID)
	if !ok {
		return nil, models.ErrNotFound
	}
	messages, _, err := s.Messages(ctx, &models.MessagesRequest{JID: chatID, Count: chatPreviewSz})
	if err != nil {
		return nil, err
	}
	return &models.PreparedChat{Chat: *chat, Messages: messages}, nil
}

func (s *Session) ModifyChat(ctx context.Context, req *models.ChatModifyRequest) error {
	return s.conn.ModifyChat(ctx, req.JID, req.Modification, req.DurationMs)
}

func (s *Session) MarkRead(ctx context.Context, chatID string, read bool) error {
	return s.conn.MarkRead(ctx, chatID, read)
}

// MediaURL downloads a message's media once, stores it content-addressed
// and returns the serving URL. Concurrent calls for the same message
// collapse into a single download.
func (s *Session) MediaURL(ctx context.Context, chatID, messageID string) (string, error) {
	key := chatID + "/" + messageID
	unlock := s.mediaMu.Lock(key)
	defer unlock()

	if url, ok := s.mediaURLs.Get(key); ok {
		return url, nil
	}
	content, err := s.conn.DownloadMedia(ctx, chatID, messageID)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(content)
	fileID := hex.EncodeToString(sum[:])

	exists, err := s.deps.Blobs.Exists(ctx, fileID)
	if err != nil {
		return "", err
	}
	if !exists {
		if err := s.deps.Blobs.Put(ctx, fileID, content); err != nil {
			return "", err
		}
	}
	url := s.deps.Blobs.URL(fileID)
	s.mediaURLs.Set(key, url)
	return url, nil
}

func (s *Session) ProfilePicture(ctx context.Context, jid string) (string, error) {
	key := "profile/" + jid
	if url, ok := s.mediaURLs.Get(key); ok {
		return url, nil
	}
	url, err := s.conn.ProfilePicture(ctx, jid)
	if err != nil {
		return "", err
	}
	if url != "" {
		s.mediaURLs.Set(key, url)
	}
	return url, nil
}

// CreateNote stores a note and broadcasts it like any other history
// change.
func (s *Session) CreateNote(ctx context.Context, req *models.NoteCreateRequest, author string) (*models.Message, error) {
	if _, ok := s.conn.Chat(req.JID); !ok {
		return nil, models.ErrNotFound
	}
	release, err := s.reserveTag(req.Tag)
	if err != nil {
		return nil, err
	}
	note, err := s.notes.Create(ctx, req, author)
	if err != nil {
		release()
		return nil, err
	}
	s.deps.Broker.Publish(ctx, s.teamID, models.EventChatUpdate, &models.ChatUpdate{
		JID:      req.JID,
		Messages: []*models.Message{note},
	})
	return note, nil
}

func (s *Session) EditNote(ctx context.Context, req *models.NoteEditRequest, author string) (*models.Message, error) {
	note, err := s.notes.Edit(ctx, req, author)
	if err != nil {
		return nil, err
	}
	s.deps.Broker.Publish(ctx, s.teamID, models.EventChatUpdate, &models.ChatUpdate{
		JID:      req.JID,
		Messages: []*models.Message{note},
	})
	return note, nil
}

// Logout clears the protocol credentials and stops reconnecting.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.conn.Logout(ctx); err != nil {
		return err
	}
	return s.disableReconnect(ctx)
}

// Disconnect closes the connection and stops reconnecting, keeping the
// credentials for a later login.
func (s *Session) Disconnect(ctx context.Context) error {
	s.scheduler.DescheduleAll()
	s.conn.End()
	return s.disableReconnect(ctx)
}

func (s *Session) disableReconnect(ctx context.Context) error {
	account, err := s.deps.Store.GetAccount(ctx, s.teamID)
	if err != nil || account == nil {
		return err
	}
	account.AutoReconnect = false
	return s.deps.Store.SaveAccount(ctx, s.teamID, account)
}

// Close tears the session down at process shutdown without touching the
// account record, so the session is revived on the next warm boot.
func (s *Session) Close() {
	s.scheduler.DescheduleAll()
	s.conn.End()
	s.unsubscribe()
	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
	}
}
