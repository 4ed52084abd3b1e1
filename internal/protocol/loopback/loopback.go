// Package loopback is an in-memory protocol driver. It satisfies the
// protocol contract without any wire traffic: sends are acknowledged
// locally and history lives in process memory. It backs local development
// and tests; production deployments plug a real driver into the same
// contract.
package loopback

import (
	"context"
	"sync"
	"time"

	"github.com/nguyentranbao-ct/chat-gateway/internal/models"
	"github.com/nguyentranbao-ct/chat-gateway/internal/protocol"
	"github.com/nguyentranbao-ct/chat-gateway/pkg/msgq"
)

type Dialer struct{}

func NewDialer() *Dialer {
	return &Dialer{}
}

func (d *Dialer) Dial(_ context.Context, teamID string, account *models.AccountInfo) (protocol.Conn, error) {
	conn := &Conn{
		teamID:   teamID,
		state:    models.StateClosed,
		chats:    make(map[string]*chatRecord),
		contacts: make(map[string]*models.Contact),
	}
	if account != nil {
		conn.user = account.LastKnownUser
		conn.canLogin = len(account.Creds) > 0
	}
	return conn, nil
}

type chatRecord struct {
	chat     *models.Chat
	messages *msgq.Set[*models.Message]
}

// Conn is a single-tenant in-memory connection.
type Conn struct {
	teamID string

	mu       sync.Mutex
	state    models.ConnState
	user     *models.User
	canLogin bool
	chats    map[string]*chatRecord
	contacts map[string]*models.Contact
	subs     []chan protocol.Event

	// SendErr, when set, makes every Send fail with that error. Tests use
	// it to exercise delivery-failure paths.
	SendErr error
}

var _ protocol.Conn = (*Conn)(nil)

func (c *Conn) State() models.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == models.StateOpen {
		c.mu.Unlock()
		return nil
	}
	c.state = models.StateConnecting
	c.mu.Unlock()

	c.mu.Lock()
	c.state = models.StateOpen
	if c.user == nil {
		c.user = &models.User{JID: c.teamID + "@s.whatsapp.net"}
	}
	user := c.user
	c.mu.Unlock()

	c.emit(protocol.Event{Name: models.EventOpen, Data: user})
	return nil
}

func (c *Conn) End() {
	c.close("end")
}

func (c *Conn) Logout(ctx context.Context) error {
	c.mu.Lock()
	c.canLogin = false
	c.user = nil
	c.mu.Unlock()
	c.close("logout")
	return nil
}

func (c *Conn) close(reason string) {
	c.mu.Lock()
	if c.state == models.StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = models.StateClosed
	c.mu.Unlock()

	c.emit(protocol.Event{Name: models.EventClose, Data: reason})
}

func (c *Conn) Subscribe() (<-chan protocol.Event, func()) {
	ch := make(chan protocol.Event, 64)
	c.mu.Lock()
	c.subs = append(c.subs, ch)
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subs {
			if s == ch {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

func (c *Conn) emit(ev protocol.Event) {
	c.mu.Lock()
	subs := make([]chan protocol.Event, len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default: // drop for slow subscribers
		}
	}
}

func (c *Conn) Send(ctx context.Context, msg *models.Message) error {
	c.mu.Lock()
	if c.SendErr != nil {
		err := c.SendErr
		c.mu.Unlock()
		return err
	}
	if c.state != models.StateOpen {
		c.mu.Unlock()
		return protocol.NewError(428, "connection not open")
	}
	rec := c.ensureChatLocked(msg.ChatID)
	msg.Status = models.StatusServerAck
	rec.messages.Insert(msg)
	if msg.Timestamp > rec.chat.Timestamp {
		rec.chat.Timestamp = msg.Timestamp
	}
	c.mu.Unlock()

	c.emit(protocol.Event{Name: models.EventChatUpdate, Data: &models.ChatUpdate{
		JID:      msg.ChatID,
		Messages: []*models.Message{msg},
	}})
	return nil
}

func (c *Conn) DeleteMessage(ctx context.Context, chatID, messageID string) (*models.Message, error) {
	c.mu.Lock()
	rec, ok := c.chats[chatID]
	if !ok {
		c.mu.Unlock()
		return nil, models.ErrNotFound
	}
	msg, ok := rec.messages.Get(messageID)
	if !ok {
		c.mu.Unlock()
		return nil, models.ErrNotFound
	}
	msg.Body = nil
	msg.Stub = models.StubRevoke
	c.mu.Unlock()

	c.emit(protocol.Event{Name: models.EventChatUpdate, Data: &models.ChatUpdate{
		JID:      chatID,
		Messages: []*models.Message{msg},
	}})
	return msg, nil
}

func (c *Conn) ClearMessage(ctx context.Context, chatID, messageID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.chats[chatID]
	if !ok {
		return models.ErrNotFound
	}
	if !rec.messages.Delete(messageID) {
		return models.ErrNotFound
	}
	return nil
}

func (c *Conn) DeleteChat(ctx context.Context, chatID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.chats[chatID]; !ok {
		return models.ErrNotFound
	}
	delete(c.chats, chatID)
	return nil
}

func (c *Conn) Chat(chatID string) (*models.Chat, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.chats[chatID]
	if !ok {
		return nil, false
	}
	return rec.chat, true
}

func (c *Conn) Chats(count int, before string) ([]*models.Chat, string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	all := make([]*models.Chat, 0, len(c.chats))
	for _, rec := range c.chats {
		all = append(all, rec.chat)
	}
	// most recent activity first
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			if all[j].Timestamp > all[i].Timestamp {
				all[i], all[j] = all[j], all[i]
			}
		}
	}
	start := 0
	if before != "" {
		for i, chat := range all {
			if chat.JID == before {
				start = i + 1
				break
			}
		}
	}
	if start >= len(all) {
		return nil, ""
	}
	end := start + count
	if count <= 0 || end > len(all) {
		end = len(all)
	}
	page := all[start:end]
	cursor := ""
	if end < len(all) && len(page) > 0 {
		cursor = page[len(page)-1].JID
	}
	return page, cursor
}

func (c *Conn) EnsureChat(chatID string) *models.Chat {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureChatLocked(chatID).chat
}

func (c *Conn) ensureChatLocked(chatID string) *chatRecord {
	rec, ok := c.chats[chatID]
	if !ok {
		rec = &chatRecord{
			chat: &models.Chat{JID: chatID, Timestamp: time.Now().Unix()},
			messages: msgq.NewSet(
				func(m *models.Message) int64 { return m.OrderKey() },
				func(m *models.Message) string { return m.ID },
			),
		}
		c.chats[chatID] = rec
	}
	return rec
}

func (c *Conn) ModifyChat(ctx context.Context, chatID string, mod models.ChatModification, durationMs int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.chats[chatID]
	if !ok {
		return models.ErrNotFound
	}
	switch mod {
	case models.ModArchive:
		rec.chat.Archived = true
	case models.ModUnarchive:
		rec.chat.Archived = false
	case models.ModPin:
		rec.chat.Pinned = true
	case models.ModUnpin:
		rec.chat.Pinned = false
	case models.ModMute:
		rec.chat.MutedUntil = time.Now().UnixMilli() + durationMs
	case models.ModUnmute:
		rec.chat.MutedUntil = 0
	}
	return nil
}

func (c *Conn) MarkRead(ctx context.Context, chatID string, read bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.chats[chatID]
	if !ok {
		return models.ErrNotFound
	}
	if read {
		rec.chat.UnreadCount = 0
	} else {
		rec.chat.UnreadCount = 1
	}
	return nil
}

func (c *Conn) Messages(ctx context.Context, chatID string, count int, before string) ([]*models.Message, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.chats[chatID]
	if !ok {
		return nil, "", nil
	}
	all := rec.messages.All()
	end := len(all)
	if before != "" {
		for i, m := range all {
			if m.ID == before {
				end = i
				break
			}
		}
	}
	start := end - count
	if count <= 0 || start < 0 {
		start = 0
	}
	page := all[start:end]
	cursor := ""
	if start > 0 && len(page) > 0 {
		cursor = page[0].ID
	}
	return page, cursor, nil
}

func (c *Conn) MessagesSince(ctx context.Context, t time.Time) ([]*models.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*models.Message
	cutoff := t.Unix()
	for _, rec := range c.chats {
		for _, m := range rec.messages.All() {
			if !m.FromMe && m.Timestamp > cutoff {
				out = append(out, m)
			}
		}
	}
	return out, nil
}

func (c *Conn) Contact(jid string) (*models.Contact, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ct, ok := c.contacts[jid]
	return ct, ok
}

// SetContact seeds the contact directory; the loopback driver has no
// remote sync to populate it.
func (c *Conn) SetContact(ct *models.Contact) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contacts[ct.JID] = ct
}

func (c *Conn) ProfilePicture(ctx context.Context, jid string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ct, ok := c.contacts[jid]; ok {
		return ct.ImgURL, nil
	}
	return "", nil
}

func (c *Conn) DownloadMedia(ctx context.Context, chatID, messageID string) ([]byte, error) {
	return nil, protocol.NewError(404, "no media for %s", messageID)
}

func (c *Conn) User() *models.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

func (c *Conn) CanLogin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canLogin
}

func (c *Conn) HasLatestChats() bool {
	return c.State() == models.StateOpen
}
