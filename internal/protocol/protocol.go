// Package protocol declares the contract of the underlying messaging
// connection. The gateway never implements handshake, encryption or wire
// framing; it consumes connection-state transitions, the chat collection
// and the send/delete primitives declared here.
package protocol

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nguyentranbao-ct/chat-gateway/internal/models"
)

// Event is one connection-level notification. Data depends on the name:
// open carries *models.User, close carries a reason string, chat-update
// carries *models.ChatUpdate.
type Event struct {
	Name string
	Data any
}

// Conn is one tenant's live protocol session.
type Conn interface {
	State() models.ConnState
	Connect(ctx context.Context) error
	// End tears the connection down without clearing credentials.
	End()
	Logout(ctx context.Context) error

	// Subscribe returns a stream of connection events and a cancel func.
	// Delivery to a subscriber is best-effort at-most-once.
	Subscribe() (<-chan Event, func())

	// Send delivers a message to the remote party. Failures originating in
	// the protocol layer are reported as *Error.
	Send(ctx context.Context, msg *models.Message) error
	DeleteMessage(ctx context.Context, chatID, messageID string) (*models.Message, error)
	// ClearMessage removes the local copy only ("delete for me").
	ClearMessage(ctx context.Context, chatID, messageID string) error
	DeleteChat(ctx context.Context, chatID string) error

	Chat(chatID string) (*models.Chat, bool)
	Chats(count int, before string) ([]*models.Chat, string)
	// EnsureChat creates the chat lazily on first reference.
	EnsureChat(chatID string) *models.Chat
	ModifyChat(ctx context.Context, chatID string, mod models.ChatModification, durationMs int64) error
	MarkRead(ctx context.Context, chatID string, read bool) error

	// Messages pages the live (delivered) history of a chat, newest page
	// first, ordered ascending within the page.
	Messages(ctx context.Context, chatID string, count int, before string) ([]*models.Message, string, error)
	// MessagesSince returns messages received after t, for post-sleep replay.
	MessagesSince(ctx context.Context, t time.Time) ([]*models.Message, error)

	Contact(jid string) (*models.Contact, bool)
	ProfilePicture(ctx context.Context, jid string) (string, error)
	DownloadMedia(ctx context.Context, chatID, messageID string) ([]byte, error)

	User() *models.User
	CanLogin() bool
	HasLatestChats() bool
}

// Dialer constructs a Conn for a tenant from its stored account.
type Dialer interface {
	Dial(ctx context.Context, teamID string, account *models.AccountInfo) (Conn, error)
}

// Error is a protocol-layer failure with a transport-style status code.
// Scheduled sends failing with *Error are kept for inspection instead of
// being dropped or retried.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("protocol: %s (status %d)", e.Message, e.Status)
}

func NewError(status int, format string, args ...any) *Error {
	return &Error{Status: status, Message: fmt.Sprintf(format, args...)}
}

// IsProtocolError reports whether err is a protocol-layer failure.
func IsProtocolError(err error) bool {
	var pe *Error
	return errors.As(err, &pe)
}
