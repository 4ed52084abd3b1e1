// Package store declares the persistence contract the gateway core depends
// on. The durable store is the source of truth for pending scheduled
// messages across restarts; in-memory queues are rebuilt from it.
package store

import (
	"context"

	"github.com/nguyentranbao-ct/chat-gateway/internal/models"
)

type Store interface {
	// GetAccount returns nil, nil when no account is stored for the team.
	GetAccount(ctx context.Context, teamID string) (*models.AccountInfo, error)
	SaveAccount(ctx context.Context, teamID string, info *models.AccountInfo) error
	// ListAutoReconnect returns every account flagged for reconnect at boot.
	ListAutoReconnect(ctx context.Context) ([]*models.AccountInfo, error)

	LoadPendingMessages(ctx context.Context, teamID string) ([]*models.Message, error)
	// SavePendingMessage upserts the durable record of a pending scheduled
	// message; a nil message deletes the record.
	SavePendingMessage(ctx context.Context, teamID, messageID string, msg *models.Message) error

	// LoadNotes returns notes per chat bounded by each query's window.
	LoadNotes(ctx context.Context, teamID string, queries []models.NoteQuery) (map[string][]*models.Message, error)
	GetNote(ctx context.Context, teamID, chatID, noteID string) (*models.Message, error)
	// SetNote upserts a note; a nil note deletes it.
	SetNote(ctx context.Context, teamID, chatID, noteID string, note *models.Message) error

	GetFlow(ctx context.Context, teamID, flowID string) (*models.MessageFlow, error)
	// SetFlow upserts a flow; a nil flow deletes it.
	SetFlow(ctx context.Context, teamID, flowID string, flow *models.MessageFlow) error
	ListFlows(ctx context.Context, teamID string, count int, cursor, search string) (*models.FlowPage, error)

	// Webhooks returns the endpoint URLs registered for the event.
	Webhooks(ctx context.Context, teamID, event string) ([]string, error)
	// AuthToken returns the bearer token sent along with webhook calls.
	AuthToken(ctx context.Context, teamID string) (string, error)
}

// BlobStore holds media content addressed by content hash.
type BlobStore interface {
	Exists(ctx context.Context, fileID string) (bool, error)
	Put(ctx context.Context, fileID string, content []byte) error
	// URL returns the public URL serving the blob.
	URL(fileID string) string
}
