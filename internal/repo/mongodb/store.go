package mongodb

import (
	"context"

	"github.com/nguyentranbao-ct/chat-gateway/internal/models"
	"github.com/nguyentranbao-ct/chat-gateway/internal/store"
	"github.com/nguyentranbao-ct/chat-gateway/pkg/crypto"
)

// Store composes the collection repos into the persistence contract.
type Store struct {
	accounts *AccountRepo
	pending  *PendingMessageRepo
	notes    *NoteRepo
	flows    *FlowRepo
	settings *TeamSettingsRepo
}

var _ store.Store = (*Store)(nil)

func NewStore(db *DB, creds crypto.Codec) *Store {
	return &Store{
		accounts: NewAccountRepo(db, creds),
		pending:  NewPendingMessageRepo(db),
		notes:    NewNoteRepo(db),
		flows:    NewFlowRepo(db),
		settings: NewTeamSettingsRepo(db),
	}
}

func (s *Store) GetAccount(ctx context.Context, teamID string) (*models.AccountInfo, error) {
	return s.accounts.Get(ctx, teamID)
}

func (s *Store) SaveAccount(ctx context.Context, teamID string, info *models.AccountInfo) error {
	return s.accounts.Save(ctx, teamID, info)
}

func (s *Store) ListAutoReconnect(ctx context.Context) ([]*models.AccountInfo, error) {
	return s.accounts.ListAutoReconnect(ctx)
}

func (s *Store) LoadPendingMessages(ctx context.Context, teamID string) ([]*models.Message, error) {
	return s.pending.Load(ctx, teamID)
}

func (s *Store) SavePendingMessage(ctx context.Context, teamID, messageID string, msg *models.Message) error {
	return s.pending.Save(ctx, teamID, messageID, msg)
}

func (s *Store) LoadNotes(ctx context.Context, teamID string, queries []models.NoteQuery) (map[string][]*models.Message, error) {
	return s.notes.Load(ctx, teamID, queries)
}

func (s *Store) GetNote(ctx context.Context, teamID, chatID, noteID string) (*models.Message, error) {
	return s.notes.Get(ctx, teamID, chatID, noteID)
}

func (s *Store) SetNote(ctx context.Context, teamID, chatID, noteID string, note *models.Message) error {
	return s.notes.Set(ctx, teamID, chatID, noteID, note)
}

func (s *Store) GetFlow(ctx context.Context, teamID, flowID string) (*models.MessageFlow, error) {
	return s.flows.Get(ctx, teamID, flowID)
}

func (s *Store) SetFlow(ctx context.Context, teamID, flowID string, flow *models.MessageFlow) error {
	return s.flows.Set(ctx, teamID, flowID, flow)
}

func (s *Store) ListFlows(ctx context.Context, teamID string, count int, cursor, search string) (*models.FlowPage, error) {
	return s.flows.List(ctx, teamID, count, cursor, search)
}

func (s *Store) Webhooks(ctx context.Context, teamID, event string) ([]string, error) {
	return s.settings.Webhooks(ctx, teamID, event)
}

func (s *Store) AuthToken(ctx context.Context, teamID string) (string, error) {
	return s.settings.AuthToken(ctx, teamID)
}
