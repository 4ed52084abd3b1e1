// Package memstore is a process-local Store used by the memory storage
// driver and by tests. Nothing survives a restart.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/nguyentranbao-ct/chat-gateway/internal/models"
	"github.com/nguyentranbao-ct/chat-gateway/internal/store"
)

type teamData struct {
	account  *models.AccountInfo
	pending  map[string]*models.Message
	notes    map[string]map[string]*models.Message // chatID -> noteID -> note
	flows    map[string]*models.MessageFlow
	webhooks map[string][]string // event -> urls
	token    string
}

type Store struct {
	mu    sync.RWMutex
	teams map[string]*teamData
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{teams: make(map[string]*teamData)}
}

func (s *Store) team(teamID string) *teamData {
	td, ok := s.teams[teamID]
	if !ok {
		td = &teamData{
			pending:  make(map[string]*models.Message),
			notes:    make(map[string]map[string]*models.Message),
			flows:    make(map[string]*models.MessageFlow),
			webhooks: make(map[string][]string),
		}
		s.teams[teamID] = td
	}
	return td
}

func (s *Store) GetAccount(_ context.Context, teamID string) (*models.AccountInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	td, ok := s.teams[teamID]
	if !ok || td.account == nil {
		return nil, nil
	}
	return td.account, nil
}

func (s *Store) SaveAccount(_ context.Context, teamID string, info *models.AccountInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.team(teamID).account = info
	return nil
}

func (s *Store) ListAutoReconnect(_ context.Context) ([]*models.AccountInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.AccountInfo
	for _, td := range s.teams {
		if td.account != nil && td.account.AutoReconnect {
			out = append(out, td.account)
		}
	}
	return out, nil
}

func (s *Store) LoadPendingMessages(_ context.Context, teamID string) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	td, ok := s.teams[teamID]
	if !ok {
		return nil, nil
	}
	out := make([]*models.Message, 0, len(td.pending))
	for _, m := range td.pending {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderKey() < out[j].OrderKey() })
	return out, nil
}

func (s *Store) SavePendingMessage(_ context.Context, teamID, messageID string, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	td := s.team(teamID)
	if msg == nil {
		delete(td.pending, messageID)
		return nil
	}
	td.pending[messageID] = msg
	return nil
}

func (s *Store) LoadNotes(_ context.Context, teamID string, queries []models.NoteQuery) (map[string][]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]*models.Message)
	td, ok := s.teams[teamID]
	if !ok {
		return out, nil
	}
	for _, q := range queries {
		chatNotes, ok := td.notes[q.ChatID]
		if !ok {
			continue
		}
		var notes []*models.Message
		for _, n := range chatNotes {
			if q.Before > 0 && n.Timestamp >= q.Before {
				continue
			}
			if q.Till > 0 && n.Timestamp < q.Till {
				continue
			}
			notes = append(notes, n)
		}
		sort.Slice(notes, func(i, j int) bool { return notes[i].OrderKey() < notes[j].OrderKey() })
		if len(notes) > 0 {
			out[q.ChatID] = notes
		}
	}
	return out, nil
}

func (s *Store) GetNote(_ context.Context, teamID, chatID, noteID string) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	td, ok := s.teams[teamID]
	if !ok {
		return nil, models.ErrNotFound
	}
	n, ok := td.notes[chatID][noteID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return n, nil
}

func (s *Store) SetNote(_ context.Context, teamID, chatID, noteID string, note *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	td := s.team(teamID)
	if note == nil {
		delete(td.notes[chatID], noteID)
		return nil
	}
	if td.notes[chatID] == nil {
		td.notes[chatID] = make(map[string]*models.Message)
	}
	td.notes[chatID][noteID] = note
	return nil
}

func (s *Store) GetFlow(_ context.Context, teamID, flowID string) (*models.MessageFlow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	td, ok := s.teams[teamID]
	if !ok {
		return nil, models.ErrNotFound
	}
	f, ok := td.flows[flowID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return f, nil
}

func (s *Store) SetFlow(_ context.Context, teamID, flowID string, flow *models.MessageFlow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	td := s.team(teamID)
	if flow == nil {
		delete(td.flows, flowID)
		return nil
	}
	td.flows[flowID] = flow
	return nil
}

func (s *Store) ListFlows(_ context.Context, teamID string, count int, cursor, search string) (*models.FlowPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	page := &models.FlowPage{Flows: []*models.MessageFlow{}}
	td, ok := s.teams[teamID]
	if !ok {
		return page, nil
	}
	all := make([]*models.MessageFlow, 0, len(td.flows))
	for _, f := range td.flows {
		if search != "" && !strings.Contains(strings.ToLower(f.Name), strings.ToLower(search)) {
			continue
		}
		all = append(all, f)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Name != all[j].Name {
			return all[i].Name < all[j].Name
		}
		return all[i].ID < all[j].ID
	})
	start := 0
	if cursor != "" {
		for i, f := range all {
			if f.ID == cursor {
				start = i + 1
				break
			}
		}
	}
	end := len(all)
	if count > 0 && start+count < end {
		end = start + count
	}
	if start >= len(all) {
		return page, nil
	}
	page.Flows = all[start:end]
	if end < len(all) {
		page.Cursor = all[end-1].ID
	}
	return page, nil
}

func (s *Store) Webhooks(_ context.Context, teamID, event string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	td, ok := s.teams[teamID]
	if !ok {
		return nil, nil
	}
	return td.webhooks[event], nil
}

// SetWebhooks registers the endpoints for an event; used by the memory
// driver's seed config and by tests.
func (s *Store) SetWebhooks(teamID, event string, urls []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.team(teamID).webhooks[event] = urls
}

func (s *Store) AuthToken(_ context.Context, teamID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	td, ok := s.teams[teamID]
	if !ok {
		return "", nil
	}
	return td.token, nil
}

func (s *Store) SetAuthToken(teamID, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.team(teamID).token = token
}
