package usecase

import (
	"context"
	"fmt"

	"github.com/nguyentranbao-ct/chat-gateway/internal/models"
	"github.com/nguyentranbao-ct/chat-gateway/internal/store"
)

// Notes keeps per-chat annotations that look like messages but are never
// transmitted. Every content change is recorded in the note's edit log,
// newest first, capped at models.MaxNoteEdits.
type Notes struct {
	teamID string
	store  store.Store

	now func() int64
}

func NewNotes(teamID string, st store.Store) *Notes {
	return &Notes{
		teamID: teamID,
		store:  st,
		now:    models.UnixNow,
	}
}

func (n *Notes) Create(ctx context.Context, req *models.NoteCreateRequest, author string) (*models.Message, error) {
	now := n.now()
	note := &models.Message{
		ID:        models.NewMessageID(),
		ChatID:    req.JID,
		FromMe:    true,
		Timestamp: now,
		Status:    models.StatusRead,
		Body:      &models.MessageBody{Text: req.Text},
		Tag:       req.Tag,
		Note: &models.NoteInfo{
			Edits: []models.NoteEdit{{Author: author, Timestamp: now}},
		},
	}
	if err := n.store.SetNote(ctx, n.teamID, req.JID, note.ID, note); err != nil {
		return nil, fmt.Errorf("failed to save note: %w", err)
	}
	return note, nil
}

// Edit rewrites a note's text or revokes it. A delete is an edit too:
// content goes away, the revoked marker is set and the edit log stays.
// Edits keep the original timestamp so the note stays where it was in
// the history.
func (n *Notes) Edit(ctx context.Context, req *models.NoteEditRequest, author string) (*models.Message, error) {
	note, err := n.store.GetNote(ctx, n.teamID, req.JID, req.NoteID)
	if err != nil {
		return nil, err
	}

	if req.Delete {
		note.Body = nil
		note.Stub = models.StubRevoke
	} else {
		note.Body = &models.MessageBody{Text: req.Text}
		note.Stub = models.StubNone
	}

	if note.Note == nil {
		note.Note = &models.NoteInfo{}
	}
	edits := append([]models.NoteEdit{{Author: author, Timestamp: n.now()}}, note.Note.Edits...)
	if len(edits) > models.MaxNoteEdits {
		edits = edits[:models.MaxNoteEdits]
	}
	note.Note.Edits = edits

	if err := n.store.SetNote(ctx, n.teamID, req.JID, req.NoteID, note); err != nil {
		return nil, fmt.Errorf("failed to save note: %w", err)
	}
	return note, nil
}

func (n *Notes) Get(ctx context.Context, chatID, noteID string) (*models.Message, error) {
	return n.store.GetNote(ctx, n.teamID, chatID, noteID)
}

// Load returns the notes of each chat bounded by its query window.
func (n *Notes) Load(ctx context.Context, queries []models.NoteQuery) (map[string][]*models.Message, error) {
	return n.store.LoadNotes(ctx, n.teamID, queries)
}
