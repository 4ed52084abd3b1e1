package usecase

import (
	"context"
	"fmt"
	"testing"

	"github.com/nguyentranbao-ct/chat-gateway/internal/models"
	"github.com/nguyentranbao-ct/chat-gateway/internal/repo/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotesCreate(t *testing.T) {
	ctx := context.Background()
	n := NewNotes("team-1", memstore.New())
	n.now = func() int64 { return 1000 }

	note, err := n.Create(ctx, &models.NoteCreateRequest{JID: "a@b", Text: "call back tomorrow"}, "agent-7")
	require.NoError(t, err)

	assert.NotEmpty(t, note.ID)
	assert.Equal(t, "a@b", note.ChatID)
	assert.Equal(t, "call back tomorrow", note.Body.Text)
	assert.EqualValues(t, 1000, note.Timestamp)
	require.NotNil(t, note.Note)
	require.Len(t, note.Note.Edits, 1)
	assert.Equal(t, "agent-7", note.Note.Edits[0].Author)

	got, err := n.Get(ctx, "a@b", note.ID)
	require.NoError(t, err)
	assert.Equal(t, note.ID, got.ID)
}

func TestNotesEditPrependsAuditEntry(t *testing.T) {
	ctx := context.Background()
	n := NewNotes("team-1", memstore.New())

	clock := int64(1000)
	n.now = func() int64 { clock++; return clock }

	note, err := n.Create(ctx, &models.NoteCreateRequest{JID: "a@b", Text: "v1"}, "alice")
	require.NoError(t, err)
	created := note.Timestamp

	got, err := n.Edit(ctx, &models.NoteEditRequest{JID: "a@b", NoteID: note.ID, Text: "v2"}, "bob")
	require.NoError(t, err)

	assert.Equal(t, "v2", got.Body.Text)
	assert.Equal(t, created, got.Timestamp)
	require.Len(t, got.Note.Edits, 2)
	assert.Equal(t, "bob", got.Note.Edits[0].Author)
	assert.Equal(t, "alice", got.Note.Edits[1].Author)
	assert.Greater(t, got.Note.Edits[0].Timestamp, got.Note.Edits[1].Timestamp)
}

func TestNotesEditLogCapped(t *testing.T) {
	ctx := context.Background()
	n := NewNotes("team-1", memstore.New())

	clock := int64(1000)
	n.now = func() int64 { clock++; return clock }

	note, err := n.Create(ctx, &models.NoteCreateRequest{JID: "a@b", Text: "v0"}, "author-0")
	require.NoError(t, err)

	for i := 1; i <= 25; i++ {
		_, err := n.Edit(ctx, &models.NoteEditRequest{
			JID:    "a@b",
			NoteID: note.ID,
			Text:   fmt.Sprintf("v%d", i),
		}, fmt.Sprintf("author-%d", i))
		require.NoError(t, err)
	}

	got, err := n.Get(ctx, "a@b", note.ID)
	require.NoError(t, err)
	assert.Equal(t, "v25", got.Body.Text)
	require.Len(t, got.Note.Edits, models.MaxNoteEdits)
	assert.Equal(t, "author-25", got.Note.Edits[0].Author)
	assert.Equal(t, "author-6", got.Note.Edits[models.MaxNoteEdits-1].Author)
}

func TestNotesDelete(t *testing.T) {
	ctx := context.Background()
	n := NewNotes("team-1", memstore.New())

	note, err := n.Create(ctx, &models.NoteCreateRequest{JID: "a@b", Text: "gone soon"}, "alice")
	require.NoError(t, err)

	_, err = n.Edit(ctx, &models.NoteEditRequest{JID: "a@b", NoteID: note.ID, Delete: true}, "alice")
	require.NoError(t, err)

	// the note stays, revoked, with its edit log intact
	got, err := n.Get(ctx, "a@b", note.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Body)
	assert.Equal(t, models.StubRevoke, got.Stub)
	assert.Len(t, got.Note.Edits, 2)

	// a later text edit clears the revoked marker
	got, err = n.Edit(ctx, &models.NoteEditRequest{JID: "a@b", NoteID: note.ID, Text: "back"}, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.StubNone, got.Stub)
	assert.Equal(t, "back", got.Body.Text)
}

func TestNotesEditMissing(t *testing.T) {
	ctx := context.Background()
	n := NewNotes("team-1", memstore.New())

	_, err := n.Edit(ctx, &models.NoteEditRequest{JID: "a@b", NoteID: "nope", Text: "x"}, "alice")
	assert.True(t, models.IsNotFound(err))
}

func TestNotesLoadWindow(t *testing.T) {
	ctx := context.Background()
	n := NewNotes("team-1", memstore.New())

	clock := int64(100)
	n.now = func() int64 { clock += 100; return clock }

	var ids []string
	for i := 0; i < 3; i++ { // timestamps 200, 300, 400
		note, err := n.Create(ctx, &models.NoteCreateRequest{JID: "a@b", Text: "n"}, "alice")
		require.NoError(t, err)
		ids = append(ids, note.ID)
	}

	notes, err := n.Load(ctx, []models.NoteQuery{{ChatID: "a@b", Before: 400, Till: 300}})
	require.NoError(t, err)
	require.Len(t, notes["a@b"], 1)
	assert.Equal(t, ids[1], notes["a@b"][0].ID)
}
