package models

// MaxNoteEdits caps the edit log of a note; older entries are discarded.
const MaxNoteEdits = 20

// NoteInfo marks a message as a note: content kept in the tenant's history
// but never transmitted to the remote party.
type NoteInfo struct {
	// Edits is the append-only audit log, most recent first.
	Edits []NoteEdit `json:"edits" bson:"edits"`
}

type NoteEdit struct {
	Author    string `json:"author" bson:"author"`
	Timestamp int64  `json:"timestamp" bson:"timestamp"`
}

// NoteQuery bounds a notes lookup to the window of the history page being
// merged, so notes interleave with exactly the messages on that page.
type NoteQuery struct {
	ChatID string
	Before int64 // exclusive upper bound, 0 = unbounded
	Till   int64 // inclusive lower bound, 0 = unbounded
}
