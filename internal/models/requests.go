package models

// ComposeRequest composes a message for immediate or scheduled delivery.
// Exactly zero or one media kind may be set; text-only is the default.
type ComposeRequest struct {
	JID string `json:"jid" param:"jid" validate:"required,max=50"`

	MessageBody

	// ScheduleAt is a unix timestamp in seconds; when set the message is
	// held back by the scheduler instead of being sent immediately.
	ScheduleAt int64  `json:"schedule_at,omitempty" validate:"omitempty,gt=0"`
	QuotedID   string `json:"quoted_id,omitempty"`
	// Tag is a caller-supplied idempotency key; reuse within its validity
	// window is rejected with a conflict.
	Tag string `json:"tag,omitempty" validate:"omitempty,max=64"`
}

// ComposeFlowRequest composes a message from a stored flow.
type ComposeFlowRequest struct {
	JID    string `json:"jid" param:"jid" validate:"required,max=50"`
	FlowID string `json:"flow_id" param:"flow" validate:"required"`

	Parameters map[string]string `json:"parameters,omitempty"`
	Randomize  bool              `json:"randomize,omitempty"`

	ScheduleAt int64  `json:"schedule_at,omitempty" validate:"omitempty,gt=0"`
	QuotedID   string `json:"quoted_id,omitempty"`
	Tag        string `json:"tag,omitempty" validate:"omitempty,max=64"`
}

// RescheduleRequest moves a pending scheduled message to a new due time.
type RescheduleRequest struct {
	JID        string `json:"jid" param:"jid" validate:"required"`
	MessageID  string `json:"message_id" param:"messageID" validate:"required"`
	ScheduleAt int64  `json:"schedule_at" validate:"required,gt=0"`
}

// NoteCreateRequest creates a note attached to an existing chat.
type NoteCreateRequest struct {
	JID  string `json:"jid" param:"jid" validate:"required"`
	Text string `json:"text" validate:"required,max=4096"`
	Tag  string `json:"tag,omitempty" validate:"omitempty,max=64"`
}

// NoteEditRequest edits or deletes a note's content. Exactly one of Text
// or Delete must be supplied.
type NoteEditRequest struct {
	JID    string `json:"jid" param:"jid" validate:"required"`
	NoteID string `json:"note_id" param:"noteId" validate:"required"`
	Text   string `json:"text,omitempty" validate:"omitempty,max=4096"`
	Delete bool   `json:"delete,omitempty"`
}

// FlowCreateRequest creates a message flow. A flow needs a name and at
// least one content field (text or exactly one media attachment).
type FlowCreateRequest struct {
	Name string `json:"name" validate:"required,max=128"`
	MessageBody
}

// FlowEditRequest edits an existing flow; empty fields keep their value.
type FlowEditRequest struct {
	ID   string `json:"id" param:"id" validate:"required"`
	Name string `json:"name,omitempty" validate:"omitempty,max=128"`
	MessageBody
}

// FlowListRequest pages through stored flows ordered by name.
type FlowListRequest struct {
	Count  int    `query:"count" validate:"omitempty,min=1,max=500"`
	Cursor string `query:"cursor"`
	Search string `query:"search" validate:"omitempty,max=64"`
}

// MessagesRequest pages through a chat's merged history.
type MessagesRequest struct {
	JID    string `param:"jid" validate:"required"`
	Count  int    `query:"count" validate:"omitempty,min=1,max=100"`
	Before string `query:"before"`
}

// ChatListRequest pages through chats, most recent activity first.
type ChatListRequest struct {
	Count    int    `query:"count" validate:"omitempty,min=1,max=1000"`
	Before   string `query:"before"`
	Archived *bool  `query:"archived"`
	Unread   *bool  `query:"unread"`
}

// ChatModifyRequest flips a chat-level flag.
type ChatModifyRequest struct {
	JID          string           `param:"jid" validate:"required"`
	Modification ChatModification `json:"modification" validate:"required,oneof=archive unarchive pin unpin mute unmute"`
	DurationMs   int64            `json:"duration_ms,omitempty" validate:"omitempty,gt=0"`
}
