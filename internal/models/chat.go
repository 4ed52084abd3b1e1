package models

// Chat is a conversation thread with one remote party or group.
type Chat struct {
	JID         string `json:"jid" bson:"jid"`
	Name        string `json:"name,omitempty" bson:"name,omitempty"`
	Timestamp   int64  `json:"timestamp" bson:"timestamp"` // last activity, unix seconds
	UnreadCount int    `json:"unread_count" bson:"unread_count"`
	Archived    bool   `json:"archived,omitempty" bson:"archived,omitempty"`
	Pinned      bool   `json:"pinned,omitempty" bson:"pinned,omitempty"`
	MutedUntil  int64  `json:"muted_until,omitempty" bson:"muted_until,omitempty"`
	ImgURL      string `json:"img_url,omitempty" bson:"img_url,omitempty"`
}

// PreparedChat is a chat plus its most recent merged history page, the
// shape sent to API consumers and live subscribers.
type PreparedChat struct {
	Chat
	Messages []*Message `json:"messages"`
}

// ChatModification is a chat-level flag change.
type ChatModification string

const (
	ModArchive   ChatModification = "archive"
	ModUnarchive ChatModification = "unarchive"
	ModPin       ChatModification = "pin"
	ModUnpin     ChatModification = "unpin"
	ModMute      ChatModification = "mute"
	ModUnmute    ChatModification = "unmute"
)

// Contact is the address-book entry for a jid, used for recipient name
// detection in message flows.
type Contact struct {
	JID    string `json:"jid" bson:"jid"`
	Name   string `json:"name,omitempty" bson:"name,omitempty"`
	Notify string `json:"notify,omitempty" bson:"notify,omitempty"`
	ImgURL string `json:"img_url,omitempty" bson:"img_url,omitempty"`
}

// DisplayName returns the best-effort human name for the contact.
func (c *Contact) DisplayName() string {
	if c == nil {
		return ""
	}
	if c.Name != "" {
		return c.Name
	}
	return c.Notify
}
