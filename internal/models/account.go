package models

import "time"

// AccountInfo is the durable record of one tenant's protocol account.
type AccountInfo struct {
	ID            string     `json:"id" bson:"team_id"`
	Creds         []byte     `json:"-" bson:"creds,omitempty"` // opaque protocol credentials
	LastConnect   *time.Time `json:"last_connect,omitempty" bson:"last_connect,omitempty"`
	AutoReconnect bool       `json:"auto_reconnect" bson:"auto_reconnect"`
	LastKnownUser *User      `json:"last_known_user,omitempty" bson:"last_known_user,omitempty"`
}

// User identifies the account holder on the protocol side.
type User struct {
	JID  string `json:"jid" bson:"jid"`
	Name string `json:"name,omitempty" bson:"name,omitempty"`
}

// ConnState is the lifecycle state of a tenant's protocol connection.
type ConnState string

const (
	StateClosed     ConnState = "close"
	StateConnecting ConnState = "connecting"
	StateOpen       ConnState = "open"
)

// SessionState is the full state document returned to API consumers and
// broadcast on state-sync.
type SessionState struct {
	Connection ConnState `json:"connection"`
	Chats      struct {
		HasSome   bool `json:"has_some"`
		HasLatest bool `json:"has_latest"`
	} `json:"chats"`
	CanLogin bool  `json:"can_login"`
	User     *User `json:"user,omitempty"`
}
