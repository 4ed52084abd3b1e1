package models

// Event names published by a tenant session. Events are broadcast to live
// subscribers and forwarded to the tenant's webhooks unless blacklisted.
const (
	EventOpen             = "open"
	EventClose            = "close"
	EventStateSync        = "state-sync"
	EventChatUpdate       = "chat-update"
	EventChatsUpdate      = "chats-update"
	EventMessagesPostSleep = "messages-post-sleep"
	EventMessageNew       = "message-new"
	EventCredsUpdated     = "credentials-updated"
	EventReceivedPong     = "received-pong"
)

// ChatUpdate is the payload of a chat-update event: the chat it concerns
// and the messages that changed.
type ChatUpdate struct {
	JID      string     `json:"jid"`
	Messages []*Message `json:"messages"`
}

// EventEnvelope is what live subscribers and webhook endpoints receive.
type EventEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}
