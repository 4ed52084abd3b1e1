package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/nguyentranbao-ct/chat-gateway/pkg/msgq"
)

// MessageStatus follows the protocol ack ladder. Failed is used for
// scheduled messages whose delivery attempt was rejected.
type MessageStatus int

const (
	StatusFailed      MessageStatus = -1
	StatusPending     MessageStatus = 1
	StatusServerAck   MessageStatus = 2
	StatusDeliveryAck MessageStatus = 3
	StatusRead        MessageStatus = 4
)

// StubType marks protocol stub entries that carry no content.
type StubType string

const (
	StubNone   StubType = ""
	StubRevoke StubType = "revoke"
)

// Message is the unit of chat history. The same type represents live
// protocol messages, still-pending scheduled messages and notes; they are
// told apart by the Scheduled flag and the Note payload.
type Message struct {
	ID        string        `json:"id" bson:"id"`
	ChatID    string        `json:"chat_id" bson:"chat_id"`
	FromMe    bool          `json:"from_me" bson:"from_me"`
	Timestamp int64         `json:"timestamp" bson:"timestamp"` // unix seconds, sort key
	Status    MessageStatus `json:"status" bson:"status"`
	Body      *MessageBody  `json:"body,omitempty" bson:"body,omitempty"`
	Stub      StubType      `json:"stub,omitempty" bson:"stub,omitempty"`

	Scheduled bool      `json:"scheduled,omitempty" bson:"scheduled,omitempty"`
	Note      *NoteInfo `json:"note,omitempty" bson:"note,omitempty"`
	Tag       string    `json:"tag,omitempty" bson:"tag,omitempty"`
	QuotedID  string    `json:"quoted_id,omitempty" bson:"quoted_id,omitempty"`
}

// OrderKey is the total ordering key within a chat: timestamp first, ties
// broken by a stable hash of the id. Every merge of delivered, scheduled
// and note messages uses this key so the result is deterministic.
func (m *Message) OrderKey() int64 {
	return m.Timestamp*10000 + msgq.HashID(m.ID)
}

// MessageBody is the polymorphic content of a message: text, at most one
// media attachment, or a location.
type MessageBody struct {
	Text     string       `json:"text,omitempty" bson:"text,omitempty"`
	Location *Location    `json:"location,omitempty" bson:"location,omitempty"`
	Image    *FileContent `json:"image,omitempty" bson:"image,omitempty"`
	Video    *FileContent `json:"video,omitempty" bson:"video,omitempty"`
	Sticker  *FileContent `json:"sticker,omitempty" bson:"sticker,omitempty"`
	Audio    *FileContent `json:"audio,omitempty" bson:"audio,omitempty"`
	Document *FileContent `json:"document,omitempty" bson:"document,omitempty"`
	PTTAudio bool         `json:"ptt_audio,omitempty" bson:"ptt_audio,omitempty"`
	GifVideo bool         `json:"gif_video,omitempty" bson:"gif_video,omitempty"`
}

type Location struct {
	DegreesLatitude  float64 `json:"degrees_latitude" bson:"degrees_latitude"`
	DegreesLongitude float64 `json:"degrees_longitude" bson:"degrees_longitude"`
}

type FileContent struct {
	URL      string `json:"url" bson:"url" validate:"required,min=5,max=256"`
	Mimetype string `json:"mimetype" bson:"mimetype" validate:"required,max=64"`
	Name     string `json:"name,omitempty" bson:"name,omitempty" validate:"omitempty,max=128"`
}

// Media returns the single media attachment, if any.
func (b *MessageBody) Media() *FileContent {
	if b == nil {
		return nil
	}
	for _, f := range []*FileContent{b.Image, b.Video, b.Sticker, b.Audio, b.Document} {
		if f != nil {
			return f
		}
	}
	return nil
}

// MediaCount counts distinct media kinds; payloads with more than one are
// rejected by validation.
func (b *MessageBody) MediaCount() int {
	if b == nil {
		return 0
	}
	n := 0
	for _, f := range []*FileContent{b.Image, b.Video, b.Sticker, b.Audio, b.Document} {
		if f != nil {
			n++
		}
	}
	if b.Location != nil {
		n++
	}
	return n
}

func (b *MessageBody) Empty() bool {
	return b == nil || (b.Text == "" && b.MediaCount() == 0)
}

// Clone returns a deep copy so cached bodies are never mutated in place.
func (b *MessageBody) Clone() *MessageBody {
	if b == nil {
		return nil
	}
	out := *b
	cp := func(f *FileContent) *FileContent {
		if f == nil {
			return nil
		}
		c := *f
		return &c
	}
	out.Image = cp(b.Image)
	out.Video = cp(b.Video)
	out.Sticker = cp(b.Sticker)
	out.Audio = cp(b.Audio)
	out.Document = cp(b.Document)
	if b.Location != nil {
		l := *b.Location
		out.Location = &l
	}
	return &out
}

func NewMessageID() string {
	return uuid.NewString()
}

func UnixNow() int64 {
	return time.Now().Unix()
}
