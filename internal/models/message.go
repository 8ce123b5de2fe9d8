package models

import "time"

// Message represents a chat message. Deleted messages are kept as tombstones
// so a re-fetch carries the deletion.
type Message struct {
	ID         int        `db:"id" json:"id"`
	ChatID     int        `db:"chat_id" json:"chat_id"`
	SenderID   int        `db:"sender_id" json:"sender_id"`
	Content    *string    `db:"content" json:"content,omitempty"`
	Attachment *string    `db:"attachment" json:"attachment,omitempty"`
	ParentID   *int       `db:"parent_id" json:"parent_id,omitempty"`
	Deleted    bool       `db:"deleted" json:"deleted"`
	EditedAt   *time.Time `db:"edited_at" json:"edited_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// Tombstone returns a copy of m with its payload stripped and Deleted set.
func (m Message) Tombstone() Message {
	m.Deleted = true
	m.Content = nil
	m.Attachment = nil
	return m
}

// Text returns the message content or an empty string.
func (m Message) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// Draft is the payload of a new message. At least one of Content and
// Attachment must be set.
type Draft struct {
	Content    *string `json:"content,omitempty"`
	Attachment *string `json:"attachment,omitempty"`
	ParentID   *int    `json:"parent_id,omitempty"`
}

// Empty reports whether the draft carries neither text nor attachment.
func (d Draft) Empty() bool {
	return (d.Content == nil || *d.Content == "") && (d.Attachment == nil || *d.Attachment == "")
}

// MaxPageLimit is the largest page the server returns. Larger limits are
// capped, so clients must never ask for more.
const MaxPageLimit = 100

// Page selects a window of a chat's history. At most one cursor is set;
// with none the newest Limit messages are selected. Cursors are exclusive.
type Page struct {
	Limit    int
	BeforeID *int
	AfterID  *int
}

// Chat event types pushed over websockets and published to the broker.
const (
	EventMessage = "message"
	EventEdit    = "edit"
	EventDelete  = "delete"
)

// ChatEvent is broadcasted through websockets.
type ChatEvent struct {
	Type      string   `json:"type"`
	ChatID    int      `json:"chat_id"`
	Message   *Message `json:"message,omitempty"`
	MessageID int      `json:"message_id,omitempty"`
}
