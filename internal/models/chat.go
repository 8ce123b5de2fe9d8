package models

import "time"

// Chat is a direct conversation as seen by one of its participants.
type Chat struct {
	ID           int       `db:"id" json:"id"`
	Participants []int     `db:"-" json:"participants"`
	UnreadCount  int       `db:"unread_count" json:"unread_count"`
	LastMessage  *Message  `db:"-" json:"last_message,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// HasParticipant reports whether userID is a member of the chat.
func (c Chat) HasParticipant(userID int) bool {
	for _, id := range c.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

// PeerOf returns the first participant that is not userID, or 0.
func (c Chat) PeerOf(userID int) int {
	for _, id := range c.Participants {
		if id != userID {
			return id
		}
	}
	return 0
}
