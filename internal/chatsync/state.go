package chatsync

import "partner-chat/internal/models"

// Phase is the lifecycle position of the active chat.
type Phase int

const (
	PhaseUnloaded Phase = iota
	PhaseLoading
	PhaseReady
	PhaseLoadingOlder
	PhasePolling
)

func (p Phase) String() string {
	switch p {
	case PhaseUnloaded:
		return "unloaded"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseLoadingOlder:
		return "loading_older"
	case PhasePolling:
		return "polling"
	default:
		return "unknown"
	}
}

// SyncState is the in-memory view of the active chat.
type SyncState struct {
	ChatID       int
	Phase        Phase
	Messages     []models.Message
	HasMoreOlder bool
}

// OldestLoadedID returns the ID of the first message, the cursor for
// backward pagination.
func (s SyncState) OldestLoadedID() (int, bool) {
	if len(s.Messages) == 0 {
		return 0, false
	}
	return s.Messages[0].ID, true
}

// NewestLoadedID returns the ID of the last message.
func (s SyncState) NewestLoadedID() (int, bool) {
	if len(s.Messages) == 0 {
		return 0, false
	}
	return s.Messages[len(s.Messages)-1].ID, true
}

func (s SyncState) find(id int) (models.Message, bool) {
	for _, m := range s.Messages {
		if m.ID == id {
			return m, true
		}
	}
	return models.Message{}, false
}

func (s SyncState) clone() SyncState {
	out := s
	out.Messages = append([]models.Message(nil), s.Messages...)
	return out
}
