package chatsync

import (
	"errors"
	"fmt"
)

var (
	// ErrNoActiveChat is returned when an operation targets a chat that is
	// not the active one.
	ErrNoActiveChat = errors.New("chat is not active")
	// ErrEmptyDraft is returned when a draft has neither text nor attachment.
	ErrEmptyDraft = errors.New("message has no content")
)

// NetworkError reports a failed backend call. Sync state is left untouched
// when one is returned.
type NetworkError struct {
	Op     string
	ChatID int
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s chat %d: %v", e.Op, e.ChatID, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsNetworkError reports whether err carries a NetworkError.
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}
