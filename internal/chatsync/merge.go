package chatsync

import (
	"sort"

	"partner-chat/internal/models"
)

// Merge combines existing and incoming into one slice sorted ascending by
// (CreatedAt, ID) with at most one entry per ID. When an ID appears in both,
// the incoming entry wins. Neither input is modified.
func Merge(existing, incoming []models.Message) []models.Message {
	byID := make(map[int]int, len(existing)+len(incoming))
	out := make([]models.Message, 0, len(existing)+len(incoming))
	put := func(m models.Message) {
		if i, ok := byID[m.ID]; ok {
			out[i] = m
			return
		}
		byID[m.ID] = len(out)
		out = append(out, m)
	}
	for _, m := range existing {
		put(m)
	}
	for _, m := range incoming {
		put(m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return less(out[i], out[j])
	})
	return out
}

func less(a, b models.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// newestOf returns the message that sorts last in msgs.
func newestOf(msgs []models.Message) (models.Message, bool) {
	if len(msgs) == 0 {
		return models.Message{}, false
	}
	newest := msgs[0]
	for _, m := range msgs[1:] {
		if less(newest, m) {
			newest = m
		}
	}
	return newest, true
}
