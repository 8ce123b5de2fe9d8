package chatsync

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partner-chat/internal/models"
)

func TestMergeSortsAndDedupes(t *testing.T) {
	existing := []models.Message{msg(3, 30, 1), msg(1, 10, 1)}
	incoming := []models.Message{msg(2, 20, 2), msg(3, 30, 1), msg(4, 40, 2)}

	merged := Merge(existing, incoming)

	assert.Equal(t, []int{1, 2, 3, 4}, ids(merged))
}

func TestMergeIncomingWins(t *testing.T) {
	existing := []models.Message{msg(1, 10, 1), msg(2, 20, 1)}
	edited := msg(2, 20, 1)
	edited.Content = text("edited")

	merged := Merge(existing, []models.Message{edited})

	require.Len(t, merged, 2)
	assert.Equal(t, edited, merged[1])
}

func TestMergeTombstoneReplacesMessage(t *testing.T) {
	existing := []models.Message{msg(1, 10, 1), msg(2, 20, 1)}

	merged := Merge(existing, []models.Message{existing[0].Tombstone()})

	require.Len(t, merged, 2)
	assert.True(t, merged[0].Deleted)
	assert.Nil(t, merged[0].Content)
}

func TestMergeTieBreaksByID(t *testing.T) {
	same := time.Unix(100, 0)
	a := models.Message{ID: 9, CreatedAt: same}
	b := models.Message{ID: 4, CreatedAt: same}

	merged := Merge([]models.Message{a}, []models.Message{b})

	assert.Equal(t, []int{4, 9}, ids(merged))
}

func TestMergeSelfIsIdempotent(t *testing.T) {
	list := []models.Message{msg(1, 10, 1), msg(2, 20, 2), msg(3, 30, 1)}

	assert.Equal(t, list, Merge(list, list))
	assert.Equal(t, list, Merge(Merge(list, list), list))
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	existing := []models.Message{msg(2, 20, 1), msg(1, 10, 1)}
	incoming := []models.Message{msg(1, 10, 2)}

	_ = Merge(existing, incoming)

	assert.Equal(t, []int{2, 1}, ids(existing))
	assert.Equal(t, 2, incoming[0].SenderID)
}

func TestMergeEmptyInputs(t *testing.T) {
	assert.Empty(t, Merge(nil, nil))
	assert.Equal(t, []int{1}, ids(Merge(nil, []models.Message{msg(1, 1, 1)})))
	assert.Equal(t, []int{1}, ids(Merge([]models.Message{msg(1, 1, 1)}, nil)))
}

func TestMergeRandomizedInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	randomList := func() []models.Message {
		n := rng.Intn(30)
		out := make([]models.Message, 0, n)
		for i := 0; i < n; i++ {
			id := rng.Intn(40) + 1
			// created_at is a function of id so duplicates agree on position
			m := models.Message{ID: id, SenderID: rng.Intn(3), CreatedAt: time.Unix(int64(id/3), 0)}
			out = append(out, m)
		}
		return out
	}

	for round := 0; round < 200; round++ {
		a, b := randomList(), randomList()
		merged := Merge(a, b)

		seen := map[int]bool{}
		for i, m := range merged {
			require.False(t, seen[m.ID], "duplicate id %d", m.ID)
			seen[m.ID] = true
			if i > 0 {
				require.True(t, less(merged[i-1], m), "out of order at %d", i)
			}
		}

		lastInB := map[int]models.Message{}
		for _, m := range b {
			lastInB[m.ID] = m
		}
		for _, m := range merged {
			if want, ok := lastInB[m.ID]; ok {
				require.Equal(t, want, m)
			}
		}
		for _, m := range a {
			require.True(t, seen[m.ID])
		}
	}
}
