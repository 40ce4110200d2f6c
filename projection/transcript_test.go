package projection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"market-chat/domain/chat"
	"market-chat/store"
)

func TestTranscript_Labels(t *testing.T) {
	req := require.New(t)
	loc := time.UTC
	now := time.Date(2026, 3, 14, 15, 0, 0, 0, loc)

	s := store.New("conv-1")
	for i, at := range []time.Time{
		now.Add(-72 * time.Hour), // March 11
		now.Add(-24 * time.Hour), // March 13
		now.Add(-1 * time.Hour),  // March 14
	} {
		s.InsertOrMerge(chat.Message{
			ID:             string(rune('a' + i)),
			ConversationID: "conv-1",
			SenderID:       "alice",
			ReceiverID:     "bob",
			Content:        "hello",
			CreatedAt:      at,
		})
	}

	tr := NewTranscript(s, loc)
	tr.now = func() time.Time { return now }

	days := tr.Days()
	req.Len(days, 3)
	req.Equal("March 11, 2026", days[0].Label)
	req.Equal("Yesterday", days[1].Label)
	req.Equal("Today", days[2].Label)
}

func TestTranscript_EmptyStore(t *testing.T) {
	req := require.New(t)
	tr := NewTranscript(store.New("conv-1"), time.UTC)
	req.Empty(tr.Days())
}
