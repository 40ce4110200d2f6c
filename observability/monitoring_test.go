package observability

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"market-chat/domain/chat"
	"market-chat/domain/event"
)

func TestMonitorCountsEvents(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	m := NewMonitor(slog.Default())

	msg := chat.Message{
		ID:             "msg-1",
		ConversationID: "conv-1",
		SenderID:       "bob",
		CreatedAt:      time.Now().UTC(),
	}
	req.NoError(m.Consume(ctx, event.MessageReceived{Message: msg}))
	req.NoError(m.Consume(ctx, event.MessageDelivered{MessageID: "msg-1"}))
	req.NoError(m.Consume(ctx, event.MessageSeen{MessageID: "msg-1"}))
	req.NoError(m.Consume(ctx, event.TypingChanged{
		ConversationID: "conv-1", UserID: "bob", IsTyping: true,
	}))

	stats := m.Stats()
	req.Equal(uint64(1), stats["Received"])
	req.Equal(uint64(1), stats["Delivered"])
	req.Equal(uint64(1), stats["Seen"])
	req.Equal(uint64(1), stats["Typing"])

	recent := m.Recent()
	req.Len(recent, 4)
	// Newest first
	req.Equal("typing.changed", recent[0].Kind)
	req.Equal("message.received", recent[3].Kind)
	req.Equal("from bob", recent[3].Detail)
}

func TestMonitorKeepsTwentyRows(t *testing.T) {
	req := require.New(t)
	m := NewMonitor(slog.Default())

	for i := 0; i < 25; i++ {
		req.NoError(m.Consume(context.Background(), event.MessageSeen{MessageID: "msg"}))
	}
	req.Len(m.Recent(), 20)
	req.Equal(uint64(25), m.Stats()["Seen"])
}
