package test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"market-chat/conversations"
	"market-chat/domain/chat"
	"market-chat/domain/event"
	"market-chat/mocks"
	"market-chat/repositories"
	"market-chat/repositories/storage"
	"market-chat/runtime"
)

func Test_Scenario(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)
	// Reduced to 16 Mo for testing (avoid 20 Go of storage)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	req.NoError(err)

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)

	conv := chat.Conversation{
		ID:           "conv-1",
		Participants: [2]string{"alice", "bob"},
		CreatedAt:    time.Now().UTC(),
	}
	transport := mocks.NewMockTransport(ctrl)
	transport.EXPECT().
		GetConversation(gomock.Any(), conv.ID).
		Return(conv, nil).
		AnyTimes()

	// 1. Wiring: repository behind a global disk sink, a scoped timeline
	// sink, and a push worker feeding the router
	messageRepository := repositories.NewMessageRepository(db, log, lo.ToPtr(100))
	registry := runtime.NewRegistry()
	registry.SubscribeAll("disk", storage.NewDiskSink(messageRepository, nil, log))

	done := make(chan struct{})
	timelineSink := mocks.NewMockEventSink(ctrl)
	timelineSink.EXPECT().
		Consume(gomock.Any(), gomock.Any()).
		Do(func(any, any) {
			close(done) // Signaling the event has been fanned out
		}).
		Return(nil).
		Times(1)
	registry.Subscribe(conv.ID, "timeline", timelineSink)

	list := conversations.NewListController(transport, "alice", 20, log)
	router := runtime.NewRouter(list, registry, log)

	events := make(chan event.Event, 1)
	source := mocks.NewMockEventSource(ctrl)
	source.EXPECT().Events().Return((<-chan event.Event)(events)).AnyTimes()

	supervisor := runtime.NewSupervisor(log).
		Add(runtime.NewPushWorker(source, router, log))
	runCtx, cancel := context.WithCancel(ctx)
	go supervisor.Run(runCtx)

	// Clean everything at the end of the test
	t.Cleanup(func() {
		cancel()
		supervisor.Stop()
		db.Close()
	})

	// When a push message arrives for a conversation nobody has open
	msg := chat.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		SenderID:       "bob",
		ReceiverID:     "alice",
		Content:        "this message will self destruct in 5 seconds",
		CreatedAt:      time.Now().UTC(),
		Status:         chat.StatusSent,
	}
	events <- event.MessageReceived{Message: msg}

	// And wait time for channels & goroutines
	select {
	case <-done:
		// Then the event has been fanned out to the sinks
	case <-time.After(2 * time.Second):
		req.Fail("Timeout: event has never reached the sinks")
	}

	// Then the message lands in the local cache
	req.Eventually(func() bool {
		stored, _, err := messageRepository.GetMessages(conv.ID, nil)
		return err == nil && len(stored) == 1 && stored[0].ID == msg.ID
	}, 2*time.Second, 20*time.Millisecond)

	// And the conversation list learned about the new activity
	req.Eventually(func() bool {
		rows := list.Conversations()
		return len(rows) == 1 && rows[0].ID == conv.ID &&
			rows[0].LastMessage.Content == msg.Content
	}, 2*time.Second, 20*time.Millisecond)
}
