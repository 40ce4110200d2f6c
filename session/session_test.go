package session

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"market-chat/domain/chat"
	"market-chat/domain/event"
	"market-chat/errors"
	"market-chat/mocks"
)

const (
	convID = "conv-42"
	alice  = "alice"
	bob    = "bob"
)

func testConversation() chat.Conversation {
	return chat.Conversation{
		ID:           convID,
		Participants: [2]string{alice, bob},
		CreatedAt:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func openSession(t *testing.T, transport *mocks.MockTransport) *Session {
	t.Helper()
	s, err := Open(testConversation(), alice, Config{
		Transport: transport,
		Log:       slog.Default(),
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func serverEcho(id, content string, at time.Time) chat.Message {
	return chat.Message{
		ID:             id,
		ConversationID: convID,
		SenderID:       alice,
		ReceiverID:     bob,
		Content:        content,
		CreatedAt:      at,
		Status:         chat.StatusSent,
	}
}

func TestOpenRejectsStranger(t *testing.T) {
	req := require.New(t)

	_, err := Open(testConversation(), "mallory", Config{})

	req.ErrorIs(err, errors.ErrUnknownConversation)
}

func TestSendReconcilesServerEcho(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockTransport(ctrl)

	echo := serverEcho("srv-1", "hello", time.Now().UTC())
	transport.EXPECT().
		SendMessage(gomock.Any(), convID, bob, "hello").
		Return(echo, nil)

	s := openSession(t, transport)
	sent, err := s.Send(context.Background(), "  hello  ")

	req.NoError(err)
	req.Equal("srv-1", sent.ID)
	req.Equal(1, s.Store().Len())
	req.True(s.HasMessage("srv-1"))
	got, ok := s.Store().Get("srv-1")
	req.True(ok)
	req.Equal("hello", got.Content)
}

func TestSendEmptyContentNeverHitsTransport(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockTransport(ctrl)

	s := openSession(t, transport)
	_, err := s.Send(context.Background(), "   ")

	req.ErrorIs(err, errors.ErrEmptyContent)
	req.Equal(0, s.Store().Len())
}

func TestSendFailureMarksProvisionalFailed(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockTransport(ctrl)

	transport.EXPECT().
		SendMessage(gomock.Any(), convID, bob, "hi").
		Return(chat.Message{}, fmt.Errorf("gateway: %w", errors.ErrTransport))

	s := openSession(t, transport)
	_, err := s.Send(context.Background(), "hi")

	req.ErrorIs(err, errors.ErrTransport)
	req.Equal(1, s.Store().Len())
	msgs := s.Store().Messages()
	req.True(msgs[0].Failed)
	req.Equal("hi", msgs[0].Content)
}

func TestRetryResendsFailedMessage(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockTransport(ctrl)

	echo := serverEcho("srv-9", "take two", time.Now().UTC())
	gomock.InOrder(
		transport.EXPECT().
			SendMessage(gomock.Any(), convID, bob, "take two").
			Return(chat.Message{}, errors.ErrTransport),
		transport.EXPECT().
			SendMessage(gomock.Any(), convID, bob, "take two").
			Return(echo, nil),
	)

	s := openSession(t, transport)
	_, err := s.Send(context.Background(), "take two")
	req.Error(err)

	provisionalID := s.Store().Messages()[0].ID
	sent, err := s.Retry(context.Background(), provisionalID)

	req.NoError(err)
	req.Equal("srv-9", sent.ID)
	req.Equal(1, s.Store().Len())
	req.False(s.Store().Messages()[0].Failed)
}

func TestRetryRejectsHealthyMessage(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockTransport(ctrl)

	echo := serverEcho("srv-3", "fine", time.Now().UTC())
	transport.EXPECT().
		SendMessage(gomock.Any(), convID, bob, "fine").
		Return(echo, nil)

	s := openSession(t, transport)
	_, err := s.Send(context.Background(), "fine")
	req.NoError(err)

	_, err = s.Retry(context.Background(), "srv-3")
	req.ErrorIs(err, errors.ErrNotFailed)

	_, err = s.Retry(context.Background(), "no-such-id")
	req.ErrorIs(err, errors.ErrUnknownMessage)
}

func TestApplyRoutesPushEvents(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	s := openSession(t, mocks.NewMockTransport(ctrl))

	incoming := chat.Message{
		ID:             "srv-7",
		ConversationID: convID,
		SenderID:       bob,
		ReceiverID:     alice,
		Content:        "yo",
		CreatedAt:      time.Now().UTC(),
		Status:         chat.StatusSent,
	}
	ctx := context.Background()

	s.Apply(ctx, event.MessageReceived{Message: incoming})
	req.Equal(1, s.Store().Len())

	s.Apply(ctx, event.MessageDelivered{MessageID: "srv-7"})
	got, _ := s.Store().Get("srv-7")
	req.Equal(chat.StatusDelivered, got.Status)

	s.Apply(ctx, event.MessageSeen{MessageID: "srv-7"})
	got, _ = s.Store().Get("srv-7")
	req.Equal(chat.StatusSeen, got.Status)

	// Acks for ids this session never saw are dropped.
	s.Apply(ctx, event.MessageSeen{MessageID: "ghost"})
	req.Equal(1, s.Store().Len())
}

func TestApplyTracksRemoteTyping(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)

	var observed []chat.TypingState
	s, err := Open(testConversation(), alice, Config{
		Transport: mocks.NewMockTransport(ctrl),
		OnRemoteTyping: func(state chat.TypingState) {
			observed = append(observed, state)
		},
	})
	req.NoError(err)
	t.Cleanup(s.Close)

	ctx := context.Background()
	s.Apply(ctx, event.TypingChanged{ConversationID: convID, UserID: bob, IsTyping: true})
	req.True(s.RemoteTyping())

	// The local user's own echo is ignored.
	s.Apply(ctx, event.TypingChanged{ConversationID: convID, UserID: alice, IsTyping: false})
	req.True(s.RemoteTyping())

	s.Apply(ctx, event.TypingChanged{ConversationID: convID, UserID: bob, IsTyping: false})
	req.False(s.RemoteTyping())
	req.Len(observed, 2)
}

func TestMarkOpenedTransitionsReceivedMessages(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	s := openSession(t, mocks.NewMockTransport(ctrl))

	now := time.Now().UTC().Add(-time.Minute)
	ctx := context.Background()
	for i, sender := range []string{bob, bob, alice} {
		receiver := alice
		if sender == alice {
			receiver = bob
		}
		s.Apply(ctx, event.MessageReceived{Message: chat.Message{
			ID:             fmt.Sprintf("m-%d", i),
			ConversationID: convID,
			SenderID:       sender,
			ReceiverID:     receiver,
			CreatedAt:      now.Add(time.Duration(i) * time.Second),
			Content:        "x",
			Status:         chat.StatusSent,
		}})
	}

	req.Equal(2, s.MarkOpened())
	// Second open finds nothing left to transition.
	req.Equal(0, s.MarkOpened())
}

func TestClosedSessionRefusesWork(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	s := openSession(t, mocks.NewMockTransport(ctrl))

	s.Close()
	s.Close() // idempotent

	_, err := s.Send(context.Background(), "too late")
	req.ErrorIs(err, errors.ErrSessionClosed)

	_, err = s.LoadOlder(context.Background())
	req.ErrorIs(err, errors.ErrSessionClosed)

	// Events after close are discarded silently.
	s.Apply(context.Background(), event.MessageReceived{Message: serverEcho("late", "x", time.Now())})
	req.Equal(0, s.Store().Len())
}

func TestSendEchoDiscardedAfterClose(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockTransport(ctrl)

	s := openSession(t, transport)

	release := make(chan struct{})
	transport.EXPECT().
		SendMessage(gomock.Any(), convID, bob, "slow").
		DoAndReturn(func(context.Context, string, string, string) (chat.Message, error) {
			<-release
			return serverEcho("srv-slow", "slow", time.Now().UTC()), nil
		})

	done := make(chan struct{})
	go func() {
		defer close(done)
		sent, err := s.Send(context.Background(), "slow")
		req.NoError(err)
		req.Equal("srv-slow", sent.ID)
	}()

	require.Eventually(t, func() bool { return s.Store().Len() == 1 }, time.Second, 5*time.Millisecond)
	s.Close()
	close(release)
	<-done

	// The echo was not applied, only the provisional remains.
	req.False(s.HasMessage("srv-slow"))
}
