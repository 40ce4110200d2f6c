// Package push implements the server push channel over a websocket.
package push

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"market-chat/contract"
	"market-chat/domain/chat"
	"market-chat/domain/event"
	"market-chat/errors"
)

const eventBuffer = 64

// envelope is the wire shape of one push frame.
type envelope struct {
	Type string `json:"type"`

	Message *struct {
		ID             string    `json:"id"`
		ConversationID string    `json:"conversationId"`
		SenderID       string    `json:"senderId"`
		ReceiverID     string    `json:"receiverId"`
		Content        string    `json:"content"`
		CreatedAt      time.Time `json:"createdAt"`
		Status         string    `json:"status"`
	} `json:"message,omitempty"`

	MessageID      string `json:"messageId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	UserID         string `json:"userId,omitempty"`
	IsTyping       bool   `json:"isTyping,omitempty"`
}

// WSSource dials the push websocket and pumps frames into an event
// channel. Run is supervision friendly: a lost connection returns an
// error so the supervisor redials; the event channel survives
// reconnects and only closes on Close.
type WSSource struct {
	url    string
	tokens contract.TokenSource
	log    *slog.Logger

	events    chan event.Event
	closeOnce sync.Once
}

var (
	_ contract.EventSource = (*WSSource)(nil)
	_ contract.Worker      = (*WSSource)(nil)
)

func NewWSSource(url string, tokens contract.TokenSource, log *slog.Logger) *WSSource {
	if log == nil {
		log = slog.Default()
	}
	return &WSSource{
		url:    url,
		tokens: tokens,
		log:    log,
		events: make(chan event.Event, eventBuffer),
	}
}

func (s *WSSource) Events() <-chan event.Event { return s.events }

// Close ends the stream for good. Callers stop the supervisor first so
// no Run is left writing to the channel.
func (s *WSSource) Close() {
	s.closeOnce.Do(func() { close(s.events) })
}

func (s *WSSource) Run(ctx context.Context) error {
	header := http.Header{}
	if s.tokens != nil {
		token, err := s.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("resolve push token: %w", err)
		}
		header.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, header)
	if err != nil {
		return fmt.Errorf("dial push socket: %w: %w", errors.ErrTransport, err)
	}
	defer conn.Close()

	// Unblock ReadJSON when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	s.log.Info("push socket connected", "url", s.url)

	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("push socket read: %w: %w", errors.ErrTransport, err)
		}

		e, ok := env.toEvent()
		if !ok {
			s.log.Debug("unknown push frame", "type", env.Type)
			continue
		}
		select {
		case s.events <- e:
		case <-ctx.Done():
			return nil
		}
	}
}

func (e envelope) toEvent() (event.Event, bool) {
	switch e.Type {
	case "message.received":
		if e.Message == nil {
			return nil, false
		}
		return event.MessageReceived{Message: chat.Message{
			ID:             e.Message.ID,
			ConversationID: e.Message.ConversationID,
			SenderID:       e.Message.SenderID,
			ReceiverID:     e.Message.ReceiverID,
			Content:        e.Message.Content,
			CreatedAt:      e.Message.CreatedAt,
			Status:         chat.ParseStatus(e.Message.Status),
		}}, true
	case "message.delivered":
		return event.MessageDelivered{MessageID: e.MessageID}, true
	case "message.seen":
		return event.MessageSeen{MessageID: e.MessageID}, true
	case "typing.changed":
		return event.TypingChanged{
			ConversationID: e.ConversationID,
			UserID:         e.UserID,
			IsTyping:       e.IsTyping,
		}, true
	default:
		return nil, false
	}
}
