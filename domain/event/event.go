// Package event defines the push events delivered out-of-band by the
// server. The core tolerates these arriving in any order and duplicated;
// routing treats unknown ids as no-ops.
package event

import (
	"market-chat/domain/chat"
)

// Event is implemented by every push event.
type Event interface {
	Kind() string
}

// MessageReceived carries a full message pushed by the server, either a
// remote participant's message or an echo from another device.
type MessageReceived struct {
	Message chat.Message
}

func (MessageReceived) Kind() string { return "message.received" }

// MessageDelivered acknowledges that the remote party's device received
// the message. Only the message id is available on the wire.
type MessageDelivered struct {
	MessageID string
}

func (MessageDelivered) Kind() string { return "message.delivered" }

// MessageSeen acknowledges that the remote party opened the
// conversation and saw the message.
type MessageSeen struct {
	MessageID string
}

func (MessageSeen) Kind() string { return "message.seen" }

// TypingChanged signals remote typing presence for a conversation.
type TypingChanged struct {
	ConversationID string
	UserID         string
	IsTyping       bool
}

func (TypingChanged) Kind() string { return "typing.changed" }
