// Package chat contains the core concepts of the direct-messaging system.
// This file defines Message records and their ordering and status rules.
// Messages are validated by the domain before entering any store.
package chat

import (
	"strings"
	"time"

	"market-chat/errors"
)

// Status is the delivery lifecycle of a message: sent, delivered, seen.
// The progression is strictly forward. A message never goes back from
// seen to delivered or sent.
type Status int

const (
	StatusSent Status = iota
	StatusDelivered
	StatusSeen
)

func (s Status) String() string {
	switch s {
	case StatusDelivered:
		return "delivered"
	case StatusSeen:
		return "seen"
	default:
		return "sent"
	}
}

// ParseStatus maps the wire representation back to a Status.
// Unknown values degrade to StatusSent, the weakest state, so a
// misbehaving server can only delay progression, never fake it.
func ParseStatus(s string) Status {
	switch s {
	case "delivered":
		return StatusDelivered
	case "seen":
		return StatusSeen
	default:
		return StatusSent
	}
}

// MostAdvanced returns the further of the two statuses.
// Merging two records of the same message keeps the strongest state.
func MostAdvanced(a, b Status) Status {
	if b > a {
		return b
	}
	return a
}

// Message represents one direct message between two participants.
// ID is server-assigned; a locally created provisional message carries
// a client-generated id until the authoritative echo arrives.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	ReceiverID     string
	Content        string
	CreatedAt      time.Time
	Status         Status

	// Failed marks a provisional message whose send round-trip was
	// rejected. It stays visible so the caller can offer a retry.
	Failed bool
}

// NewOutgoingMessage builds a provisional message for an optimistic send.
// Content is trimmed; whitespace-only content is rejected before any
// network call.
func NewOutgoingMessage(provisionalID, conversationID, senderID, receiverID, content string) (Message, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return Message{}, errors.ErrEmptyContent
	}
	return Message{
		ID:             provisionalID,
		ConversationID: conversationID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        trimmed,
		CreatedAt:      time.Now().UTC(),
		Status:         StatusSent,
	}, nil
}

// Before reports whether m sorts before other in a conversation stream.
// Ordering is by server CreatedAt, ties broken by id lexical order so
// the result is deterministic regardless of arrival order.
func (m Message) Before(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}

// ReceivedBy reports whether userID is the receiving side of m.
// Delivery status semantics only apply to received messages.
func (m Message) ReceivedBy(userID string) bool {
	return m.ReceiverID == userID && m.SenderID != userID
}
