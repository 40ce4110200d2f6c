// This file defines Conversation entities and the pair-key invariant.
// A conversation always has exactly two participants; creating one for
// an existing pair must resolve to the existing conversation.
package chat

import (
	"sort"
	"strings"
	"time"
)

// LastMessage is the denormalized summary used for list ordering.
// Derived from the newest message, never authoritative.
type LastMessage struct {
	Content   string
	SenderID  string
	CreatedAt time.Time
}

// Conversation is a two-participant message thread.
type Conversation struct {
	ID           string
	Participants [2]string
	LastMessage  LastMessage
	CreatedAt    time.Time
}

// PairKey normalizes two participant identities into a stable key.
// PairKey(a, b) == PairKey(b, a), which backs the find-or-create
// determinism of the conversation list.
func PairKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, "|")
}

// Key returns the pair key of the conversation's participants.
func (c Conversation) Key() string {
	return PairKey(c.Participants[0], c.Participants[1])
}

// PeerOf returns the other participant from the local user's point of
// view. The second value is false when userID is not a participant.
func (c Conversation) PeerOf(userID string) (string, bool) {
	switch userID {
	case c.Participants[0]:
		return c.Participants[1], true
	case c.Participants[1]:
		return c.Participants[0], true
	default:
		return "", false
	}
}

// Pagination is the page envelope returned by the marketplace API.
type Pagination struct {
	Page  int
	Limit int
	Total int
	Pages int
}

// MessagePage is one backward page of a conversation history,
// newest-first on page 1.
type MessagePage struct {
	Messages   []Message
	Pagination Pagination
}

// ConversationPage is one page of the local user's conversation list.
type ConversationPage struct {
	Conversations []Conversation
	Pagination    Pagination
}

// TypingState is the ephemeral presence signal for a conversation.
// It is never persisted and never enters a message store.
type TypingState struct {
	ConversationID string
	UserID         string
	IsTyping       bool
}
