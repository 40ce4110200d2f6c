//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"market-chat/domain/chat"
	"market-chat/domain/event"
)

// Transport is the marketplace API boundary the core calls into.
// Page 1 of FetchMessages is the newest page; higher pages go further
// into the past. All calls forward the opaque bearer credential, the
// core never inspects it.
type Transport interface {
	FetchConversations(ctx context.Context, userID string, page, limit int) (chat.ConversationPage, error)
	FetchMessages(ctx context.Context, conversationID string, page, limit int) (chat.MessagePage, error)
	SendMessage(ctx context.Context, conversationID, receiverID, content string) (chat.Message, error)
	// CreateConversation is idempotent find-or-create on the server:
	// an existing participant pair resolves to the existing conversation.
	CreateConversation(ctx context.Context, participantIDs []string) (chat.Conversation, error)
	GetConversation(ctx context.Context, conversationID string) (chat.Conversation, error)
}

// TokenSource supplies the bearer credential issued by the auth
// collaborator. Implementations may refresh it; callers only forward it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// EventSource is the push/acknowledgement channel. The channel closes
// when the underlying connection is gone for good.
type EventSource interface {
	Events() <-chan event.Event
}

// EventSink consumes routed events, typically a UI projection.
type EventSink interface {
	Consume(ctx context.Context, e event.Event) error
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
