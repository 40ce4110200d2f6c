// Package runtime routes server push events to open sessions and keeps
// the background machinery (push pump, supervision) alive.
package runtime

import (
	"context"
	"log/slog"
	"sync"

	"market-chat/contract"
	"market-chat/conversations"
	"market-chat/domain/event"
	"market-chat/session"
)

// Router fans incoming events out to the session that owns them and to
// the conversation list. Delivery and seen acknowledgements carry only
// a message id, so the router locates their session by asking each open
// store; acknowledgements for unknown ids are dropped silently.
type Router struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session // conversationID -> session
	list     *conversations.ListController
	registry *Registry
	log      *slog.Logger
}

func NewRouter(list *conversations.ListController, registry *Registry, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		sessions: make(map[string]*session.Session),
		list:     list,
		registry: registry,
		log:      log,
	}
}

// Attach registers an open session. A previous session for the same
// conversation is closed first.
func (r *Router) Attach(s *session.Session) {
	r.mu.Lock()
	prev := r.sessions[s.ConversationID()]
	r.sessions[s.ConversationID()] = s
	r.mu.Unlock()

	if prev != nil && prev != s {
		prev.Close()
	}
}

// Detach closes and forgets the session for a conversation, if any.
func (r *Router) Detach(conversationID string) {
	r.mu.Lock()
	s := r.sessions[conversationID]
	delete(r.sessions, conversationID)
	r.mu.Unlock()

	if s != nil {
		s.Close()
	}
}

func (r *Router) SessionFor(conversationID string) (*session.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[conversationID]
	return s, ok
}

// Dispatch applies one push event. Events can arrive duplicated and in
// any order; everything here is idempotent.
func (r *Router) Dispatch(ctx context.Context, e event.Event) {
	switch evt := e.(type) {
	case event.MessageReceived:
		r.dispatchMessage(ctx, evt)
	case event.MessageDelivered:
		r.dispatchAck(ctx, evt.MessageID, e)
	case event.MessageSeen:
		r.dispatchAck(ctx, evt.MessageID, e)
	case event.TypingChanged:
		if s, ok := r.SessionFor(evt.ConversationID); ok {
			s.Apply(ctx, e)
		}
		r.fanout(ctx, evt.ConversationID, e)
	default:
		r.log.Debug("unhandled push event", "kind", e.Kind())
	}
}

func (r *Router) dispatchMessage(ctx context.Context, evt event.MessageReceived) {
	convID := evt.Message.ConversationID
	if s, ok := r.SessionFor(convID); ok {
		s.Apply(ctx, evt)
	}
	// The list learns about every message, open session or not, so a
	// first message from a stranger surfaces a new conversation row.
	if r.list != nil {
		if err := r.list.UpsertFromMessage(ctx, evt.Message); err != nil {
			r.log.Warn("conversation list upsert failed",
				"conversation", convID, "err", err)
		}
	}
	r.fanout(ctx, convID, evt)
}

// dispatchAck finds the one session holding the acknowledged message.
func (r *Router) dispatchAck(ctx context.Context, messageID string, e event.Event) {
	r.mu.RLock()
	var target *session.Session
	for _, s := range r.sessions {
		if s.HasMessage(messageID) {
			target = s
			break
		}
	}
	r.mu.RUnlock()

	if target == nil {
		r.log.Debug("ack for unknown message", "message", messageID, "kind", e.Kind())
		return
	}
	target.Apply(ctx, e)
	r.fanout(ctx, target.ConversationID(), e)
}

func (r *Router) fanout(ctx context.Context, conversationID string, e event.Event) {
	if r.registry == nil {
		return
	}
	for _, sink := range r.registry.SinksFor(conversationID) {
		if err := sink.Consume(ctx, e); err != nil {
			r.log.Debug("event sink rejected event", "kind", e.Kind(), "err", err)
		}
	}
}

// Close detaches every open session.
func (r *Router) Close() {
	r.mu.Lock()
	sessions := make([]*session.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*session.Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

var _ contract.EventSink = sinkFunc(nil)

// sinkFunc adapts a function to the EventSink interface.
type sinkFunc func(ctx context.Context, e event.Event) error

func (f sinkFunc) Consume(ctx context.Context, e event.Event) error { return f(ctx, e) }

// SinkFunc wraps fn as an EventSink.
func SinkFunc(fn func(ctx context.Context, e event.Event) error) contract.EventSink {
	return sinkFunc(fn)
}
