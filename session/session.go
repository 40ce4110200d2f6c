// Package session owns one open conversation view: its message store,
// delivery tracker, pager, and typing signaler. All mutations for the
// conversation funnel through the session, which serializes them; the
// only suspending operations are page fetches and send round-trips.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"market-chat/contract"
	"market-chat/conversations"
	"market-chat/domain/chat"
	"market-chat/domain/event"
	"market-chat/errors"
	"market-chat/moderation"
	"market-chat/pager"
	"market-chat/store"
	"market-chat/typing"
)

// MessageCache persists merged messages for offline reads and search.
// Optional; a nil cache disables persistence.
type MessageCache interface {
	StoreMessage(msg chat.Message) error
}

// Config carries the collaborators a session is wired with.
type Config struct {
	Transport contract.Transport
	List      *conversations.ListController

	// Masker rewrites outbound content before it leaves the client.
	Masker *moderation.Masker
	Cache  MessageCache

	// TypingNotify forwards local presence transitions to the server.
	TypingNotify func(isTyping bool)
	// OnRemoteTyping observes the peer's presence transitions.
	OnRemoteTyping func(state chat.TypingState)

	PageSize    int
	QuietPeriod time.Duration
	Log         *slog.Logger
}

type Session struct {
	mu           sync.Mutex
	conv         chat.Conversation
	localUserID  string
	receiverID   string
	transport    contract.Transport
	list         *conversations.ListController
	masker       *moderation.Masker
	cache        MessageCache
	onRemoteType func(chat.TypingState)
	log          *slog.Logger

	store    *store.Store
	tracker  *store.Tracker
	pager    *pager.Pager
	signaler *typing.Signaler

	ctx    context.Context
	cancel context.CancelFunc
	closed bool

	remoteTyping bool
}

// Open builds a session for the local user on the given conversation.
func Open(conv chat.Conversation, localUserID string, cfg Config) (*Session, error) {
	peer, ok := conv.PeerOf(localUserID)
	if !ok {
		return nil, fmt.Errorf("open session %s: user %s: %w",
			conv.ID, localUserID, errors.ErrUnknownConversation)
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	st := store.New(conv.ID)
	s := &Session{
		conv:         conv,
		localUserID:  localUserID,
		receiverID:   peer,
		transport:    cfg.Transport,
		list:         cfg.List,
		masker:       cfg.Masker,
		cache:        cfg.Cache,
		onRemoteType: cfg.OnRemoteTyping,
		log:          log,
		store:        st,
		tracker:      store.NewTracker(st, localUserID),
		pager:        pager.New(cfg.Transport, st, cfg.PageSize, log),
		ctx:          ctx,
		cancel:       cancel,
	}
	s.signaler = typing.NewSignaler(cfg.QuietPeriod, cfg.TypingNotify)
	return s, nil
}

func (s *Session) Conversation() chat.Conversation { return s.conv }
func (s *Session) ConversationID() string          { return s.conv.ID }
func (s *Session) Store() *store.Store             { return s.store }

// RemoteTyping reports whether the peer is currently composing.
func (s *Session) RemoteTyping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteTyping
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// scoped derives a context cancelled either by the caller or by
// session teardown, so navigating away aborts a pending page fetch.
func (s *Session) scoped(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() { stop(); cancel() }
}

// LoadOlder pages one step further into the conversation's past.
func (s *Session) LoadOlder(ctx context.Context) (pager.Result, error) {
	if s.isClosed() {
		return pager.Result{}, errors.ErrSessionClosed
	}
	ctx, cancel := s.scoped(ctx)
	defer cancel()

	res, err := s.pager.LoadOlder(ctx)
	if err != nil {
		return pager.Result{}, err
	}
	s.persist(res.Messages...)
	return res, nil
}

// Send performs an optimistic send: the provisional message enters the
// store immediately, the server echo replaces it on success, and a
// rejected send leaves the provisional marked failed for retry. The
// round-trip itself is never cancelled by teardown; its result is
// simply discarded when the session closed meanwhile.
func (s *Session) Send(ctx context.Context, content string) (chat.Message, error) {
	if s.isClosed() {
		return chat.Message{}, errors.ErrSessionClosed
	}
	if s.masker != nil {
		content = s.masker.Apply(content)
	}
	msg, err := chat.NewOutgoingMessage(uuid.NewString(), s.conv.ID, s.localUserID, s.receiverID, content)
	if err != nil {
		// Empty content never reaches the network.
		return chat.Message{}, err
	}

	s.store.InsertOrMerge(msg)
	s.touchList(ctx, msg)
	// Sending ends the typing burst immediately.
	s.signaler.MessageSent()

	return s.roundTrip(ctx, msg)
}

// Retry re-sends a provisional message that previously failed.
func (s *Session) Retry(ctx context.Context, provisionalID string) (chat.Message, error) {
	if s.isClosed() {
		return chat.Message{}, errors.ErrSessionClosed
	}
	msg, ok := s.store.Get(provisionalID)
	if !ok {
		return chat.Message{}, errors.ErrUnknownMessage
	}
	if !msg.Failed {
		return chat.Message{}, errors.ErrNotFailed
	}
	s.store.ClearFailed(provisionalID)
	return s.roundTrip(ctx, msg)
}

func (s *Session) roundTrip(ctx context.Context, msg chat.Message) (chat.Message, error) {
	// Fire-and-forget to completion: navigation must not abort an
	// in-flight send.
	echo, err := s.transport.SendMessage(context.WithoutCancel(ctx), s.conv.ID, s.receiverID, msg.Content)
	if err != nil {
		s.store.MarkFailed(msg.ID)
		return chat.Message{}, fmt.Errorf("send message: %w", err)
	}
	if s.isClosed() {
		// View is gone; the server kept the message, nothing to apply.
		return echo, nil
	}
	s.store.ReconcileProvisional(msg.ID, echo)
	s.persist(echo)
	s.touchList(ctx, echo)
	return echo, nil
}

// InputChanged records a local keystroke for typing presence.
func (s *Session) InputChanged() {
	if s.isClosed() {
		return
	}
	s.signaler.InputChanged()
}

// MarkOpened models "the user opened the conversation": every received
// message up to now transitions to seen.
func (s *Session) MarkOpened() int {
	return s.tracker.MarkSeenThrough(time.Now().UTC())
}

// MarkSeenThrough exposes the bulk transition for explicit timestamps.
func (s *Session) MarkSeenThrough(upto time.Time) int {
	return s.tracker.MarkSeenThrough(upto)
}

// Apply consumes a routed push event for this conversation. Events may
// arrive in any order and duplicated; unknown ids are no-ops.
func (s *Session) Apply(ctx context.Context, e event.Event) {
	if s.isClosed() {
		return
	}
	switch evt := e.(type) {
	case event.MessageReceived:
		if s.store.InsertOrMerge(evt.Message) {
			s.persist(evt.Message)
		}
	case event.MessageDelivered:
		s.tracker.MarkDelivered(evt.MessageID)
	case event.MessageSeen:
		s.tracker.MarkSeen(evt.MessageID)
	case event.TypingChanged:
		if evt.UserID == s.localUserID {
			return
		}
		s.mu.Lock()
		s.remoteTyping = evt.IsTyping
		s.mu.Unlock()
		if s.onRemoteType != nil {
			s.onRemoteType(chat.TypingState{
				ConversationID: s.conv.ID,
				UserID:         evt.UserID,
				IsTyping:       evt.IsTyping,
			})
		}
	}
}

// HasMessage reports whether this session's store holds the id,
// letting the router address bare acknowledgements.
func (s *Session) HasMessage(id string) bool {
	return s.store.Has(id)
}

// Close tears the view down: the pending page fetch context and the
// typing timer are cancelled. No final typing notification is emitted;
// the remote side times presence out on its own.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.signaler.Close()
}

func (s *Session) touchList(ctx context.Context, msg chat.Message) {
	if s.list == nil {
		return
	}
	if err := s.list.UpsertFromMessage(ctx, msg); err != nil {
		s.log.Warn("conversation list upsert failed",
			"conversation", msg.ConversationID, "err", err)
	}
}

func (s *Session) persist(msgs ...chat.Message) {
	if s.cache == nil {
		return
	}
	for _, m := range msgs {
		if err := s.cache.StoreMessage(m); err != nil {
			s.log.Warn("history cache write failed", "message", m.ID, "err", err)
		}
	}
}
