// Package conversations maintains the recency-ordered set of
// conversations the local user participates in, each annotated with its
// most recent message summary. Both local sends and remote arrivals
// flow through UpsertFromMessage so the ordering never diverges.
package conversations

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"market-chat/contract"
	"market-chat/domain/chat"
)

// DefaultPageSize is the conversation page size per LoadMore.
const DefaultPageSize = 20

// Result is the outcome of one LoadMore call.
type Result struct {
	Conversations []chat.Conversation
	HasMore       bool
}

type pending struct {
	done chan struct{}
	res  Result
	err  error
}

type ListController struct {
	mu          sync.Mutex
	transport   contract.Transport
	log         *slog.Logger
	localUserID string
	pageSize    int

	ordered []*chat.Conversation
	byID    map[string]*chat.Conversation
	byPair  map[string]string

	nextPage  int
	exhausted bool
	inflight  *pending

	obsMu     sync.Mutex
	observers []func()
}

func NewListController(transport contract.Transport, localUserID string, pageSize int, log *slog.Logger) *ListController {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &ListController{
		transport:   transport,
		log:         log,
		localUserID: localUserID,
		pageSize:    pageSize,
		byID:        make(map[string]*chat.Conversation),
		byPair:      make(map[string]string),
		nextPage:    1,
	}
}

// Subscribe registers a callback invoked after every list mutation.
func (l *ListController) Subscribe(fn func()) {
	l.obsMu.Lock()
	defer l.obsMu.Unlock()
	l.observers = append(l.observers, fn)
}

func (l *ListController) notify() {
	l.obsMu.Lock()
	obs := make([]func(), len(l.observers))
	copy(obs, l.observers)
	l.obsMu.Unlock()
	for _, fn := range obs {
		fn()
	}
}

// Conversations returns a copy ordered by most recent lastMessage first.
func (l *ListController) Conversations() []chat.Conversation {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]chat.Conversation, len(l.ordered))
	for i, c := range l.ordered {
		out[i] = *c
	}
	return out
}

// Get returns a copy of the conversation with the given id.
func (l *ListController) Get(id string) (chat.Conversation, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.byID[id]
	if !ok {
		return chat.Conversation{}, false
	}
	return *c, true
}

// LoadMore fetches the next page of the user's conversations, same
// cursor contract as the message pager: page 1 first, exhaustion
// signaled by a short page, concurrent callers coalesced onto one
// fetch. Conversations already present keep their position; a page
// re-fetched after the list moved never duplicates entries.
func (l *ListController) LoadMore(ctx context.Context) (Result, error) {
	l.mu.Lock()
	if l.inflight != nil {
		pend := l.inflight
		l.mu.Unlock()
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-pend.done:
			return pend.res, pend.err
		}
	}
	if l.exhausted {
		l.mu.Unlock()
		return Result{HasMore: false}, nil
	}
	pend := &pending{done: make(chan struct{})}
	l.inflight = pend
	page := l.nextPage
	l.mu.Unlock()

	pageData, err := l.transport.FetchConversations(ctx, l.localUserID, page, l.pageSize)

	l.mu.Lock()
	l.inflight = nil
	if err != nil {
		pend.err = fmt.Errorf("load conversations page %d: %w", page, err)
		l.mu.Unlock()
		close(pend.done)
		return Result{}, pend.err
	}

	for _, c := range pageData.Conversations {
		if _, ok := l.byID[c.ID]; ok {
			continue
		}
		l.appendLocked(c)
	}
	l.nextPage = page + 1
	hasMore := len(pageData.Conversations) >= l.pageSize
	l.exhausted = !hasMore
	pend.res = Result{Conversations: pageData.Conversations, HasMore: hasMore}
	l.mu.Unlock()

	l.log.Debug("merged conversation page", "page", page,
		"count", len(pageData.Conversations), "has_more", hasMore)

	close(pend.done)
	l.notify()
	return pend.res, nil
}

func (l *ListController) appendLocked(c chat.Conversation) {
	cp := c
	l.ordered = append(l.ordered, &cp)
	l.byID[c.ID] = &cp
	l.byPair[c.Key()] = c.ID
}

func (l *ListController) insertFrontLocked(c chat.Conversation) {
	cp := c
	l.ordered = append([]*chat.Conversation{&cp}, l.ordered...)
	l.byID[c.ID] = &cp
	l.byPair[c.Key()] = c.ID
}

func (l *ListController) moveToFrontLocked(target *chat.Conversation) {
	for i, c := range l.ordered {
		if c == target {
			copy(l.ordered[1:i+1], l.ordered[:i])
			l.ordered[0] = target
			return
		}
	}
}

// UpsertFromMessage refreshes the list for an incoming or just-sent
// message: the conversation moves to the front with an updated
// lastMessage summary. An unknown conversation (first message of a
// brand-new thread) is fetched and inserted at the front, never as a
// duplicate. A message older than the current summary is ignored so a
// late-arriving chronologically earlier push cannot reorder the list.
func (l *ListController) UpsertFromMessage(ctx context.Context, msg chat.Message) error {
	l.mu.Lock()
	if c, ok := l.byID[msg.ConversationID]; ok {
		if msg.CreatedAt.Before(c.LastMessage.CreatedAt) {
			l.mu.Unlock()
			return nil
		}
		c.LastMessage = summaryOf(msg)
		l.moveToFrontLocked(c)
		l.mu.Unlock()
		l.notify()
		return nil
	}
	l.mu.Unlock()

	fetched, err := l.transport.GetConversation(ctx, msg.ConversationID)
	if err != nil {
		return fmt.Errorf("fetch conversation %s: %w", msg.ConversationID, err)
	}
	if !msg.CreatedAt.Before(fetched.LastMessage.CreatedAt) {
		fetched.LastMessage = summaryOf(msg)
	}

	l.mu.Lock()
	// Re-check: another arrival may have inserted it while we fetched.
	if c, ok := l.byID[fetched.ID]; ok {
		if !msg.CreatedAt.Before(c.LastMessage.CreatedAt) {
			c.LastMessage = summaryOf(msg)
			l.moveToFrontLocked(c)
		}
		l.mu.Unlock()
		l.notify()
		return nil
	}
	l.insertFrontLocked(fetched)
	l.mu.Unlock()
	l.notify()
	return nil
}

// FindOrCreate resolves the conversation for a participant pair,
// creating it on the server when none exists. Deterministic: repeated
// calls with the same two participants, in either order, resolve to the
// same conversation.
func (l *ListController) FindOrCreate(ctx context.Context, a, b string) (chat.Conversation, error) {
	key := chat.PairKey(a, b)

	l.mu.Lock()
	if id, ok := l.byPair[key]; ok {
		if c, held := l.byID[id]; held {
			out := *c
			l.mu.Unlock()
			return out, nil
		}
	}
	l.mu.Unlock()

	// The server side is idempotent find-or-create: an existing pair
	// resolves to the existing conversation, never a duplicate.
	created, err := l.transport.CreateConversation(ctx, []string{a, b})
	if err != nil {
		return chat.Conversation{}, fmt.Errorf("find or create conversation: %w", err)
	}

	l.mu.Lock()
	if c, ok := l.byID[created.ID]; ok {
		out := *c
		l.mu.Unlock()
		return out, nil
	}
	l.insertFrontLocked(created)
	l.mu.Unlock()
	l.notify()
	return created, nil
}

func summaryOf(msg chat.Message) chat.LastMessage {
	return chat.LastMessage{
		Content:   msg.Content,
		SenderID:  msg.SenderID,
		CreatedAt: msg.CreatedAt,
	}
}
