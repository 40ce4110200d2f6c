// Package pager implements incremental backward pagination over one
// conversation's history. Fetched pages are merged into the message
// store, so a page re-fetched after new messages arrived never
// disturbs already-placed items.
package pager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"market-chat/contract"
	"market-chat/domain/chat"
	"market-chat/store"
)

// DefaultPageSize is the message page size requested per LoadOlder.
const DefaultPageSize = 50

// Result is the outcome of one LoadOlder call. HasMore is false only
// when the returned page was shorter than the requested size; callers
// must not assume a fixed total.
type Result struct {
	Messages []chat.Message
	HasMore  bool
}

type pending struct {
	done chan struct{}
	res  Result
	err  error
}

type Pager struct {
	mu        sync.Mutex
	transport contract.Transport
	store     *store.Store
	log       *slog.Logger
	pageSize  int
	nextPage  int
	exhausted bool
	inflight  *pending
}

func New(transport contract.Transport, s *store.Store, pageSize int, log *slog.Logger) *Pager {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pager{
		transport: transport,
		store:     s,
		log:       log,
		pageSize:  pageSize,
		nextPage:  1,
	}
}

// LoadOlder fetches the next page into the past; the first call returns
// the most recent page. At most one fetch is in flight per pager: a
// call issued while one is pending coalesces onto the same result
// rather than issuing a duplicate fetch. A failed fetch commits nothing
// to the store and leaves the page position unchanged, so retrying is
// just calling again.
func (p *Pager) LoadOlder(ctx context.Context) (Result, error) {
	p.mu.Lock()
	if p.inflight != nil {
		pend := p.inflight
		p.mu.Unlock()
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-pend.done:
			return pend.res, pend.err
		}
	}
	if p.exhausted {
		p.mu.Unlock()
		return Result{HasMore: false}, nil
	}
	pend := &pending{done: make(chan struct{})}
	p.inflight = pend
	page := p.nextPage
	p.mu.Unlock()

	// Suspension point: the fetch happens outside the pager lock.
	pageData, err := p.transport.FetchMessages(ctx, p.store.ConversationID(), page, p.pageSize)

	p.mu.Lock()
	p.inflight = nil
	if err != nil {
		pend.err = fmt.Errorf("load older messages page %d: %w", page, err)
		p.mu.Unlock()
		close(pend.done)
		return Result{}, pend.err
	}

	p.nextPage = page + 1
	hasMore := len(pageData.Messages) >= p.pageSize
	p.exhausted = !hasMore
	pend.res = Result{Messages: pageData.Messages, HasMore: hasMore}
	p.mu.Unlock()

	// Merge outside the pager lock: store observers fire during
	// InsertOrMerge and may call back into the pager.
	for _, m := range pageData.Messages {
		p.store.InsertOrMerge(m)
	}

	p.log.Debug("merged history page",
		"conversation", p.store.ConversationID(),
		"page", page,
		"count", len(pageData.Messages),
		"has_more", hasMore)

	close(pend.done)
	return pend.res, nil
}

// HasMore reports whether older pages may remain.
func (p *Pager) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.exhausted
}
