package runtime

import (
	"sync"

	"market-chat/contract"
)

// Registry tracks auxiliary event consumers per conversation, things
// like UI projections or debug tooling that want a copy of routed
// events without owning a session. Delivery is best effort; the
// registry is not a broker.
type Registry struct {
	mu      sync.RWMutex
	sinks   map[string]map[string]contract.EventSink // conversationID -> sinkID -> sink
	globals map[string]contract.EventSink            // sinks receiving every conversation
}

func NewRegistry() *Registry {
	return &Registry{
		sinks:   make(map[string]map[string]contract.EventSink),
		globals: make(map[string]contract.EventSink),
	}
}

// SubscribeAll attaches a sink to every conversation, persistence and
// metrics being the usual customers.
func (r *Registry) SubscribeAll(sinkID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.globals[sinkID] = sink
}

func (r *Registry) UnsubscribeAll(sinkID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.globals, sinkID)
}

// Subscribe attaches a named sink to a conversation. Re-subscribing
// under the same id replaces the previous sink.
func (r *Registry) Subscribe(conversationID, sinkID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sinks[conversationID]; !ok {
		r.sinks[conversationID] = make(map[string]contract.EventSink)
	}
	r.sinks[conversationID][sinkID] = sink
}

// Unsubscribe detaches a sink. Empty conversation entries are removed
// so abandoned conversations do not accumulate.
func (r *Registry) Unsubscribe(conversationID, sinkID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byID, ok := r.sinks[conversationID]
	if !ok {
		return
	}
	delete(byID, sinkID)
	if len(byID) == 0 {
		delete(r.sinks, conversationID)
	}
}

// SinksFor returns the active sinks for a conversation, global ones
// included, nil when none.
func (r *Registry) SinksFor(conversationID string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byID := r.sinks[conversationID]
	if len(byID) == 0 && len(r.globals) == 0 {
		return nil
	}
	out := make([]contract.EventSink, 0, len(byID)+len(r.globals))
	for _, sink := range r.globals {
		out = append(out, sink)
	}
	for _, sink := range byID {
		out = append(out, sink)
	}
	return out
}
