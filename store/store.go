// Package store holds the ordered, deduplicated in-memory message
// collection for one conversation. The store exclusively owns ordering
// and dedup; status progression is driven through the Tracker.
package store

import (
	"sort"
	"sync"
	"time"

	"market-chat/domain/chat"
)

type Store struct {
	mu             sync.RWMutex
	conversationID string
	ordered        []*chat.Message
	byID           map[string]*chat.Message

	// alias maps a provisional, client-generated id to the final
	// server-assigned id after reconciliation. Identity lookups and
	// merges follow the alias so a late ack or duplicate push for
	// either id lands on the same record.
	alias map[string]string

	obsMu     sync.Mutex
	observers []func()
}

func New(conversationID string) *Store {
	return &Store{
		conversationID: conversationID,
		byID:           make(map[string]*chat.Message),
		alias:          make(map[string]string),
	}
}

func (s *Store) ConversationID() string { return s.conversationID }

// Subscribe registers a callback invoked after every mutation.
// Rendering layers use this instead of polling. Callbacks run outside
// the store lock and must not block.
func (s *Store) Subscribe(fn func()) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = append(s.observers, fn)
}

func (s *Store) notify() {
	s.obsMu.Lock()
	obs := make([]func(), len(s.observers))
	copy(obs, s.observers)
	s.obsMu.Unlock()
	for _, fn := range obs {
		fn()
	}
}

// resolveLocked follows the provisional alias to the surviving id.
func (s *Store) resolveLocked(id string) string {
	if final, ok := s.alias[id]; ok {
		return final
	}
	return id
}

// Len returns the number of messages currently held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ordered)
}

// Has reports whether a message with the given (or aliased) id is held.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byID[s.resolveLocked(id)]
	return ok
}

// Get returns a copy of the message with the given id.
func (s *Store) Get(id string) (chat.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byID[s.resolveLocked(id)]
	if !ok {
		return chat.Message{}, false
	}
	return *m, true
}

// Messages returns a copy of the stream sorted by (CreatedAt, ID).
func (s *Store) Messages() []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() []chat.Message {
	out := make([]chat.Message, len(s.ordered))
	for i, m := range s.ordered {
		out[i] = *m
	}
	return out
}

// InsertOrMerge adds a message or merges it into the existing record
// with the same id. A merge keeps the most advanced status and fills
// fields the existing record is missing; it never regresses status and
// never reorders other entries. Returns true when anything changed.
func (s *Store) InsertOrMerge(msg chat.Message) bool {
	s.mu.Lock()
	changed := s.insertOrMergeLocked(msg)
	s.mu.Unlock()
	if changed {
		s.notify()
	}
	return changed
}

func (s *Store) insertOrMergeLocked(msg chat.Message) bool {
	id := s.resolveLocked(msg.ID)
	existing, ok := s.byID[id]
	if !ok {
		s.insertLocked(msg, id)
		return true
	}
	return s.mergeLocked(existing, msg)
}

func (s *Store) insertLocked(msg chat.Message, id string) {
	msg.ID = id
	m := &msg
	// Ordering is governed solely by (CreatedAt, ID), never by arrival
	// order: a late-arriving but chronologically earlier message lands
	// in its correct slot, not at the end.
	pos := sort.Search(len(s.ordered), func(i int) bool {
		return msg.Before(*s.ordered[i])
	})
	s.ordered = append(s.ordered, nil)
	copy(s.ordered[pos+1:], s.ordered[pos:])
	s.ordered[pos] = m
	s.byID[id] = m
}

func (s *Store) mergeLocked(dst *chat.Message, src chat.Message) bool {
	changed := false

	if merged := chat.MostAdvanced(dst.Status, src.Status); merged != dst.Status {
		dst.Status = merged
		changed = true
	}
	if dst.Content == "" && src.Content != "" {
		dst.Content = src.Content
		changed = true
	}
	if dst.SenderID == "" && src.SenderID != "" {
		dst.SenderID = src.SenderID
		changed = true
	}
	if dst.ReceiverID == "" && src.ReceiverID != "" {
		dst.ReceiverID = src.ReceiverID
		changed = true
	}
	if dst.CreatedAt.IsZero() && !src.CreatedAt.IsZero() {
		dst.CreatedAt = src.CreatedAt
		changed = true
		s.repositionLocked(dst)
	}
	return changed
}

// repositionLocked restores the sort invariant after dst's CreatedAt
// changed.
func (s *Store) repositionLocked(dst *chat.Message) {
	idx := -1
	for i, m := range s.ordered {
		if m == dst {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	s.ordered = append(s.ordered[:idx], s.ordered[idx+1:]...)
	pos := sort.Search(len(s.ordered), func(i int) bool {
		return dst.Before(*s.ordered[i])
	})
	s.ordered = append(s.ordered, nil)
	copy(s.ordered[pos+1:], s.ordered[pos:])
	s.ordered[pos] = dst
}

// ReconcileProvisional swaps a provisional, locally created message for
// the authoritative server record. The provisional id keeps resolving
// to the final id afterwards, so there is never a visible duplicate.
// When the server echo was already pushed before the reconciliation,
// the pushed record survives and the provisional entry is dropped.
func (s *Store) ReconcileProvisional(provisionalID string, server chat.Message) {
	s.mu.Lock()
	if provisionalID == server.ID {
		changed := s.insertOrMergeLocked(server)
		s.mu.Unlock()
		if changed {
			s.notify()
		}
		return
	}

	prov, ok := s.byID[provisionalID]
	if !ok {
		// Nothing to swap; record the alias and take the server record.
		s.alias[provisionalID] = server.ID
		s.insertOrMergeLocked(server)
		s.mu.Unlock()
		s.notify()
		return
	}

	s.alias[provisionalID] = server.ID
	delete(s.byID, provisionalID)

	if existing, dup := s.byID[server.ID]; dup {
		// The push channel beat the send round-trip. Keep the pushed
		// record, fold in the strongest status, drop the provisional.
		existing.Status = chat.MostAdvanced(existing.Status, prov.Status)
		s.removeLocked(prov)
		s.mu.Unlock()
		s.notify()
		return
	}

	// Mutate the provisional in place so the entry keeps its slot when
	// the server timestamp doesn't change its relative order.
	status := chat.MostAdvanced(prov.Status, server.Status)
	moved := !prov.CreatedAt.Equal(server.CreatedAt)
	*prov = server
	prov.Status = status
	prov.Failed = false
	s.byID[server.ID] = prov
	if moved {
		s.repositionLocked(prov)
	}
	s.mu.Unlock()
	s.notify()
}

// MarkFailed flags a provisional message whose send was rejected.
// The message stays in the stream so the UI can offer a retry.
func (s *Store) MarkFailed(id string) bool {
	s.mu.Lock()
	m, ok := s.byID[s.resolveLocked(id)]
	if !ok || m.Failed {
		s.mu.Unlock()
		return false
	}
	m.Failed = true
	s.mu.Unlock()
	s.notify()
	return true
}

// ClearFailed resets the failed flag before a retry attempt.
func (s *Store) ClearFailed(id string) {
	s.mu.Lock()
	m, ok := s.byID[s.resolveLocked(id)]
	if !ok || !m.Failed {
		s.mu.Unlock()
		return
	}
	m.Failed = false
	s.mu.Unlock()
	s.notify()
}

func (s *Store) removeLocked(target *chat.Message) {
	for i, m := range s.ordered {
		if m == target {
			s.ordered = append(s.ordered[:i], s.ordered[i+1:]...)
			return
		}
	}
}

// advance moves a message status forward, accepting any monotonic jump
// (sent straight to seen included). At-or-past targets and unknown ids
// are no-ops: transports may reorder or duplicate acknowledgements.
func (s *Store) advance(id string, target chat.Status) bool {
	s.mu.Lock()
	m, ok := s.byID[s.resolveLocked(id)]
	if !ok || m.Status >= target {
		s.mu.Unlock()
		return false
	}
	m.Status = target
	s.mu.Unlock()
	s.notify()
	return true
}

// OldestCreatedAt returns the timestamp of the oldest held message.
func (s *Store) OldestCreatedAt() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.ordered) == 0 {
		return time.Time{}, false
	}
	return s.ordered[0].CreatedAt, true
}
