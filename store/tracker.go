package store

import (
	"time"

	"market-chat/domain/chat"
)

// Tracker drives the sent → delivered → seen lifecycle of messages
// already present in a Store. It only mutates status; it never inserts.
type Tracker struct {
	store       *Store
	localUserID string
}

func NewTracker(s *Store, localUserID string) *Tracker {
	return &Tracker{store: s, localUserID: localUserID}
}

// MarkDelivered records a delivery acknowledgement. Duplicate or
// out-of-order acks and unknown ids are absorbed as no-ops.
func (t *Tracker) MarkDelivered(messageID string) bool {
	return t.store.advance(messageID, chat.StatusDelivered)
}

// MarkSeen records a seen acknowledgement. A seen arriving before the
// matching delivered is a valid monotonic jump, not an error.
func (t *Tracker) MarkSeen(messageID string) bool {
	return t.store.advance(messageID, chat.StatusSeen)
}

// MarkSeenThrough transitions all of the local user's received messages
// with CreatedAt <= upto to seen, modeling "opened the conversation".
// Self-sent messages are excluded: status only applies to messages
// received. Returns the number of messages transitioned.
func (t *Tracker) MarkSeenThrough(upto time.Time) int {
	t.store.mu.Lock()
	count := 0
	for _, m := range t.store.ordered {
		if m.CreatedAt.After(upto) {
			break
		}
		if !m.ReceivedBy(t.localUserID) || m.Status >= chat.StatusSeen {
			continue
		}
		m.Status = chat.StatusSeen
		count++
	}
	t.store.mu.Unlock()
	if count > 0 {
		t.store.notify()
	}
	return count
}
