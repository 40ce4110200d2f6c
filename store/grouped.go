package store

import (
	"iter"
	"time"

	"market-chat/domain/chat"
)

// DayOf truncates t to its calendar day in the given location.
// Group boundaries are calendar-day equality only, never elapsed time
// between messages.
func DayOf(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// Groups yields the stream as (day, messages) groups in chronological
// order. The sequence is lazy and restartable: each range walks a
// snapshot of the store as it is at that moment. Day keys are calendar
// days in the viewer's location; "Today"/"Yesterday" labeling is
// layered on top by the projection, not stored here.
func (s *Store) Groups(loc *time.Location) iter.Seq2[time.Time, []chat.Message] {
	return func(yield func(time.Time, []chat.Message) bool) {
		s.mu.RLock()
		snapshot := s.snapshotLocked()
		s.mu.RUnlock()

		var (
			day   time.Time
			group []chat.Message
		)
		for _, m := range snapshot {
			d := DayOf(m.CreatedAt, loc)
			if group != nil && !d.Equal(day) {
				if !yield(day, group) {
					return
				}
				group = nil
			}
			day = d
			group = append(group, m)
		}
		if group != nil {
			yield(day, group)
		}
	}
}
