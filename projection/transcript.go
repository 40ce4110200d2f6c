// Package projection builds read-only views over a conversation's
// store for rendering. It adds presentation concerns (day labels,
// typing line) on top of the store's grouped view; it never mutates
// state or talks to the network.
package projection

import (
	"time"

	"market-chat/domain/chat"
	"market-chat/store"
)

// DayGroup is one rendered section of a transcript.
type DayGroup struct {
	Day      time.Time
	Label    string
	Messages []chat.Message
}

// Transcript projects a store into labeled day groups.
type Transcript struct {
	store *store.Store
	loc   *time.Location

	// now is swappable for deterministic label tests.
	now func() time.Time
}

func NewTranscript(s *store.Store, loc *time.Location) *Transcript {
	if loc == nil {
		loc = time.Local
	}
	return &Transcript{store: s, loc: loc, now: time.Now}
}

// Days materializes the grouped view with Today/Yesterday labels.
func (t *Transcript) Days() []DayGroup {
	var out []DayGroup
	for day, msgs := range t.store.Groups(t.loc) {
		out = append(out, DayGroup{
			Day:      day,
			Label:    t.label(day),
			Messages: msgs,
		})
	}
	return out
}

func (t *Transcript) label(day time.Time) string {
	today := store.DayOf(t.now(), t.loc)
	switch {
	case day.Equal(today):
		return "Today"
	case day.Equal(today.AddDate(0, 0, -1)):
		return "Yesterday"
	default:
		return day.Format("January 2, 2006")
	}
}
