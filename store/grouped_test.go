package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStore_Groups_CalendarDayBoundaries(t *testing.T) {
	req := require.New(t)
	s := New("conv-1")
	loc := time.UTC

	day1 := time.Date(2026, 3, 13, 23, 50, 0, 0, loc)
	day2 := time.Date(2026, 3, 14, 0, 5, 0, 0, loc)

	// Fifteen minutes apart but across midnight: two groups. Grouping
	// is calendar-day equality, not elapsed time.
	s.InsertOrMerge(message("m1", day1))
	s.InsertOrMerge(message("m2", day2))
	s.InsertOrMerge(message("m3", day2.Add(8*time.Hour)))

	var days []time.Time
	var sizes []int
	for day, msgs := range s.Groups(loc) {
		days = append(days, day)
		sizes = append(sizes, len(msgs))
	}

	req.Equal([]time.Time{
		time.Date(2026, 3, 13, 0, 0, 0, 0, loc),
		time.Date(2026, 3, 14, 0, 0, 0, 0, loc),
	}, days)
	req.Equal([]int{1, 2}, sizes)
}

func TestStore_Groups_ViewerLocation(t *testing.T) {
	req := require.New(t)
	s := New("conv-1")

	// 23:30 UTC is already the next day at UTC+2.
	loc := time.FixedZone("UTC+2", 2*60*60)
	s.InsertOrMerge(message("m1", time.Date(2026, 3, 13, 23, 30, 0, 0, time.UTC)))

	for day := range s.Groups(loc) {
		req.Equal(time.Date(2026, 3, 14, 0, 0, 0, 0, loc), day)
	}
}

func TestStore_Groups_Restartable(t *testing.T) {
	req := require.New(t)
	s := New("conv-1")
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	s.InsertOrMerge(message("m1", at))

	groups := s.Groups(time.UTC)

	count := func() int {
		n := 0
		for _, msgs := range groups {
			n += len(msgs)
		}
		return n
	}
	req.Equal(1, count())

	// The sequence restarts and reflects mutations between walks.
	s.InsertOrMerge(message("m2", at.Add(time.Minute)))
	req.Equal(2, count())
}

func TestStore_Groups_EarlyBreak(t *testing.T) {
	req := require.New(t)
	s := New("conv-1")
	s.InsertOrMerge(message("m1", time.Date(2026, 3, 13, 10, 0, 0, 0, time.UTC)))
	s.InsertOrMerge(message("m2", time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)))

	walked := 0
	for range s.Groups(time.UTC) {
		walked++
		break
	}
	req.Equal(1, walked)
}
