package leitner

import (
	"time"

	"notecard-review-service/internal/domain"
)

// Snapshot summarizes a progress map for one box configuration.
type Snapshot struct {
	DueNow         int   `json:"dueNow"`
	DueToday       int   `json:"dueToday"`
	InQueue        int   `json:"inQueue"`
	CompletedToday int   `json:"completedToday"`
	Histogram      []int `json:"histogram"`
}

// Stats derives the snapshot from progress. Nothing here is stored; callers
// recompute it whenever the map or the box count changes.
//
// CompletedToday and InQueue partition the records by whether they have been
// attempted at least once. Histogram[i] counts records whose effective box is i+1.
func Stats(progress map[domain.CardID]domain.CardProgress, boxCount int) Snapshot {
	boxCount = NormalizeBoxCount(boxCount)
	snap := Snapshot{Histogram: make([]int, boxCount)}
	dueTodayThreshold := min(2, boxCount)

	for _, raw := range progress {
		p := Normalize(raw)
		box := EffectiveBox(p, boxCount)
		if box <= 1 {
			snap.DueNow++
		}
		if box <= dueTodayThreshold {
			snap.DueToday++
		}
		if p.Attempts > 0 {
			snap.CompletedToday++
		} else {
			snap.InQueue++
		}
		snap.Histogram[box-1]++
	}
	return snap
}

// DayKey formats t as a calendar day in loc, e.g. "2026-10-15".
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(time.DateOnly)
}

// RecordReview bumps the per-day review counter of a user state.
func RecordReview(s *domain.UserState, now time.Time, loc *time.Location) {
	if s.ReviewedPerDay == nil {
		s.ReviewedPerDay = make(map[string]int)
	}
	s.ReviewedPerDay[DayKey(now, loc)]++
}
