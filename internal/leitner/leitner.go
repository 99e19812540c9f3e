// Package leitner implements the box progression of a Leitner system. Boxes
// move with attempts, not with calendar time.
package leitner

import (
	"time"

	"notecard-review-service/internal/domain"
)

const (
	// MaxBox is the largest box any stored progress may hold.
	MaxBox = 8
	// DefaultBoxCount is used when a configured box count is not allowed.
	DefaultBoxCount = 5
)

// AllowedBoxCounts lists the supported system sizes.
var AllowedBoxCounts = []int{3, 5, 8}

// NormalizeBoxCount returns n when it is an allowed box count and the default otherwise.
func NormalizeBoxCount(n int) int {
	for _, allowed := range AllowedBoxCounts {
		if n == allowed {
			return n
		}
	}
	return DefaultBoxCount
}

// New returns the progress of a card seen for the first time.
func New() domain.CardProgress {
	return domain.CardProgress{Box: 1, LastResult: domain.Neutral}
}

// Normalize repairs progress loaded from untrusted storage.
func Normalize(p domain.CardProgress) domain.CardProgress {
	p.Box = clamp(p.Box, 1, MaxBox)
	if p.Attempts < 0 {
		p.Attempts = 0
	}
	if !p.LastResult.IsValid() {
		p.LastResult = domain.Neutral
	}
	return p
}

// NormalizeState repairs every record of a user state in place and makes
// sure its maps are usable.
func NormalizeState(s *domain.UserState) {
	if s.CardStates == nil {
		s.CardStates = make(map[domain.CardID]domain.CardProgress)
	}
	if s.ReviewedPerDay == nil {
		s.ReviewedPerDay = make(map[string]int)
	}
	for id, p := range s.CardStates {
		s.CardStates[id] = Normalize(p)
	}
	for day, n := range s.ReviewedPerDay {
		if n <= 0 {
			delete(s.ReviewedPerDay, day)
		}
	}
}

// EffectiveBox is the stored box seen through the current box count.
func EffectiveBox(p domain.CardProgress, boxCount int) int {
	return clamp(p.Box, 1, boxCount)
}

// IsMastered reports whether a card sits in the last box.
func IsMastered(p domain.CardProgress, boxCount int) bool {
	return EffectiveBox(p, boxCount) == boxCount
}

// Apply moves a card after a submit: correct promotes by one box, incorrect
// sends it back to box 1, neutral keeps it in place.
func Apply(p domain.CardProgress, result domain.Result, boxCount int, now time.Time) domain.CardProgress {
	boxCount = NormalizeBoxCount(boxCount)
	p = Normalize(p)
	box := p.Box
	switch result {
	case domain.Correct:
		box = min(EffectiveBox(p, boxCount)+1, boxCount)
	case domain.Incorrect:
		box = 1
	}
	reviewed := now
	return domain.CardProgress{
		Box:            box,
		Attempts:       p.Attempts + 1,
		LastResult:     result,
		LastReviewedAt: &reviewed,
	}
}

// Reconfigure clamps every stored box of the given states to boxCount.
// Applying it more than once has no further effect.
func Reconfigure(states []*domain.UserState, boxCount int) {
	for _, s := range states {
		if s == nil {
			continue
		}
		for id, p := range s.CardStates {
			if p.Box > boxCount {
				p.Box = boxCount
				s.CardStates[id] = p
			}
		}
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
