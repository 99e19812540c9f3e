package domain

import (
	"encoding"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// CardID is the content-derived identity of a card.
type CardID string

// Result is the outcome of a submitted card.
type Result int

const (
	Neutral Result = iota
	Correct
	Incorrect
)

var (
	resultNames  = [...]string{Neutral: "neutral", Correct: "correct", Incorrect: "incorrect"}
	resultByName = map[string]Result{
		"neutral":   Neutral,
		"correct":   Correct,
		"incorrect": Incorrect,
	}
)

var (
	_ fmt.Stringer             = Result(0)
	_ encoding.TextMarshaler   = Result(0)
	_ encoding.TextUnmarshaler = (*Result)(nil)
)

func (r Result) String() string {
	if r.IsValid() {
		return resultNames[r]
	}
	return fmt.Sprintf("Result(%d)", int(r))
}

// IsValid reports whether r is one of the three known results.
func (r Result) IsValid() bool {
	return r >= Neutral && r <= Incorrect
}

// MarshalText implements encoding.TextMarshaler. Unknown values encode as neutral.
func (r Result) MarshalText() ([]byte, error) {
	if !r.IsValid() {
		return []byte(resultNames[Neutral]), nil
	}
	return []byte(resultNames[r]), nil
}

// UnmarshalText never fails: unrecognized tokens decode as Neutral.
func (r *Result) UnmarshalText(text []byte) error {
	*r = ParseResult(string(text))
	return nil
}

// ParseResult maps a stored token to a Result, defaulting to Neutral.
func ParseResult(raw string) Result {
	if v, ok := resultByName[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return v
	}
	return Neutral
}

// CardProgress is the Leitner state of one card for one user.
type CardProgress struct {
	Box            int        `json:"box"`
	Attempts       int        `json:"attempts"`
	LastResult     Result     `json:"lastResult"`
	LastReviewedAt *time.Time `json:"lastReviewedAt"`
}

// UnmarshalJSON decodes persisted progress leniently. Values that cannot be
// interpreted are left at zero so normalization can repair them.
func (p *CardProgress) UnmarshalJSON(data []byte) error {
	*p = CardProgress{}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}

	if box, ok := lenientInt(fields["box"]); ok {
		p.Box = box
	} else if box, ok := lenientInt(fields["boxCanonical"]); ok {
		p.Box = box
	}
	if attempts, ok := lenientInt(fields["attempts"]); ok {
		p.Attempts = attempts
	}

	var result string
	if raw, ok := fields["lastResult"]; ok && json.Unmarshal(raw, &result) == nil {
		p.LastResult = ParseResult(result)
	}

	var reviewed string
	if raw, ok := fields["lastReviewedAt"]; ok && json.Unmarshal(raw, &reviewed) == nil {
		if ts, err := time.Parse(time.RFC3339Nano, reviewed); err == nil {
			p.LastReviewedAt = &ts
		}
	}
	return nil
}

func lenientInt(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		if f, err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
			return 0, false
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	// saturate before converting; out-of-range float to int is undefined
	f = math.Max(math.MinInt32, math.Min(f, math.MaxInt32))
	return int(f), true
}

// User is a local reviewer.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserState is the durable record of one user's progress.
type UserState struct {
	CardStates     map[CardID]CardProgress `json:"cardStates"`
	LastLoadedAt   *time.Time              `json:"lastLoadedAt"`
	ReviewedPerDay map[string]int          `json:"reviewedPerDay,omitempty"`
}

// NewUserState returns an empty state with initialized maps.
func NewUserState() UserState {
	return UserState{
		CardStates:     make(map[CardID]CardProgress),
		ReviewedPerDay: make(map[string]int),
	}
}

// UnmarshalJSON tolerates missing or malformed sections.
func (s *UserState) UnmarshalJSON(data []byte) error {
	*s = NewUserState()

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}

	var states map[CardID]json.RawMessage
	if raw, ok := fields["cardStates"]; ok && json.Unmarshal(raw, &states) == nil {
		for id, rawProgress := range states {
			var p CardProgress
			_ = p.UnmarshalJSON(rawProgress)
			s.CardStates[id] = p
		}
	}

	var loaded string
	if raw, ok := fields["lastLoadedAt"]; ok && json.Unmarshal(raw, &loaded) == nil {
		if ts, err := time.Parse(time.RFC3339Nano, loaded); err == nil {
			s.LastLoadedAt = &ts
		}
	}

	var perDay map[string]json.RawMessage
	if raw, ok := fields["reviewedPerDay"]; ok && json.Unmarshal(raw, &perDay) == nil {
		for day, rawCount := range perDay {
			if n, ok := lenientInt(rawCount); ok && n > 0 {
				s.ReviewedPerDay[day] = n
			}
		}
	}
	return nil
}

// Clone returns a deep copy so callers can hand state to a store without sharing maps.
func (s UserState) Clone() UserState {
	out := NewUserState()
	for id, p := range s.CardStates {
		out.CardStates[id] = p
	}
	for day, n := range s.ReviewedPerDay {
		out.ReviewedPerDay[day] = n
	}
	if s.LastLoadedAt != nil {
		ts := *s.LastLoadedAt
		out.LastLoadedAt = &ts
	}
	return out
}
