// Package evaluator decides whether a reviewer's response to a card is
// complete and whether it is correct. All functions are pure.
package evaluator

import (
	"math"
	"strings"

	"notecard-review-service/internal/domain"
)

// Response is the in-progress answer to one card. Only the fields relevant to
// the card's kind are read.
type Response struct {
	// Selected holds multiple-choice option keys.
	Selected []string `json:"selected,omitempty"`
	// TrueFalse maps item ids to the chosen token.
	TrueFalse map[string]domain.BoolToken `json:"trueFalse,omitempty"`
	// Blanks maps blank ids to typed text (input blanks) or a token id (drag blanks).
	Blanks map[string]string `json:"blanks,omitempty"`
	// Text, Revealed and SelfGrade drive free-text cards.
	Text      string        `json:"text,omitempty"`
	Revealed  bool          `json:"revealed,omitempty"`
	SelfGrade domain.Result `json:"selfGrade"`
}

// Clone copies the response so callers never share maps.
func (r Response) Clone() Response {
	out := r
	out.Selected = append([]string(nil), r.Selected...)
	if r.TrueFalse != nil {
		out.TrueFalse = make(map[string]domain.BoolToken, len(r.TrueFalse))
		for k, v := range r.TrueFalse {
			out.TrueFalse[k] = v
		}
	}
	if r.Blanks != nil {
		out.Blanks = make(map[string]string, len(r.Blanks))
		for k, v := range r.Blanks {
			out.Blanks[k] = v
		}
	}
	return out
}

// Match compares two answers after trimming and lower-casing both sides.
func Match(given, solution string) bool {
	return strings.ToLower(strings.TrimSpace(given)) == strings.ToLower(strings.TrimSpace(solution))
}

// IsMultiSelect reports whether a multiple-choice card expects several keys.
func IsMultiSelect(card domain.MultipleChoice) bool {
	return len(card.CorrectKeys) > 1
}

// IsComplete reports whether resp is ready to be submitted for card.
func IsComplete(card domain.Card, resp Response) bool {
	switch c := card.(type) {
	case domain.MultipleChoice:
		return len(resp.Selected) > 0
	case domain.TrueFalse:
		if len(c.Items) == 0 {
			return false
		}
		for _, item := range c.Items {
			if !validToken(resp.TrueFalse[item.ID]) {
				return false
			}
		}
		return true
	case domain.Cloze:
		blanks := c.Blanks()
		if len(blanks) == 0 {
			return false
		}
		for _, blank := range blanks {
			if !blankFilled(c, blank, resp.Blanks[blank.BlankID]) {
				return false
			}
		}
		return true
	case domain.FreeText:
		return resp.Revealed && resp.SelfGrade != domain.Neutral
	}
	return false
}

// IsCorrect reports whether resp fully matches the card's solution. A
// multiple-choice card without correct keys is never correct; use Evaluate
// to tell that case apart from a wrong answer.
func IsCorrect(card domain.Card, resp Response) bool {
	switch c := card.(type) {
	case domain.MultipleChoice:
		if !c.HasSolution() {
			return false
		}
		return sameKeys(resp.Selected, c.CorrectKeys)
	case domain.TrueFalse:
		if len(c.Items) == 0 {
			return false
		}
		for _, item := range c.Items {
			if resp.TrueFalse[item.ID] != item.Correct {
				return false
			}
		}
		return true
	case domain.Cloze:
		blanks := c.Blanks()
		if len(blanks) == 0 {
			return false
		}
		for _, blank := range blanks {
			if !Match(resolveBlank(c, blank, resp.Blanks[blank.BlankID]), blank.Solution) {
				return false
			}
		}
		return true
	case domain.FreeText:
		return resp.SelfGrade == domain.Correct
	}
	return false
}

// Evaluate classifies a response. Cards that cannot be graded automatically
// (no defined solution, ungraded free text) are Neutral.
func Evaluate(card domain.Card, resp Response) domain.Result {
	switch c := card.(type) {
	case domain.MultipleChoice:
		if !c.HasSolution() {
			return domain.Neutral
		}
	case domain.FreeText:
		if resp.SelfGrade == domain.Correct || resp.SelfGrade == domain.Incorrect {
			return resp.SelfGrade
		}
		return domain.Neutral
	}
	if IsCorrect(card, resp) {
		return domain.Correct
	}
	return domain.Incorrect
}

func validToken(tok domain.BoolToken) bool {
	return tok == domain.True || tok == domain.False
}

func blankFilled(c domain.Cloze, blank domain.Segment, value string) bool {
	if blank.BlankKind == domain.BlankDrag {
		_, ok := c.Token(value)
		return ok
	}
	return strings.TrimSpace(value) != ""
}

// resolveBlank returns the text a blank currently shows: typed text for input
// blanks, the referenced token's value for drag blanks.
func resolveBlank(c domain.Cloze, blank domain.Segment, value string) string {
	if blank.BlankKind == domain.BlankDrag {
		tok, ok := c.Token(value)
		if !ok {
			return ""
		}
		return tok.Value
	}
	return value
}

func sameKeys(selected, correct []string) bool {
	want := make(map[string]struct{}, len(correct))
	for _, k := range correct {
		want[k] = struct{}{}
	}
	got := make(map[string]struct{}, len(selected))
	for _, k := range selected {
		got[k] = struct{}{}
	}
	if len(got) != len(want) {
		return false
	}
	for k := range got {
		if _, ok := want[k]; !ok {
			return false
		}
	}
	return true
}

// Tally is a score over submitted results. Neutral results are not counted.
type Tally struct {
	Correct   int `json:"correct"`
	Incorrect int `json:"incorrect"`
	Percent   int `json:"percent"`
}

// Score counts correct and incorrect results and the rounded correct share.
func Score(results []domain.Result) Tally {
	var t Tally
	for _, r := range results {
		switch r {
		case domain.Correct:
			t.Correct++
		case domain.Incorrect:
			t.Incorrect++
		}
	}
	if total := t.Correct + t.Incorrect; total > 0 {
		t.Percent = int(math.Round(float64(t.Correct) / float64(total) * 100))
	}
	return t
}
