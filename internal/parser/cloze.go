package parser

import (
	"sort"
	"strconv"
	"strings"

	"notecard-review-service/internal/domain"
)

const (
	inputDelimiter = "%%"
	dragDelimiter  = "`"
)

// splitCloze cuts text into literal and blank segments. Delimiters pair up
// within a single line; an unpaired or empty span stays literal text.
func splitCloze(text string) ([]domain.Segment, []domain.DragToken) {
	var (
		segments []domain.Segment
		tokens   []domain.DragToken
		literal  strings.Builder
		blanks   int
	)

	flush := func() {
		if literal.Len() > 0 {
			segments = append(segments, domain.TextSegment(literal.String()))
			literal.Reset()
		}
	}

	for i := 0; i < len(text); {
		delim := ""
		switch {
		case strings.HasPrefix(text[i:], inputDelimiter):
			delim = inputDelimiter
		case strings.HasPrefix(text[i:], dragDelimiter):
			delim = dragDelimiter
		default:
			literal.WriteByte(text[i])
			i++
			continue
		}

		rest := text[i+len(delim):]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[:nl]
		}
		end := strings.Index(rest, delim)
		if end < 0 {
			literal.WriteString(text[i : i+len(delim)])
			i += len(delim)
			continue
		}

		spanEnd := i + len(delim) + end + len(delim)
		answer := strings.TrimSpace(rest[:end])
		if answer == "" {
			literal.WriteString(text[i:spanEnd])
			i = spanEnd
			continue
		}

		flush()
		blanks++
		blankID := "blank-" + strconv.Itoa(blanks)
		if delim == inputDelimiter {
			segments = append(segments, domain.BlankSegment(blankID, domain.BlankInput, answer))
		} else {
			tokens = append(tokens, domain.DragToken{Value: answer})
			segments = append(segments, domain.BlankSegment(blankID, domain.BlankDrag, answer))
		}
		i = spanEnd
	}
	flush()

	// the token bank is ordered by value so it does not reveal blank order
	sort.SliceStable(tokens, func(i, j int) bool { return tokens[i].Value < tokens[j].Value })
	for i := range tokens {
		tokens[i].ID = "token-" + strconv.Itoa(i+1)
	}
	if tokens == nil {
		tokens = []domain.DragToken{}
	}
	return segments, tokens
}

// ExerciseType is the exercise a card presents to the reviewer.
type ExerciseType string

const (
	TypeQA             ExerciseType = "qa"
	TypeMultipleChoice ExerciseType = "multiple-choice"
	TypeFillBlank      ExerciseType = "fill-blank"
	TypeAssignment     ExerciseType = "assignment"
	TypeTrueFalse      ExerciseType = "true-false"
)

// DetectTypes lists the exercise types present in a card. A cloze mixing
// typed and dragged blanks reports both.
func DetectTypes(c domain.Card) []ExerciseType {
	switch card := c.(type) {
	case domain.MultipleChoice:
		return []ExerciseType{TypeMultipleChoice}
	case domain.TrueFalse:
		return []ExerciseType{TypeTrueFalse}
	case domain.Cloze:
		var types []ExerciseType
		var input, drag bool
		for _, blank := range card.Blanks() {
			switch blank.BlankKind {
			case domain.BlankInput:
				input = true
			case domain.BlankDrag:
				drag = true
			}
		}
		if input {
			types = append(types, TypeFillBlank)
		}
		if drag {
			types = append(types, TypeAssignment)
		}
		return types
	}
	return []ExerciseType{TypeQA}
}

// IsMixed reports whether a card combines more than one exercise type.
func IsMixed(c domain.Card) bool {
	return len(DetectTypes(c)) >= 2
}
