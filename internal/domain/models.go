package domain

import "strings"

// CardKind names the closed set of card variants.
type CardKind string

const (
	KindMultipleChoice CardKind = "multiple-choice"
	KindTrueFalse      CardKind = "true-false"
	KindCloze          CardKind = "cloze"
	KindFreeText       CardKind = "free-text"
)

// Card is one parsed question unit. The set of implementations is closed:
// MultipleChoice, TrueFalse, Cloze and FreeText.
type Card interface {
	Kind() CardKind
	card()
}

// Option is a single lettered answer of a multiple-choice card.
type Option struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// MultipleChoice has at least one option. An empty CorrectKeys means no
// solution was defined for the card.
type MultipleChoice struct {
	Question    string   `json:"question"`
	Options     []Option `json:"options"`
	CorrectKeys []string `json:"correctKeys"`
}

// BoolToken is the stored answer of a true/false statement.
type BoolToken string

const (
	True  BoolToken = "true"
	False BoolToken = "false"
)

// TrueFalseItem is one statement of a true/false card.
type TrueFalseItem struct {
	ID        string    `json:"id"`
	Statement string    `json:"statement"`
	Correct   BoolToken `json:"correct"`
}

// TrueFalse has at least one item.
type TrueFalse struct {
	Question string          `json:"question"`
	Items    []TrueFalseItem `json:"items"`
}

type SegmentType string

const (
	SegmentText  SegmentType = "text"
	SegmentBlank SegmentType = "blank"
)

type BlankKind string

const (
	BlankInput BlankKind = "input"
	BlankDrag  BlankKind = "drag"
)

// Segment is either literal text (Value) or a blank (BlankID, BlankKind, Solution).
type Segment struct {
	Type      SegmentType `json:"type"`
	Value     string      `json:"value,omitempty"`
	BlankID   string      `json:"id,omitempty"`
	BlankKind BlankKind   `json:"kind,omitempty"`
	Solution  string      `json:"solution,omitempty"`
}

// TextSegment builds a literal segment.
func TextSegment(value string) Segment {
	return Segment{Type: SegmentText, Value: value}
}

// BlankSegment builds a blank segment.
func BlankSegment(id string, kind BlankKind, solution string) Segment {
	return Segment{Type: SegmentBlank, BlankID: id, BlankKind: kind, Solution: solution}
}

// DragToken is a labeled token that can be dropped on a drag blank.
type DragToken struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// Cloze has at least one blank segment.
type Cloze struct {
	Question   string      `json:"question"`
	Segments   []Segment   `json:"segments"`
	DragTokens []DragToken `json:"dragTokens"`
}

// Blanks returns the blank segments in order.
func (c Cloze) Blanks() []Segment {
	blanks := make([]Segment, 0, len(c.Segments))
	for _, seg := range c.Segments {
		if seg.Type == SegmentBlank {
			blanks = append(blanks, seg)
		}
	}
	return blanks
}

// Token looks up a drag token by id.
func (c Cloze) Token(id string) (DragToken, bool) {
	for _, tok := range c.DragTokens {
		if tok.ID == id {
			return tok, true
		}
	}
	return DragToken{}, false
}

// FreeText is graded by the reviewer after revealing Back.
type FreeText struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

func (MultipleChoice) Kind() CardKind { return KindMultipleChoice }
func (TrueFalse) Kind() CardKind      { return KindTrueFalse }
func (Cloze) Kind() CardKind          { return KindCloze }
func (FreeText) Kind() CardKind       { return KindFreeText }

func (MultipleChoice) card() {}
func (TrueFalse) card()      {}
func (Cloze) card()          {}
func (FreeText) card()       {}

// HasSolution reports whether the card defines correct keys.
func (m MultipleChoice) HasSolution() bool {
	return len(m.CorrectKeys) > 0
}

// HasOption reports whether key names one of the card's options.
func (m MultipleChoice) HasOption(key string) bool {
	for _, opt := range m.Options {
		if opt.Key == key {
			return true
		}
	}
	return false
}

// Prompt returns the text a reviewer sees first for any card kind.
func Prompt(c Card) string {
	switch card := c.(type) {
	case MultipleChoice:
		return card.Question
	case TrueFalse:
		return card.Question
	case Cloze:
		if card.Question != "" {
			return card.Question
		}
		var b strings.Builder
		for _, seg := range card.Segments {
			if seg.Type == SegmentBlank {
				b.WriteString("___")
				continue
			}
			b.WriteString(seg.Value)
		}
		return strings.TrimSpace(b.String())
	case FreeText:
		return card.Front
	}
	return ""
}
