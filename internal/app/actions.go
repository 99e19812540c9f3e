package app

import (
	"fmt"

	"notecard-review-service/internal/domain"
	"notecard-review-service/internal/evaluator"
)

// Action is a partial response to one card. Actions validate themselves
// against the card and mutate only the response they are given.
type Action interface {
	apply(card domain.Card, resp *evaluator.Response) error
}

// SelectOptions replaces the selected keys of a multiple-choice card. Single
// select cards keep only the last key.
type SelectOptions struct {
	Keys []string
}

func (a SelectOptions) apply(card domain.Card, resp *evaluator.Response) error {
	mc, ok := card.(domain.MultipleChoice)
	if !ok {
		return kindError(a, card)
	}
	keys := make([]string, 0, len(a.Keys))
	seen := make(map[string]struct{}, len(a.Keys))
	for _, key := range a.Keys {
		if !mc.HasOption(key) {
			return fmt.Errorf("%w: %q", domain.ErrUnknownOption, key)
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	if !evaluator.IsMultiSelect(mc) && len(keys) > 1 {
		keys = keys[len(keys)-1:]
	}
	resp.Selected = keys
	return nil
}

// ChooseTrueFalse answers one statement of a true/false card.
type ChooseTrueFalse struct {
	ItemID string
	Value  domain.BoolToken
}

func (a ChooseTrueFalse) apply(card domain.Card, resp *evaluator.Response) error {
	tf, ok := card.(domain.TrueFalse)
	if !ok {
		return kindError(a, card)
	}
	if a.Value != domain.True && a.Value != domain.False {
		return fmt.Errorf("%w: value %q", domain.ErrUnknownItem, a.Value)
	}
	for _, item := range tf.Items {
		if item.ID == a.ItemID {
			if resp.TrueFalse == nil {
				resp.TrueFalse = make(map[string]domain.BoolToken)
			}
			resp.TrueFalse[a.ItemID] = a.Value
			return nil
		}
	}
	return fmt.Errorf("%w: %q", domain.ErrUnknownItem, a.ItemID)
}

// FillBlank types text into an input blank.
type FillBlank struct {
	BlankID string
	Text    string
}

func (a FillBlank) apply(card domain.Card, resp *evaluator.Response) error {
	cloze, ok := card.(domain.Cloze)
	if !ok {
		return kindError(a, card)
	}
	if _, err := findBlank(cloze, a.BlankID, domain.BlankInput); err != nil {
		return err
	}
	setBlank(resp, a.BlankID, a.Text)
	return nil
}

// PlaceToken drops a token on a drag blank. A token sits on at most one
// blank, so it is taken off any blank that held it before.
type PlaceToken struct {
	BlankID string
	TokenID string
}

func (a PlaceToken) apply(card domain.Card, resp *evaluator.Response) error {
	cloze, ok := card.(domain.Cloze)
	if !ok {
		return kindError(a, card)
	}
	if _, err := findBlank(cloze, a.BlankID, domain.BlankDrag); err != nil {
		return err
	}
	if _, ok := cloze.Token(a.TokenID); !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownToken, a.TokenID)
	}
	for _, blank := range cloze.Blanks() {
		if blank.BlankKind != domain.BlankDrag || blank.BlankID == a.BlankID {
			continue
		}
		if resp.Blanks[blank.BlankID] == a.TokenID {
			delete(resp.Blanks, blank.BlankID)
		}
	}
	setBlank(resp, a.BlankID, a.TokenID)
	return nil
}

// RemoveToken clears a drag blank.
type RemoveToken struct {
	BlankID string
}

func (a RemoveToken) apply(card domain.Card, resp *evaluator.Response) error {
	cloze, ok := card.(domain.Cloze)
	if !ok {
		return kindError(a, card)
	}
	if _, err := findBlank(cloze, a.BlankID, domain.BlankDrag); err != nil {
		return err
	}
	delete(resp.Blanks, a.BlankID)
	return nil
}

// TypeText edits the reviewer's own answer to a free-text card.
type TypeText struct {
	Text string
}

func (a TypeText) apply(card domain.Card, resp *evaluator.Response) error {
	if _, ok := card.(domain.FreeText); !ok {
		return kindError(a, card)
	}
	if resp.Revealed {
		return domain.ErrTextRevealed
	}
	resp.Text = a.Text
	return nil
}

// Reveal shows the model answer of a free-text card.
type Reveal struct{}

func (a Reveal) apply(card domain.Card, resp *evaluator.Response) error {
	if _, ok := card.(domain.FreeText); !ok {
		return kindError(a, card)
	}
	resp.Revealed = true
	return nil
}

// SelfGrade records the reviewer's own verdict on a free-text card. Grading
// implies the model answer has been seen.
type SelfGrade struct {
	Grade domain.Result
}

func (a SelfGrade) apply(card domain.Card, resp *evaluator.Response) error {
	if _, ok := card.(domain.FreeText); !ok {
		return kindError(a, card)
	}
	if a.Grade != domain.Correct && a.Grade != domain.Incorrect {
		return domain.ErrInvalidGrade
	}
	resp.Revealed = true
	resp.SelfGrade = a.Grade
	return nil
}

func findBlank(cloze domain.Cloze, id string, kind domain.BlankKind) (domain.Segment, error) {
	for _, blank := range cloze.Blanks() {
		if blank.BlankID == id {
			if blank.BlankKind != kind {
				return domain.Segment{}, fmt.Errorf("%w: %q is a %s blank", domain.ErrWrongCardKind, id, blank.BlankKind)
			}
			return blank, nil
		}
	}
	return domain.Segment{}, fmt.Errorf("%w: %q", domain.ErrUnknownBlank, id)
}

func setBlank(resp *evaluator.Response, id, value string) {
	if resp.Blanks == nil {
		resp.Blanks = make(map[string]string)
	}
	resp.Blanks[id] = value
}

func kindError(a Action, card domain.Card) error {
	return fmt.Errorf("%w: %T on %s", domain.ErrWrongCardKind, a, card.Kind())
}
