// Package identity derives stable, content-based ids for cards so progress
// survives rescans, reordering and moving cards between files.
package identity

import (
	"encoding/json"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"

	"notecard-review-service/internal/domain"
)

const prefix = "card-"

type optionPayload struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

type itemPayload struct {
	ID        string `json:"id"`
	Statement string `json:"statement"`
	Correct   string `json:"correct"`
}

type segmentPayload struct {
	Type     string `json:"type"`
	Value    string `json:"value,omitempty"`
	ID       string `json:"id,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Solution string `json:"solution,omitempty"`
}

type tokenPayload struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// payload lists the semantic fields of every kind in a fixed order. Fields a
// kind does not use stay empty and are omitted.
type payload struct {
	Kind        string           `json:"kind"`
	Question    string           `json:"question,omitempty"`
	Options     []optionPayload  `json:"options,omitempty"`
	CorrectKeys []string         `json:"correctKeys,omitempty"`
	Items       []itemPayload    `json:"items,omitempty"`
	Segments    []segmentPayload `json:"segments,omitempty"`
	DragTokens  []tokenPayload   `json:"dragTokens,omitempty"`
	Front       string           `json:"front,omitempty"`
	Back        string           `json:"back,omitempty"`
}

// Of returns the identity of a card.
func Of(card domain.Card) domain.CardID {
	raw, err := json.Marshal(canonical(card))
	if err != nil {
		// payload holds only strings and slices of them.
		panic(err)
	}
	h := fnv.New32a()
	_, _ = h.Write(raw)
	return domain.CardID(prefix + strconv.FormatUint(uint64(h.Sum32()), 16))
}

// All returns the identities of cards in order.
func All(cards []domain.Card) []domain.CardID {
	ids := make([]domain.CardID, len(cards))
	for i, c := range cards {
		ids[i] = Of(c)
	}
	return ids
}

func canonical(card domain.Card) payload {
	p := payload{Kind: string(card.Kind())}
	switch c := card.(type) {
	case domain.MultipleChoice:
		p.Question = collapse(c.Question)
		for _, opt := range c.Options {
			p.Options = append(p.Options, optionPayload{Key: opt.Key, Text: collapse(opt.Text)})
		}
		// correct keys are a set; marker order must not change the id
		p.CorrectKeys = append([]string(nil), c.CorrectKeys...)
		sort.Strings(p.CorrectKeys)
	case domain.TrueFalse:
		for _, item := range c.Items {
			p.Items = append(p.Items, itemPayload{
				ID:        item.ID,
				Statement: collapse(item.Statement),
				Correct:   string(item.Correct),
			})
		}
	case domain.Cloze:
		p.Question = collapse(c.Question)
		for _, seg := range c.Segments {
			if seg.Type == domain.SegmentText && collapse(seg.Value) == "" {
				continue
			}
			p.Segments = append(p.Segments, segmentPayload{
				Type:     string(seg.Type),
				Value:    collapse(seg.Value),
				ID:       seg.BlankID,
				Kind:     string(seg.BlankKind),
				Solution: collapse(seg.Solution),
			})
		}
		for _, tok := range c.DragTokens {
			p.DragTokens = append(p.DragTokens, tokenPayload{ID: tok.ID, Value: collapse(tok.Value)})
		}
	case domain.FreeText:
		p.Front = collapse(c.Front)
		p.Back = collapse(c.Back)
	}
	return p
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
