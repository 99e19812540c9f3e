// Package parser turns note text into flashcards.
//
// A card is a block opened by a line reading "#card" and closed by a line
// reading "#". The first non-empty line is the question. Lines such as
// "a) text" are options and "-a" marks a correct option; without options the
// block is read as free text ("Answer:" split), true/false statements
// ("... True/False?" followed by "-true"/"-false") or a cloze text with
// %%typed%% and `dragged` blanks. Blocks that are unterminated or lack the
// content their kind needs are skipped.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"notecard-review-service/internal/domain"
)

const (
	startMarker = "#card"
	endMarker   = "#"
)

var (
	optionPattern     = regexp.MustCompile(`^([A-Za-z])\)\s+(.*)$`)
	markerPattern     = regexp.MustCompile(`^-([A-Za-z])$`)
	boolMarkerPattern = regexp.MustCompile(`(?i)^-(true|false|wahr|falsch)$`)
	splitPattern      = regexp.MustCompile(`(?i)^(answer|antwort):`)
	statementSuffix   = regexp.MustCompile(`(?i)\s*(true/false|wahr/falsch)\?$`)
)

// Parse returns the cards found in text in document order. It never fails;
// malformed blocks contribute nothing.
func Parse(text string) []domain.Card {
	lines := normalizeLines(text)
	cards := make([]domain.Card, 0)

	for i := 0; i < len(lines); {
		if strings.TrimSpace(lines[i]) != startMarker {
			i++
			continue
		}
		b, next, closed := readBlock(lines, i+1)
		i = next
		if !closed {
			continue
		}
		if card, ok := b.build(); ok {
			cards = append(cards, card)
		}
	}
	return cards
}

func normalizeLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

type block struct {
	question    string
	options     []domain.Option
	correctKeys []string
	body        []string

	items   []domain.TrueFalseItem
	pending string
	hasPend bool

	split    bool
	front    []string
	backHead string
	back     []string
}

// readBlock consumes lines after a start marker. It returns the index to
// resume scanning from and whether an end marker closed the block. A nested
// start marker aborts the block without consuming the marker.
func readBlock(lines []string, i int) (*block, int, bool) {
	b := &block{}

	for ; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == endMarker {
			return b, i + 1, true
		}
		if trimmed == startMarker {
			return b, i, false
		}
		if trimmed == "" && b.question == "" {
			continue
		}
		if b.question == "" {
			b.question = trimmed
			b.observeStatement(trimmed)
			continue
		}
		b.add(lines[i], trimmed)
	}
	return b, i, false
}

func (b *block) add(raw, trimmed string) {
	if b.split {
		b.back = append(b.back, raw)
		return
	}
	if m := optionPattern.FindStringSubmatch(trimmed); m != nil {
		if text := strings.TrimSpace(m[2]); text != "" {
			b.options = append(b.options, domain.Option{Key: strings.ToLower(m[1]), Text: text})
		}
		return
	}
	if m := markerPattern.FindStringSubmatch(trimmed); m != nil {
		key := strings.ToLower(m[1])
		for _, existing := range b.correctKeys {
			if existing == key {
				return
			}
		}
		b.correctKeys = append(b.correctKeys, key)
		return
	}
	if m := boolMarkerPattern.FindStringSubmatch(trimmed); m != nil {
		if b.hasPend {
			b.items = append(b.items, domain.TrueFalseItem{
				ID:        "item-" + strconv.Itoa(len(b.items)+1),
				Statement: b.pending,
				Correct:   boolToken(m[1]),
			})
			b.hasPend = false
		}
		return
	}
	if loc := splitPattern.FindStringIndex(trimmed); loc != nil {
		b.split = true
		b.front = append([]string(nil), b.body...)
		b.backHead = trimmed[loc[1]:]
		return
	}
	b.body = append(b.body, raw)
	b.observeStatement(trimmed)
}

func (b *block) observeStatement(trimmed string) {
	loc := statementSuffix.FindStringIndex(trimmed)
	if loc == nil {
		return
	}
	b.pending = strings.TrimSpace(trimmed[:loc[0]])
	b.hasPend = b.pending != ""
}

func boolToken(raw string) domain.BoolToken {
	switch strings.ToLower(raw) {
	case "true", "wahr":
		return domain.True
	}
	return domain.False
}

func (b *block) build() (domain.Card, bool) {
	if b.question == "" {
		return nil, false
	}
	if len(b.options) > 0 {
		return domain.MultipleChoice{
			Question:    b.question,
			Options:     b.options,
			CorrectKeys: nonNil(b.correctKeys),
		}, true
	}
	if b.split {
		return b.buildFreeText()
	}
	if len(b.items) > 0 {
		return domain.TrueFalse{Question: b.question, Items: b.items}, true
	}
	return b.buildCloze()
}

func (b *block) buildFreeText() (domain.Card, bool) {
	backLines := append([]string{b.backHead}, b.back...)
	back := strings.TrimSpace(strings.Join(backLines, "\n"))
	if back == "" {
		return nil, false
	}
	frontLines := append([]string{b.question}, b.front...)
	return domain.FreeText{
		Front: strings.TrimSpace(strings.Join(frontLines, "\n")),
		Back:  back,
	}, true
}

func (b *block) buildCloze() (domain.Card, bool) {
	if segments, tokens := splitCloze(strings.Join(b.body, "\n")); hasBlank(segments) {
		return domain.Cloze{Question: b.question, Segments: segments, DragTokens: tokens}, true
	}
	// A single-line card may carry its blanks in the question line itself.
	if segments, tokens := splitCloze(b.question); hasBlank(segments) {
		return domain.Cloze{Segments: segments, DragTokens: tokens}, true
	}
	return nil, false
}

func hasBlank(segments []domain.Segment) bool {
	for _, seg := range segments {
		if seg.Type == domain.SegmentBlank {
			return true
		}
	}
	return false
}

func nonNil(keys []string) []string {
	if keys == nil {
		return []string{}
	}
	return keys
}
