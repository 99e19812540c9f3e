package app

import (
	"math/rand"
	"strings"

	"notecard-review-service/internal/domain"
	"notecard-review-service/internal/leitner"
	"notecard-review-service/internal/parser"
)

// Order decides how a session arranges its cards.
type Order string

const (
	OrderInOrder    Order = "in-order"
	OrderRandom     Order = "random"
	OrderRepetition Order = "repetition"
)

// ParseOrder maps a setting value to an Order, defaulting to in-order.
func ParseOrder(raw string) Order {
	switch Order(strings.ToLower(strings.TrimSpace(raw))) {
	case OrderRandom:
		return OrderRandom
	case OrderRepetition:
		return OrderRepetition
	}
	return OrderInOrder
}

// Strength tunes how strongly repetition order favors low boxes.
type Strength string

const (
	StrengthWeak   Strength = "weak"
	StrengthMedium Strength = "medium"
	StrengthStrong Strength = "strong"
)

// ParseStrength maps a setting value to a Strength, defaulting to medium.
func ParseStrength(raw string) Strength {
	switch Strength(strings.ToLower(strings.TrimSpace(raw))) {
	case StrengthWeak:
		return StrengthWeak
	case StrengthStrong:
		return StrengthStrong
	}
	return StrengthMedium
}

// repetitionWeights[s][b-1] is the draw weight of a card in box b. Every row
// is non-increasing so a lower box is never drawn less eagerly.
var repetitionWeights = map[Strength][leitner.MaxBox]int{
	StrengthWeak:   {6, 5, 4, 3, 2, 2, 1, 1},
	StrengthMedium: {8, 5, 3, 2, 1, 1, 1, 1},
	StrengthStrong: {12, 6, 3, 2, 1, 1, 1, 1},
}

// Weight returns the draw weight for a card in the given effective box.
func Weight(strength Strength, box int) int {
	row, ok := repetitionWeights[strength]
	if !ok {
		row = repetitionWeights[StrengthMedium]
	}
	if box < 1 || box > len(row) {
		return 1
	}
	return max(1, row[box-1])
}

// Mode filters a scan down to one exercise type.
type Mode string

const (
	ModeAll            Mode = "all"
	ModeQA             Mode = "qa"
	ModeMultipleChoice Mode = "multiple-choice"
	ModeMix            Mode = "mix"
	ModeFillBlank      Mode = "fill-blank"
	ModeAssignment     Mode = "assignment"
	ModeTrueFalse      Mode = "true-false"
)

// ParseMode maps a setting value to a Mode. The legacy "yes-no" value reads
// as true-false; unknown values mean all.
func ParseMode(raw string) Mode {
	m := Mode(strings.ToLower(strings.TrimSpace(raw)))
	switch m {
	case "yes-no":
		return ModeTrueFalse
	case ModeQA, ModeMultipleChoice, ModeMix, ModeFillBlank, ModeAssignment, ModeTrueFalse:
		return m
	}
	return ModeAll
}

// Matches reports whether a card belongs to the mode. Mixed cards only match
// ModeMix and ModeAll.
func (m Mode) Matches(card domain.Card) bool {
	if m == ModeAll || m == "" {
		return true
	}
	mixed := parser.IsMixed(card)
	if m == ModeMix {
		return mixed
	}
	if mixed {
		return false
	}
	types := parser.DetectTypes(card)
	return len(types) == 1 && string(types[0]) == string(m)
}

type entry struct {
	card     domain.Card
	id       domain.CardID
	progress domain.CardProgress
}

func shuffle(entries []entry, rnd *rand.Rand) []entry {
	out := append([]entry(nil), entries...)
	rnd.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// repetitionCandidate reports whether a card can still move in the box
// system: mastered cards and multiple choice without a solution cannot.
func repetitionCandidate(e entry, boxCount int) bool {
	if mc, ok := e.card.(domain.MultipleChoice); ok && !mc.HasSolution() {
		return false
	}
	return !leitner.IsMastered(e.progress, boxCount)
}

// weightedOrder draws entries without replacement, each draw proportional to
// the weight of the entry's effective box.
func weightedOrder(entries []entry, boxCount int, strength Strength, rnd *rand.Rand) []entry {
	type candidate struct {
		entry  entry
		weight int
	}
	candidates := make([]candidate, 0, len(entries))
	for _, e := range entries {
		if !repetitionCandidate(e, boxCount) {
			continue
		}
		box := leitner.EffectiveBox(e.progress, boxCount)
		candidates = append(candidates, candidate{entry: e, weight: Weight(strength, box)})
	}

	ordered := make([]entry, 0, len(candidates))
	for len(candidates) > 0 {
		total := 0
		for _, c := range candidates {
			total += c.weight
		}
		threshold := rnd.Intn(total)
		picked := len(candidates) - 1
		for i, c := range candidates {
			threshold -= c.weight
			if threshold < 0 {
				picked = i
				break
			}
		}
		ordered = append(ordered, candidates[picked].entry)
		candidates = append(candidates[:picked], candidates[picked+1:]...)
	}
	return ordered
}
