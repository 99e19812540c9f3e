package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"notecard-review-service/internal/domain"
)

func mcCard(correct ...string) domain.MultipleChoice {
	return domain.MultipleChoice{
		Question:    "Q?",
		Options:     []domain.Option{{Key: "a", Text: "X"}, {Key: "b", Text: "Y"}, {Key: "c", Text: "Z"}},
		CorrectKeys: correct,
	}
}

func TestMultipleChoice(t *testing.T) {
	card := mcCard("b")

	assert.False(t, IsComplete(card, Response{}))
	assert.True(t, IsComplete(card, Response{Selected: []string{"a"}}))
	assert.False(t, IsMultiSelect(card))

	assert.Equal(t, domain.Incorrect, Evaluate(card, Response{Selected: []string{"a"}}))
	assert.Equal(t, domain.Correct, Evaluate(card, Response{Selected: []string{"b"}}))
	assert.Equal(t, domain.Incorrect, Evaluate(card, Response{Selected: []string{"a", "b"}}))
}

func TestMultipleChoiceSetEquality(t *testing.T) {
	card := mcCard("a", "c")

	assert.True(t, IsMultiSelect(card))
	assert.True(t, IsCorrect(card, Response{Selected: []string{"c", "a"}}))
	assert.True(t, IsCorrect(card, Response{Selected: []string{"a", "c", "a"}}))
	assert.False(t, IsCorrect(card, Response{Selected: []string{"a"}}))
	assert.False(t, IsCorrect(card, Response{Selected: []string{"a", "b", "c"}}))
}

func TestMultipleChoiceWithoutSolutionIsNeutral(t *testing.T) {
	card := mcCard()

	for _, selected := range [][]string{{"a"}, {"b"}, {"a", "b", "c"}} {
		resp := Response{Selected: selected}
		assert.False(t, IsCorrect(card, resp))
		assert.Equal(t, domain.Neutral, Evaluate(card, resp))
	}
}

func TestTrueFalse(t *testing.T) {
	card := domain.TrueFalse{Items: []domain.TrueFalseItem{
		{ID: "item-1", Statement: "Sky is blue", Correct: domain.True},
		{ID: "item-2", Statement: "Fish fly", Correct: domain.False},
	}}

	partial := Response{TrueFalse: map[string]domain.BoolToken{"item-1": domain.True}}
	assert.False(t, IsComplete(card, partial))

	right := Response{TrueFalse: map[string]domain.BoolToken{"item-1": domain.True, "item-2": domain.False}}
	assert.True(t, IsComplete(card, right))
	assert.Equal(t, domain.Correct, Evaluate(card, right))

	wrong := Response{TrueFalse: map[string]domain.BoolToken{"item-1": domain.True, "item-2": domain.True}}
	assert.Equal(t, domain.Incorrect, Evaluate(card, wrong))

	bogus := Response{TrueFalse: map[string]domain.BoolToken{"item-1": "maybe", "item-2": domain.False}}
	assert.False(t, IsComplete(card, bogus))
}

func TestClozeInput(t *testing.T) {
	card := domain.Cloze{Segments: []domain.Segment{
		domain.TextSegment("Fill "),
		domain.BlankSegment("blank-1", domain.BlankInput, "paris"),
		domain.TextSegment("."),
	}}

	assert.False(t, IsComplete(card, Response{Blanks: map[string]string{"blank-1": "   "}}))

	resp := Response{Blanks: map[string]string{"blank-1": " Paris "}}
	assert.True(t, IsComplete(card, resp))
	assert.Equal(t, domain.Correct, Evaluate(card, resp))

	assert.Equal(t, domain.Incorrect, Evaluate(card, Response{Blanks: map[string]string{"blank-1": "Pari"}}))
}

func TestClozeDrag(t *testing.T) {
	card := domain.Cloze{
		Segments: []domain.Segment{
			domain.BlankSegment("blank-1", domain.BlankDrag, "Seine"),
			domain.TextSegment(" flows through "),
			domain.BlankSegment("blank-2", domain.BlankDrag, "Rhine"),
		},
		DragTokens: []domain.DragToken{{ID: "token-1", Value: "Seine"}, {ID: "token-2", Value: "Loire"}},
	}

	notToken := Response{Blanks: map[string]string{"blank-1": "Seine", "blank-2": "token-2"}}
	assert.False(t, IsComplete(card, notToken), "drag blanks must reference a token id")

	resp := Response{Blanks: map[string]string{"blank-1": "token-1", "blank-2": "token-2"}}
	assert.True(t, IsComplete(card, resp))
	assert.Equal(t, domain.Incorrect, Evaluate(card, resp), "solution without a matching token is unreachable")
}

func TestFreeText(t *testing.T) {
	card := domain.FreeText{Front: "What is a join?", Back: "Combines rows"}

	assert.False(t, IsComplete(card, Response{Text: "rows"}))
	assert.False(t, IsComplete(card, Response{Text: "rows", Revealed: true}))
	assert.Equal(t, domain.Neutral, Evaluate(card, Response{Revealed: true}))

	graded := Response{Revealed: true, SelfGrade: domain.Correct}
	assert.True(t, IsComplete(card, graded))
	assert.Equal(t, domain.Correct, Evaluate(card, graded))
	assert.Equal(t, domain.Incorrect, Evaluate(card, Response{Revealed: true, SelfGrade: domain.Incorrect}))
}

func TestMatch(t *testing.T) {
	assert.True(t, Match(" Atomic Values ", "atomic values"))
	assert.True(t, Match("ÄPFEL", "äpfel"))
	assert.False(t, Match("Atomic", "atom"))
}

func TestScore(t *testing.T) {
	tally := Score([]domain.Result{domain.Correct, domain.Neutral, domain.Incorrect, domain.Correct, domain.Neutral})

	assert.Equal(t, Tally{Correct: 2, Incorrect: 1, Percent: 67}, tally)
	assert.Equal(t, Tally{}, Score([]domain.Result{domain.Neutral}))
}

func TestResponseClone(t *testing.T) {
	orig := Response{Selected: []string{"a"}, Blanks: map[string]string{"blank-1": "x"}}
	clone := orig.Clone()
	clone.Selected[0] = "b"
	clone.Blanks["blank-1"] = "y"

	assert.Equal(t, "a", orig.Selected[0])
	assert.Equal(t, "x", orig.Blanks["blank-1"])
}
