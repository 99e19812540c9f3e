package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeckKeepsVariantTypes(t *testing.T) {
	deck := Deck{
		MultipleChoice{Question: "Q?", Options: []Option{{Key: "a", Text: "X"}}, CorrectKeys: []string{"a"}},
		TrueFalse{Question: "Check", Items: []TrueFalseItem{{ID: "tf-0", Statement: "Sky is blue", Correct: True}}},
		Cloze{
			Question:   "Fill",
			Segments:   []Segment{TextSegment("Capital: "), BlankSegment("b-0", BlankDrag, "Paris")},
			DragTokens: []DragToken{{ID: "t-0", Value: "Paris"}},
		},
		FreeText{Front: "Define entropy", Back: "Disorder"},
	}

	raw, err := json.Marshal(deck)
	require.NoError(t, err)

	var decoded Deck
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, deck, decoded)
}

func TestUnmarshalCardRejectsUnknownKind(t *testing.T) {
	_, err := UnmarshalCard([]byte(`{"kind":"essay","card":{}}`))
	assert.ErrorContains(t, err, "unknown card kind")

	_, err = UnmarshalCard([]byte(`not json`))
	assert.Error(t, err)
}

func TestCardProgressDecodesLeniently(t *testing.T) {
	var p CardProgress
	require.NoError(t, json.Unmarshal([]byte(`{"box":"3","attempts":2.0,"lastResult":"CORRECT"}`), &p))
	assert.Equal(t, 3, p.Box)
	assert.Equal(t, 2, p.Attempts)
	assert.Equal(t, Correct, p.LastResult)

	require.NoError(t, json.Unmarshal([]byte(`{"box":"many","lastResult":"maybe"}`), &p))
	assert.Equal(t, Neutral, p.LastResult)
}

func TestUserStateCloneIsIndependent(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	state := NewUserState()
	state.CardStates["card-1"] = CardProgress{Box: 2, LastReviewedAt: &now}
	state.ReviewedPerDay["2026-10-15"] = 1

	clone := state.Clone()
	clone.CardStates["card-1"] = CardProgress{Box: 5}
	clone.ReviewedPerDay["2026-10-15"] = 9

	assert.Equal(t, 2, state.CardStates["card-1"].Box)
	assert.Equal(t, 1, state.ReviewedPerDay["2026-10-15"])
}
