package app

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notecard-review-service/internal/domain"
	"notecard-review-service/internal/identity"
	"notecard-review-service/internal/parser"
)

var fixedNow = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

const mixedDeck = `#card
Capital of France?
a) Berlin
b) Paris
-b
#
#card
Fill %%paris%%.
#
#card
Decide
The sky is blue True/False?
-true
#
#card
Explain photosynthesis
Answer: Light to sugar.
#
#card
The `+"`sun`"+` rises in the `+"`east`"+`.
#`

func newSession(t *testing.T, text string, existing map[domain.CardID]domain.CardProgress, opts SessionOptions) *Session {
	t.Helper()
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(1))
	}
	return BuildSession("user-1", parser.Parse(text), existing, opts)
}

func TestMultipleChoiceWrongAnswerResetsBox(t *testing.T) {
	cardID := identity.Of(parser.Parse("#card\nQ?\na) X\nb) Y\n-b\n#")[0])
	existing := map[domain.CardID]domain.CardProgress{cardID: {Box: 3, Attempts: 2}}
	s := newSession(t, "#card\nQ?\na) X\nb) Y\n-b\n#", existing, SessionOptions{})

	require.NoError(t, s.Respond(0, SelectOptions{Keys: []string{"a"}}))
	progress, result, err := s.Submit(0, 5, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, domain.Incorrect, result)
	assert.Equal(t, 1, progress.Box)
	assert.Equal(t, 3, progress.Attempts)
	assert.Equal(t, progress, s.Progress()[cardID])
}

func TestClozeAnswerIsCaseInsensitive(t *testing.T) {
	s := newSession(t, "#card\nFill %%paris%%.\n#", nil, SessionOptions{})
	card, err := s.Card(0)
	require.NoError(t, err)
	blank := card.(domain.Cloze).Blanks()[0]

	require.NoError(t, s.Respond(0, FillBlank{BlankID: blank.BlankID, Text: "Paris"}))
	progress, result, err := s.Submit(0, 5, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, domain.Correct, result)
	assert.Equal(t, 2, progress.Box)
}

func TestRoundTripReproducesBoxes(t *testing.T) {
	first := newSession(t, mixedDeck, nil, SessionOptions{})
	require.Equal(t, 5, first.Len())

	answerAll(t, first)
	for i := 0; i < first.Len(); i++ {
		_, _, err := first.Submit(i, 5, fixedNow)
		require.NoError(t, err)
	}
	progress := first.Progress()

	second := newSession(t, mixedDeck, progress, SessionOptions{Order: OrderRandom, Rand: rand.New(rand.NewSource(7))})
	assert.Equal(t, progress, second.Progress())
	for id, p := range second.Progress() {
		assert.Equal(t, 2, p.Box, "card %s", id)
	}
}

// answerAll answers every card of a session built from mixedDeck correctly.
func answerAll(t *testing.T, s *Session) {
	t.Helper()
	for i, card := range s.Cards() {
		switch c := card.(type) {
		case domain.MultipleChoice:
			require.NoError(t, s.Respond(i, SelectOptions{Keys: c.CorrectKeys}))
		case domain.TrueFalse:
			for _, item := range c.Items {
				require.NoError(t, s.Respond(i, ChooseTrueFalse{ItemID: item.ID, Value: item.Correct}))
			}
		case domain.Cloze:
			for _, blank := range c.Blanks() {
				if blank.BlankKind == domain.BlankInput {
					require.NoError(t, s.Respond(i, FillBlank{BlankID: blank.BlankID, Text: blank.Solution}))
					continue
				}
				for _, tok := range c.DragTokens {
					if tok.Value == blank.Solution {
						require.NoError(t, s.Respond(i, PlaceToken{BlankID: blank.BlankID, TokenID: tok.ID}))
					}
				}
			}
		case domain.FreeText:
			require.NoError(t, s.Respond(i, SelfGrade{Grade: domain.Correct}))
		}
	}
}

func TestSubmittedCardRejectsChanges(t *testing.T) {
	s := newSession(t, "#card\nQ?\na) X\nb) Y\n-b\n#", nil, SessionOptions{})

	_, _, err := s.Submit(0, 5, fixedNow)
	assert.ErrorIs(t, err, domain.ErrIncomplete)

	require.NoError(t, s.Respond(0, SelectOptions{Keys: []string{"b"}}))
	_, result, err := s.Submit(0, 5, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, domain.Correct, result)

	assert.ErrorIs(t, s.Respond(0, SelectOptions{Keys: []string{"a"}}), domain.ErrAlreadySubmitted)
	_, _, err = s.Submit(0, 5, fixedNow)
	assert.ErrorIs(t, err, domain.ErrAlreadySubmitted)

	assert.ErrorIs(t, s.Respond(1, Reveal{}), domain.ErrCardIndexOutOfRange)
	assert.ErrorIs(t, s.Respond(-1, Reveal{}), domain.ErrCardIndexOutOfRange)
	_, _, err = s.Submit(3, 5, fixedNow)
	assert.ErrorIs(t, err, domain.ErrCardIndexOutOfRange)
}

func TestNoSolutionMultipleChoiceIsNeutral(t *testing.T) {
	s := newSession(t, "#card\nPick one\na) X\nb) Y\n#", nil, SessionOptions{})

	require.NoError(t, s.Respond(0, SelectOptions{Keys: []string{"a"}}))
	progress, result, err := s.Submit(0, 5, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, domain.Neutral, result)
	assert.Equal(t, 1, progress.Box)
	assert.Equal(t, 1, progress.Attempts)
	assert.Zero(t, s.Tally().Correct+s.Tally().Incorrect)
}

func TestSelectOptions(t *testing.T) {
	single := newSession(t, "#card\nQ?\na) X\nb) Y\n-b\n#", nil, SessionOptions{})
	require.NoError(t, single.Respond(0, SelectOptions{Keys: []string{"a", "b", "b"}}))
	resp, err := single.Response(0)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, resp.Selected)
	assert.ErrorIs(t, single.Respond(0, SelectOptions{Keys: []string{"z"}}), domain.ErrUnknownOption)
	assert.ErrorIs(t, single.Respond(0, FillBlank{BlankID: "blank-1", Text: "x"}), domain.ErrWrongCardKind)

	multi := newSession(t, "#card\nQ?\na) X\nb) Y\nc) Z\n-a\n-c\n#", nil, SessionOptions{})
	require.NoError(t, multi.Respond(0, SelectOptions{Keys: []string{"c", "a", "c"}}))
	resp, err = multi.Response(0)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, resp.Selected)
}

func TestPlaceTokenMovesToken(t *testing.T) {
	s := newSession(t, "#card\nThe `sun` rises in the `east`.\n#", nil, SessionOptions{})
	card, err := s.Card(0)
	require.NoError(t, err)
	cloze := card.(domain.Cloze)
	blanks := cloze.Blanks()
	require.Len(t, blanks, 2)
	require.Len(t, cloze.DragTokens, 2)

	require.NoError(t, s.Respond(0, PlaceToken{BlankID: blanks[0].BlankID, TokenID: "token-2"}))
	require.NoError(t, s.Respond(0, PlaceToken{BlankID: blanks[1].BlankID, TokenID: "token-2"}))
	resp, err := s.Response(0)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{blanks[1].BlankID: "token-2"}, resp.Blanks)

	require.NoError(t, s.Respond(0, PlaceToken{BlankID: blanks[0].BlankID, TokenID: "token-1"}))
	require.NoError(t, s.Respond(0, RemoveToken{BlankID: blanks[1].BlankID}))
	resp, err = s.Response(0)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{blanks[0].BlankID: "token-1"}, resp.Blanks)

	assert.ErrorIs(t, s.Respond(0, PlaceToken{BlankID: blanks[0].BlankID, TokenID: "token-9"}), domain.ErrUnknownToken)
	assert.ErrorIs(t, s.Respond(0, FillBlank{BlankID: blanks[0].BlankID, Text: "sun"}), domain.ErrWrongCardKind)
	assert.ErrorIs(t, s.Respond(0, RemoveToken{BlankID: "blank-9"}), domain.ErrUnknownBlank)
}

func TestFreeTextRevealFreezesText(t *testing.T) {
	s := newSession(t, "#card\nExplain\nAnswer: Because.\n#", nil, SessionOptions{})

	require.NoError(t, s.Respond(0, TypeText{Text: "my guess"}))
	require.NoError(t, s.Respond(0, Reveal{}))
	assert.ErrorIs(t, s.Respond(0, TypeText{Text: "changed"}), domain.ErrTextRevealed)
	assert.ErrorIs(t, s.Respond(0, SelfGrade{Grade: domain.Neutral}), domain.ErrInvalidGrade)

	_, _, err := s.Submit(0, 5, fixedNow)
	assert.ErrorIs(t, err, domain.ErrIncomplete)

	require.NoError(t, s.Respond(0, SelfGrade{Grade: domain.Incorrect}))
	resp, err := s.Response(0)
	require.NoError(t, err)
	assert.Equal(t, "my guess", resp.Text)

	_, result, err := s.Submit(0, 5, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, domain.Incorrect, result)
}

func TestPaging(t *testing.T) {
	s := newSession(t, mixedDeck, nil, SessionOptions{PageSize: 2})
	assert.Equal(t, 3, s.PageCount())
	assert.Equal(t, []int{0, 1}, s.Visible())

	assert.Equal(t, 2, s.GotoPage(10))
	assert.Equal(t, []int{4}, s.Visible())
	assert.Equal(t, 0, s.GotoPage(-10))

	s.GotoPage(2)
	s.SetPageSize(5)
	assert.Equal(t, 0, s.Page())
	assert.Equal(t, []int{0, 1, 2, 3, 4}, s.Visible())

	s.SetPageSize(10)
	assert.Equal(t, 5, s.PageSize())
	s.SetPageSize(4)
	assert.Equal(t, DefaultPageSize, s.PageSize())

	empty := newSession(t, "", nil, SessionOptions{})
	assert.Zero(t, empty.PageCount())
	assert.Zero(t, empty.GotoPage(1))
	assert.Empty(t, empty.Visible())
}

func TestRandomOrderIsAPermutationFixedAtBuild(t *testing.T) {
	inOrder := newSession(t, mixedDeck, nil, SessionOptions{})
	shuffled := newSession(t, mixedDeck, nil, SessionOptions{Order: OrderRandom, Rand: rand.New(rand.NewSource(42))})

	assert.ElementsMatch(t, inOrder.IDs(), shuffled.IDs())
	assert.Equal(t, shuffled.IDs(), shuffled.IDs())
}

func TestRepetitionOrderExcludesMasteredCards(t *testing.T) {
	cards := parser.Parse(mixedDeck)
	ids := identity.All(cards)
	existing := map[domain.CardID]domain.CardProgress{
		ids[0]: {Box: 5, Attempts: 4},
		ids[1]: {Box: 8, Attempts: 9},
	}

	s := BuildSession("user-1", cards, existing, SessionOptions{
		Order:    OrderRepetition,
		BoxCount: 5,
		Rand:     rand.New(rand.NewSource(3)),
	})

	assert.ElementsMatch(t, ids[2:], s.IDs())
}

func TestRepetitionFavorsLowBoxes(t *testing.T) {
	entries := []entry{
		{id: "low", card: domain.FreeText{Front: "a", Back: "b"}, progress: domain.CardProgress{Box: 1}},
		{id: "high", card: domain.FreeText{Front: "c", Back: "d"}, progress: domain.CardProgress{Box: 4}},
	}
	rnd := rand.New(rand.NewSource(11))
	lowFirst := 0
	for i := 0; i < 2000; i++ {
		if weightedOrder(entries, 5, StrengthMedium, rnd)[0].id == "low" {
			lowFirst++
		}
	}
	assert.Greater(t, lowFirst, 1000)

	for _, strength := range []Strength{StrengthWeak, StrengthMedium, StrengthStrong} {
		for box := 1; box < 8; box++ {
			assert.GreaterOrEqual(t, Weight(strength, box), Weight(strength, box+1))
		}
	}
}

func TestModeFilter(t *testing.T) {
	s := newSession(t, mixedDeck, nil, SessionOptions{Mode: ParseMode("yes-no")})
	require.Equal(t, 1, s.Len())
	card, err := s.Card(0)
	require.NoError(t, err)
	assert.Equal(t, domain.KindTrueFalse, card.Kind())

	assert.Equal(t, 5, newSession(t, mixedDeck, nil, SessionOptions{Mode: ParseMode("bogus")}).Len())
}

func TestModeMixSeparatesMixedCloze(t *testing.T) {
	cards := parser.Parse("#card\nBoth\nType %%x%% then drag `y`.\n#\n#card\nTyped\nType %%z%%.\n#")
	require.Len(t, cards, 2)

	assert.True(t, ModeMix.Matches(cards[0]))
	assert.False(t, ModeFillBlank.Matches(cards[0]))
	assert.False(t, ModeMix.Matches(cards[1]))
	assert.True(t, ModeFillBlank.Matches(cards[1]))
	assert.True(t, ModeAll.Matches(cards[0]))
}

func TestReconfigureClampsSessionProgress(t *testing.T) {
	cards := parser.Parse(mixedDeck)
	ids := identity.All(cards)
	s := BuildSession("user-1", cards, map[domain.CardID]domain.CardProgress{ids[0]: {Box: 7}}, SessionOptions{BoxCount: 8})

	s.Reconfigure(3)
	assert.Equal(t, 3, s.Progress()[ids[0]].Box)
}

func TestNormalizePageSize(t *testing.T) {
	for _, n := range PageSizes {
		assert.Equal(t, n, NormalizePageSize(n))
	}
	assert.Equal(t, 5, NormalizePageSize(10))
	assert.Equal(t, DefaultPageSize, NormalizePageSize(0))
	assert.Equal(t, DefaultPageSize, NormalizePageSize(7))
}
