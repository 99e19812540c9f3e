package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notecard-review-service/internal/domain"
)

func TestParseMultipleChoice(t *testing.T) {
	cards := Parse("#card\nQ?\na) X\nb) Y\n-b\n#")

	require.Len(t, cards, 1)
	mc, ok := cards[0].(domain.MultipleChoice)
	require.True(t, ok, "expected multiple choice, got %T", cards[0])
	assert.Equal(t, "Q?", mc.Question)
	assert.Equal(t, []domain.Option{{Key: "a", Text: "X"}, {Key: "b", Text: "Y"}}, mc.Options)
	assert.Equal(t, []string{"b"}, mc.CorrectKeys)
}

func TestParseMultipleCardsIgnoresSurroundingText(t *testing.T) {
	doc := `Intro text.
- Not a marker.

#card
First question?
a) One
b) Two
-b
#

Some notes between.

#card
Second question?
A) Alpha
B) Beta
#
More text.`

	cards := Parse(doc)

	require.Len(t, cards, 2)
	first := cards[0].(domain.MultipleChoice)
	second := cards[1].(domain.MultipleChoice)
	assert.Equal(t, "First question?", first.Question)
	assert.Equal(t, "Second question?", second.Question)
	assert.Equal(t, "a", second.Options[0].Key, "keys are stored lower-case")
	assert.Empty(t, second.CorrectKeys)
	assert.NotNil(t, second.CorrectKeys)
}

func TestParseCorrectMarkersDeduplicated(t *testing.T) {
	cards := Parse("#card\nChoose two.\na) One\nb) Two\nc) Three\n\n-c\n-A\n-c\n#")

	require.Len(t, cards, 1)
	assert.Equal(t, []string{"c", "a"}, cards[0].(domain.MultipleChoice).CorrectKeys)
}

func TestParseDropsEmptyOptionText(t *testing.T) {
	cards := Parse("#card\nQ?\na)   \nb) Real\n#")

	require.Len(t, cards, 1)
	assert.Equal(t, []domain.Option{{Key: "b", Text: "Real"}}, cards[0].(domain.MultipleChoice).Options)
}

func TestParseSkipsUnterminatedBlocks(t *testing.T) {
	tests := map[string]string{
		"end of input":      "#card\nQuestion without end?\na) Option",
		"nested start":      "#card\nLost?\na) Gone\n#card\nKept?\na) Yes\n#",
		"empty block":       "#card\n\n   \n#",
		"only start":        "#card",
		"marker before end": "#card\n#card\n#card\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			cards := Parse(doc)
			for _, c := range cards {
				assert.NotEqual(t, "Lost?", domain.Prompt(c))
			}
			if name == "nested start" {
				require.Len(t, cards, 1)
				assert.Equal(t, "Kept?", cards[0].(domain.MultipleChoice).Question)
				return
			}
			assert.Empty(t, cards)
		})
	}
}

func TestParseCloze(t *testing.T) {
	doc := "#card\nDefine foreign key.\nA foreign key is an %% attribute or attribute set %% that references a %%primary key%% in another %% table %%.\n#"

	cards := Parse(doc)

	require.Len(t, cards, 1)
	cloze := cards[0].(domain.Cloze)
	assert.Equal(t, "Define foreign key.", cloze.Question)
	assert.Equal(t, []domain.Segment{
		domain.TextSegment("A foreign key is an "),
		domain.BlankSegment("blank-1", domain.BlankInput, "attribute or attribute set"),
		domain.TextSegment(" that references a "),
		domain.BlankSegment("blank-2", domain.BlankInput, "primary key"),
		domain.TextSegment(" in another "),
		domain.BlankSegment("blank-3", domain.BlankInput, "table"),
		domain.TextSegment("."),
	}, cloze.Segments)
	assert.Empty(t, cloze.DragTokens)
}

func TestParseClozeInQuestionLine(t *testing.T) {
	cards := Parse("#card\nFill %%paris%%.\n#")

	require.Len(t, cards, 1)
	cloze := cards[0].(domain.Cloze)
	assert.Equal(t, []domain.Segment{
		domain.TextSegment("Fill "),
		domain.BlankSegment("blank-1", domain.BlankInput, "paris"),
		domain.TextSegment("."),
	}, cloze.Segments)
}

func TestParseClozeUnclosedDelimiterIsLiteral(t *testing.T) {
	cards := Parse("#card\nBroken markers.\nValid %%answer%% and %%unfinished.\n#")

	require.Len(t, cards, 1)
	cloze := cards[0].(domain.Cloze)
	require.Len(t, cloze.Blanks(), 1)
	assert.Equal(t, domain.TextSegment(" and %%unfinished."), cloze.Segments[len(cloze.Segments)-1])
}

func TestParseClozeEmptyBlankYieldsNoCard(t *testing.T) {
	assert.Empty(t, Parse("#card\nEmpty blank.\n%%%%\n#"))
	assert.Empty(t, Parse("#card\nNo blanks here.\nJust prose.\n#"))
}

func TestParseClozeDragTokens(t *testing.T) {
	cards := Parse("#card\nRivers\nThe capital of France is %%Paris%% and `Seine` flows nearby.\n#")

	require.Len(t, cards, 1)
	cloze := cards[0].(domain.Cloze)
	assert.Equal(t, []domain.DragToken{{ID: "token-1", Value: "Seine"}}, cloze.DragTokens)
	blanks := cloze.Blanks()
	require.Len(t, blanks, 2)
	assert.Equal(t, domain.BlankDrag, blanks[1].BlankKind)
	assert.Equal(t, "Seine", blanks[1].Solution)
	assert.Equal(t, []ExerciseType{TypeFillBlank, TypeAssignment}, DetectTypes(cloze))
	assert.True(t, IsMixed(cloze))
}

func TestParseClozeTokenBankSortedByValue(t *testing.T) {
	cards := Parse("#card\nSky\nThe `sun` rises in the `east` at `dawn`.\n#")

	require.Len(t, cards, 1)
	cloze := cards[0].(domain.Cloze)
	assert.Equal(t, []domain.DragToken{
		{ID: "token-1", Value: "dawn"},
		{ID: "token-2", Value: "east"},
		{ID: "token-3", Value: "sun"},
	}, cloze.DragTokens)
	blanks := cloze.Blanks()
	require.Len(t, blanks, 3)
	assert.Equal(t, "sun", blanks[0].Solution)
	assert.Equal(t, "dawn", blanks[2].Solution)
}

func TestParseClozePreservesBodyWhitespace(t *testing.T) {
	cards := Parse("#card\nQuestion\n\n  indented %%x%%\n\n#")

	require.Len(t, cards, 1)
	cloze := cards[0].(domain.Cloze)
	assert.Equal(t, domain.TextSegment("\n  indented "), cloze.Segments[0])
	assert.Equal(t, domain.TextSegment("\n"), cloze.Segments[len(cloze.Segments)-1])
}

func TestParseTrueFalse(t *testing.T) {
	doc := "#card\nThe sky is blue Wahr/Falsch?\n-wahr\nFish can fly True/False?\n-FALSE\nNo marker here True/False?\n#"

	cards := Parse(doc)

	require.Len(t, cards, 1)
	tf := cards[0].(domain.TrueFalse)
	assert.Equal(t, []domain.TrueFalseItem{
		{ID: "item-1", Statement: "The sky is blue", Correct: domain.True},
		{ID: "item-2", Statement: "Fish can fly", Correct: domain.False},
	}, tf.Items)
}

func TestParseTrueFalseWithoutMarkersYieldsNoCard(t *testing.T) {
	assert.Empty(t, Parse("#card\nStatement Wahr/Falsch?\n#"))
}

func TestParseFreeText(t *testing.T) {
	cards := Parse("#card\nWhat is a join?\nExplain briefly.\nAnswer: Combines rows\nfrom two tables.\n#")

	require.Len(t, cards, 1)
	ft := cards[0].(domain.FreeText)
	assert.Equal(t, "What is a join?\nExplain briefly.", ft.Front)
	assert.Equal(t, "Combines rows\nfrom two tables.", ft.Back)
	assert.Equal(t, []ExerciseType{TypeQA}, DetectTypes(ft))
}

func TestParseFreeTextRequiresBack(t *testing.T) {
	assert.Empty(t, Parse("#card\nWhat is a join?\nAnswer:\n#"))
}

func TestParseNormalizesLineEndings(t *testing.T) {
	cards := Parse("#card\r\nQ?\r\na) X\r\n-a\r\n#\r\n")

	require.Len(t, cards, 1)
	assert.Equal(t, []string{"a"}, cards[0].(domain.MultipleChoice).CorrectKeys)
}

func TestParseEveryCardMeetsMinimumContent(t *testing.T) {
	docs := []string{
		"",
		"#",
		"#card\n#\n#card\n#",
		"#card\nq\na)\n-a\n#",
		"#card\nq\n`\n%%\n#",
		strings.Repeat("#card\nq %%a%%\n", 20) + "#",
		"#card\nq\nAnswer: yes\na) option after split\n#",
	}
	for _, doc := range docs {
		for _, c := range Parse(doc) {
			switch card := c.(type) {
			case domain.MultipleChoice:
				assert.NotEmpty(t, card.Options)
			case domain.TrueFalse:
				assert.NotEmpty(t, card.Items)
			case domain.Cloze:
				assert.NotEmpty(t, card.Blanks())
			case domain.FreeText:
				assert.NotEmpty(t, card.Back)
			default:
				t.Fatalf("unexpected card type %T", c)
			}
		}
	}
}
