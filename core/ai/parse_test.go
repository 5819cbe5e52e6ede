package ai

import (
	"testing"

	"StudySync/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractArray(t *testing.T) {
	raw, ok := ExtractArray(`Here you go: [{"a":1}] and also [2]. Done`)
	require.True(t, ok)
	assert.Equal(t, `[{"a":1}] and also [2]`, raw)

	_, ok = ExtractArray("no brackets here")
	assert.False(t, ok)

	_, ok = ExtractArray("] backwards [")
	assert.False(t, ok)
}

func TestParseFlashcardsFromChattyOutput(t *testing.T) {
	text := `Here are your cards: [{"question":"Q","answer":"A"}] Hope that helps!`
	cards, err := ParseFlashcards(text)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, model.Flashcard{
		Question: "Q",
		Answer:   "A",
		Type:     model.FlashcardFreeform,
		Options:  []string{},
	}, cards[0])
}

func TestParseFlashcardsDropsIncompleteEntries(t *testing.T) {
	text := `[{"question":"Q1","answer":""},{"question":"Q2","answer":"A2","type":"multiple_choice","options":["x","A2"],"correctOptionIndex":1}]`
	cards, err := ParseFlashcards(text)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, model.FlashcardMultipleChoice, cards[0].Type)
	assert.Equal(t, 1, cards[0].CorrectOptionIndex)
}

func TestParseFlashcardsInvalidJSON(t *testing.T) {
	_, err := ParseFlashcards(`[{"question": oops}]`)
	assert.Error(t, err)

	cards, err := ParseFlashcards("I cannot help with that.")
	assert.NoError(t, err)
	assert.Empty(t, cards)
}

func TestParseKeywordsClampsImportance(t *testing.T) {
	text := "```json\n[{\"word\":\"Cell\",\"importance\":12},{\"word\":\" \",\"importance\":5},{\"word\":\"Mitosis\",\"importance\":7.6},{\"word\":\"ATP\",\"importance\":0}]\n```"
	keywords, err := ParseKeywords(text)
	require.NoError(t, err)
	assert.Equal(t, []model.Keyword{
		{Word: "Cell", Importance: 10},
		{Word: "Mitosis", Importance: 8},
		{Word: "ATP", Importance: 1},
	}, keywords)
}
