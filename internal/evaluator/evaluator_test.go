package evaluator

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func raw(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestSingleSelectExactMatch(t *testing.T) {
	registry := NewRegistry()

	result, err := registry.Evaluate(TypeSingleSelect, raw(t, "B"), raw(t, "B"), 5)
	require.NoError(t, err)
	require.NotNil(t, result.IsCorrect)
	require.True(t, *result.IsCorrect)
	require.Equal(t, 5.0, result.PointsEarned)
	require.Equal(t, "B", result.DisplayText)

	result, err = registry.Evaluate(TypeSingleSelect, raw(t, "A"), raw(t, "B"), 5)
	require.NoError(t, err)
	require.False(t, *result.IsCorrect)
	require.Zero(t, result.PointsEarned)
}

func TestMultiSelectPartialCredit(t *testing.T) {
	registry := NewRegistry()
	canonical := raw(t, []string{"A", "C"})

	full, err := registry.Evaluate(TypeMultiSelect, raw(t, []string{"A", "C"}), canonical, 10)
	require.NoError(t, err)
	require.True(t, *full.IsCorrect)
	require.Equal(t, 10.0, full.PointsEarned)

	half, err := registry.Evaluate(TypeMultiSelect, raw(t, []string{"A"}), canonical, 10)
	require.NoError(t, err)
	require.False(t, *half.IsCorrect)
	require.Equal(t, 5.0, half.PointsEarned)

	// Extraneous options deduct matched units so select-all never pays full.
	padded, err := registry.Evaluate(TypeMultiSelect, raw(t, []string{"A", "B", "C"}), canonical, 10)
	require.NoError(t, err)
	require.False(t, *padded.IsCorrect)
	require.Equal(t, 5.0, padded.PointsEarned)
	require.LessOrEqual(t, padded.PointsEarned, 10.0)

	wild, err := registry.Evaluate(TypeMultiSelect, raw(t, []string{"B", "D"}), canonical, 10)
	require.NoError(t, err)
	require.Zero(t, wild.PointsEarned)
}

func TestMultiSelectRejectsMalformedPayload(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Evaluate(TypeMultiSelect, raw(t, "A"), raw(t, []string{"A"}), 10)
	require.Error(t, err)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, TypeMultiSelect, validationErr.QuestionType)
}

func TestTrueFalseNotGiven(t *testing.T) {
	registry := NewRegistry()

	result, err := registry.Evaluate(TypeTrueFalseNotGiven, raw(t, "not_given"), raw(t, "not_given"), 2)
	require.NoError(t, err)
	require.True(t, *result.IsCorrect)
	require.Equal(t, 2.0, result.PointsEarned)
	require.Equal(t, "not given", result.DisplayText)

	_, err = registry.Evaluate(TypeTrueFalseNotGiven, raw(t, "maybe"), raw(t, "true"), 2)
	require.Error(t, err)
}

func TestCompletionPerGapCredit(t *testing.T) {
	registry := NewRegistry()
	canonical := raw(t, map[string]interface{}{
		"gap1": "harbour",
		"gap2": []string{"nineteen", "19"},
		"gap3": "ferry",
	})

	answers := raw(t, map[string]string{
		"gap1": "  Harbour ",
		"gap2": "19",
		"gap3": "train",
	})

	result, err := registry.Evaluate(TypeTableCompletion, answers, canonical, 6)
	require.NoError(t, err)
	require.False(t, *result.IsCorrect)
	require.Equal(t, 4.0, result.PointsEarned)
}

func TestCompletionRoundsToTwoDecimals(t *testing.T) {
	registry := NewRegistry()
	canonical := raw(t, map[string]string{"a": "x", "b": "y", "c": "z"})
	answers := raw(t, map[string]string{"a": "x", "b": "no", "c": "no"})

	result, err := registry.Evaluate(TypeSummaryCompletion, answers, canonical, 10)
	require.NoError(t, err)
	require.Equal(t, 3.33, result.PointsEarned)
	require.InDelta(t, 10.0/3.0, result.PointsExact, 1e-9)
}

func TestMatchingPairs(t *testing.T) {
	registry := NewRegistry()
	canonical := raw(t, map[string]string{"p1": "optA", "p2": "optB"})

	result, err := registry.Evaluate(TypeMatching, raw(t, map[string]string{"p1": "optA", "p2": "optC"}), canonical, 4)
	require.NoError(t, err)
	require.False(t, *result.IsCorrect)
	require.Equal(t, 2.0, result.PointsEarned)
	require.Equal(t, "p1 -> optA; p2 -> optC", result.DisplayText)
}

func TestShortAnswerVariants(t *testing.T) {
	registry := NewRegistry()

	result, err := registry.Evaluate(TypeShortAnswer, raw(t, "The Harbour"), raw(t, []string{"harbour", "the harbour"}), 3)
	require.NoError(t, err)
	require.True(t, *result.IsCorrect)
	require.Equal(t, 3.0, result.PointsEarned)
}

func TestShortAnswerWithoutCanonicalKeyNeedsReview(t *testing.T) {
	registry := NewRegistry()

	result, err := registry.Evaluate(TypeShortAnswer, raw(t, "free text"), nil, 3)
	require.NoError(t, err)
	require.Nil(t, result.IsCorrect)
	require.Zero(t, result.PointsEarned)
}

func TestEssayAlwaysManual(t *testing.T) {
	registry := NewRegistry()

	result, err := registry.Evaluate(TypeEssay, raw(t, "my essay body"), nil, 20)
	require.NoError(t, err)
	require.Nil(t, result.IsCorrect)
	require.Zero(t, result.PointsEarned)
	require.Equal(t, "my essay body", result.DisplayText)
}

func TestSpeakingPromptFormatsAudioReference(t *testing.T) {
	registry := NewRegistry()
	answer := raw(t, map[string]string{"audio_url": "https://cdn.example/rec.ogg"})

	result, err := registry.Evaluate(TypeSpeakingPrompt, answer, nil, 10)
	require.NoError(t, err)
	require.Nil(t, result.IsCorrect)
	require.Equal(t, "https://cdn.example/rec.ogg", result.DisplayText)
}

func TestUnknownTypeFailsClosed(t *testing.T) {
	registry := NewRegistry()

	result, err := registry.Evaluate("hologram_completion", raw(t, map[string]int{"weird": 1}), raw(t, "x"), 10)
	require.NoError(t, err)
	require.Nil(t, result.IsCorrect)
	require.Zero(t, result.PointsEarned)
}

func TestEmptyAnswerScoresZero(t *testing.T) {
	registry := NewRegistry()

	result, err := registry.Evaluate(TypeSingleSelect, nil, raw(t, "A"), 5)
	require.NoError(t, err)
	require.NotNil(t, result.IsCorrect)
	require.False(t, *result.IsCorrect)
	require.Zero(t, result.PointsEarned)
}
