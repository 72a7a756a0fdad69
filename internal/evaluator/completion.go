package evaluator

import (
	"encoding/json"
	"fmt"
	"strings"
)

// completionStrategy grades gap-fill questions (table, form, note, flowchart,
// summary and sentence completion). The raw answer maps gap keys to the
// student's text; the canonical answer maps the same keys to one or more
// acceptable strings. Credit is per gap: matched gaps over total gaps.
type completionStrategy struct{}

func (completionStrategy) Validate(raw json.RawMessage) error {
	if _, err := decodeStringMap(raw); err != nil {
		return &ValidationError{QuestionType: "completion", Reason: err.Error()}
	}
	return nil
}

func (completionStrategy) Score(raw, canonical json.RawMessage, maxPoints float64) (Result, error) {
	answers, err := decodeStringMap(raw)
	if err != nil {
		return Result{}, &ValidationError{QuestionType: "completion", Reason: err.Error()}
	}

	expected, err := decodeVariantMap(canonical)
	if err != nil {
		return Result{}, &ValidationError{QuestionType: "completion", Reason: "canonical answer: " + err.Error()}
	}

	if len(expected) == 0 {
		incorrect := false
		return Result{IsCorrect: &incorrect}, nil
	}

	matched := 0
	for key, variants := range expected {
		if textMatches(answers[key], variants) {
			matched++
		}
	}

	correct := matched == len(expected)
	return Result{
		IsCorrect:    &correct,
		PointsEarned: maxPoints * float64(matched) / float64(len(expected)),
	}, nil
}

func (completionStrategy) Format(raw json.RawMessage) string {
	answers, err := decodeStringMap(raw)
	if err != nil {
		return ""
	}

	parts := make([]string, 0, len(answers))
	for _, key := range sortedKeys(answers) {
		parts = append(parts, fmt.Sprintf("%s: %s", key, answers[key]))
	}
	return strings.Join(parts, "; ")
}

// matchingStrategy grades matching and diagram-labeling questions. The raw
// answer maps item keys to the chosen option or label; credit is per matched
// pair with exact (trimmed, case-insensitive) comparison of values.
type matchingStrategy struct {
	kind string
}

func (s matchingStrategy) Validate(raw json.RawMessage) error {
	if _, err := decodeStringMap(raw); err != nil {
		return &ValidationError{QuestionType: s.kind, Reason: err.Error()}
	}
	return nil
}

func (s matchingStrategy) Score(raw, canonical json.RawMessage, maxPoints float64) (Result, error) {
	pairs, err := decodeStringMap(raw)
	if err != nil {
		return Result{}, &ValidationError{QuestionType: s.kind, Reason: err.Error()}
	}

	expected, err := decodeStringMap(canonical)
	if err != nil {
		return Result{}, &ValidationError{QuestionType: s.kind, Reason: "canonical answer: " + err.Error()}
	}

	if len(expected) == 0 {
		incorrect := false
		return Result{IsCorrect: &incorrect}, nil
	}

	matched := 0
	for key, want := range expected {
		if normalizeText(pairs[key]) == normalizeText(want) && strings.TrimSpace(pairs[key]) != "" {
			matched++
		}
	}

	correct := matched == len(expected)
	return Result{
		IsCorrect:    &correct,
		PointsEarned: maxPoints * float64(matched) / float64(len(expected)),
	}, nil
}

func (s matchingStrategy) Format(raw json.RawMessage) string {
	pairs, err := decodeStringMap(raw)
	if err != nil {
		return ""
	}

	parts := make([]string, 0, len(pairs))
	for _, key := range sortedKeys(pairs) {
		parts = append(parts, fmt.Sprintf("%s -> %s", key, pairs[key]))
	}
	return strings.Join(parts, "; ")
}
