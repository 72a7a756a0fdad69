package evaluator

import (
	"encoding/json"
	"strings"
)

// singleSelectStrategy grades single-choice questions. The raw answer is one
// option identifier; the canonical answer is one identifier or an array of
// acceptable identifiers.
type singleSelectStrategy struct{}

func (singleSelectStrategy) Validate(raw json.RawMessage) error {
	if _, err := decodeString(raw); err != nil {
		return &ValidationError{QuestionType: TypeSingleSelect, Reason: err.Error()}
	}
	return nil
}

func (singleSelectStrategy) Score(raw, canonical json.RawMessage, maxPoints float64) (Result, error) {
	selected, err := decodeString(raw)
	if err != nil {
		return Result{}, &ValidationError{QuestionType: TypeSingleSelect, Reason: err.Error()}
	}

	accepted, err := decodeVariants(canonical)
	if err != nil {
		return Result{}, &ValidationError{QuestionType: TypeSingleSelect, Reason: "canonical answer: " + err.Error()}
	}

	correct := false
	for _, candidate := range accepted {
		if strings.TrimSpace(candidate) == strings.TrimSpace(selected) {
			correct = true
			break
		}
	}

	result := Result{IsCorrect: &correct}
	if correct {
		result.PointsEarned = maxPoints
	}
	return result, nil
}

func (singleSelectStrategy) Format(raw json.RawMessage) string {
	selected, err := decodeString(raw)
	if err != nil {
		return ""
	}
	return selected
}

// multiSelectStrategy grades multi-choice questions with per-unit partial
// credit. Matched selections earn credit, extraneous selections deduct one
// matched unit each, floored at zero, so selecting everything never pays.
type multiSelectStrategy struct{}

func (multiSelectStrategy) Validate(raw json.RawMessage) error {
	if _, err := decodeStringSlice(raw); err != nil {
		return &ValidationError{QuestionType: TypeMultiSelect, Reason: err.Error()}
	}
	return nil
}

func (multiSelectStrategy) Score(raw, canonical json.RawMessage, maxPoints float64) (Result, error) {
	selected, err := decodeStringSlice(raw)
	if err != nil {
		return Result{}, &ValidationError{QuestionType: TypeMultiSelect, Reason: err.Error()}
	}

	accepted, err := decodeStringSlice(canonical)
	if err != nil {
		return Result{}, &ValidationError{QuestionType: TypeMultiSelect, Reason: "canonical answer: " + err.Error()}
	}

	acceptedSet := make(map[string]struct{}, len(accepted))
	for _, option := range accepted {
		acceptedSet[strings.TrimSpace(option)] = struct{}{}
	}

	selectedSet := make(map[string]struct{}, len(selected))
	for _, option := range selected {
		selectedSet[strings.TrimSpace(option)] = struct{}{}
	}

	matched := 0
	extraneous := 0
	for option := range selectedSet {
		if _, ok := acceptedSet[option]; ok {
			matched++
		} else {
			extraneous++
		}
	}

	correct := matched == len(acceptedSet) && extraneous == 0 && len(acceptedSet) > 0
	result := Result{IsCorrect: &correct}

	if len(acceptedSet) > 0 {
		credited := matched - extraneous
		if credited < 0 {
			credited = 0
		}
		result.PointsEarned = maxPoints * float64(credited) / float64(len(acceptedSet))
	}

	return result, nil
}

func (multiSelectStrategy) Format(raw json.RawMessage) string {
	selected, err := decodeStringSlice(raw)
	if err != nil {
		return ""
	}
	return strings.Join(selected, ", ")
}

// trueFalseNotGivenStrategy grades the three-valued judgement questions used
// in reading tests.
type trueFalseNotGivenStrategy struct{}

var trueFalseNotGivenValues = map[string]struct{}{
	"true":      {},
	"false":     {},
	"not_given": {},
}

func (trueFalseNotGivenStrategy) Validate(raw json.RawMessage) error {
	value, err := decodeString(raw)
	if err != nil {
		return &ValidationError{QuestionType: TypeTrueFalseNotGiven, Reason: err.Error()}
	}
	if _, ok := trueFalseNotGivenValues[normalizeText(value)]; !ok {
		return &ValidationError{QuestionType: TypeTrueFalseNotGiven, Reason: "value must be true, false or not_given"}
	}
	return nil
}

func (s trueFalseNotGivenStrategy) Score(raw, canonical json.RawMessage, maxPoints float64) (Result, error) {
	if err := s.Validate(raw); err != nil {
		return Result{}, err
	}

	value, _ := decodeString(raw)
	expected, err := decodeString(canonical)
	if err != nil {
		return Result{}, &ValidationError{QuestionType: TypeTrueFalseNotGiven, Reason: "canonical answer: " + err.Error()}
	}

	correct := normalizeText(value) == normalizeText(expected)
	result := Result{IsCorrect: &correct}
	if correct {
		result.PointsEarned = maxPoints
	}
	return result, nil
}

func (trueFalseNotGivenStrategy) Format(raw json.RawMessage) string {
	value, err := decodeString(raw)
	if err != nil {
		return ""
	}
	return strings.ReplaceAll(normalizeText(value), "_", " ")
}
