package evaluator

import (
	"encoding/json"
	"strings"
)

// textMatchStrategy grades short-answer and dictation questions: a single
// free-text response compared against a list of acceptable strings, trimmed
// and case-insensitive. All-or-nothing, one unit.
type textMatchStrategy struct{}

func (textMatchStrategy) Validate(raw json.RawMessage) error {
	if _, err := decodeString(raw); err != nil {
		return &ValidationError{QuestionType: TypeShortAnswer, Reason: err.Error()}
	}
	return nil
}

func (textMatchStrategy) Score(raw, canonical json.RawMessage, maxPoints float64) (Result, error) {
	response, err := decodeString(raw)
	if err != nil {
		return Result{}, &ValidationError{QuestionType: TypeShortAnswer, Reason: err.Error()}
	}

	// No canonical key means the answer needs a human reviewer.
	if isEmptyPayload(canonical) {
		return Result{DisplayText: response}, nil
	}

	accepted, err := decodeVariants(canonical)
	if err != nil {
		return Result{}, &ValidationError{QuestionType: TypeShortAnswer, Reason: "canonical answer: " + err.Error()}
	}

	correct := textMatches(response, accepted)
	result := Result{IsCorrect: &correct, DisplayText: response}
	if correct {
		result.PointsEarned = maxPoints
	}
	return result, nil
}

func (textMatchStrategy) Format(raw json.RawMessage) string {
	response, err := decodeString(raw)
	if err != nil {
		return ""
	}
	return response
}

// manualStrategy covers essays, speaking prompts and any unregistered
// question type. It fails closed: every payload validates, correctness stays
// nil and no points are awarded until a reviewer scores the attempt.
type manualStrategy struct{}

func (manualStrategy) Validate(json.RawMessage) error { return nil }

func (manualStrategy) Score(raw, _ json.RawMessage, _ float64) (Result, error) {
	return Result{DisplayText: manualDisplay(raw)}, nil
}

func (manualStrategy) Format(raw json.RawMessage) string {
	return manualDisplay(raw)
}

func manualDisplay(raw json.RawMessage) string {
	if text, err := decodeString(raw); err == nil {
		return text
	}

	// Speaking answers arrive as an object holding the recording reference.
	var payload struct {
		AudioURL string `json:"audio_url"`
		Text     string `json:"text"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Text != "" {
			return payload.Text
		}
		if payload.AudioURL != "" {
			return payload.AudioURL
		}
	}

	return strings.TrimSpace(string(raw))
}
