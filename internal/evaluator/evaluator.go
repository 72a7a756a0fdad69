package evaluator

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Question type tags accepted by the registry. The set is closed: new types
// are added by registering a strategy, not by editing dispatch logic.
const (
	TypeSingleSelect        = "single_select"
	TypeMultiSelect         = "multi_select"
	TypeTrueFalseNotGiven   = "true_false_not_given"
	TypeMatching            = "matching"
	TypeDiagramLabeling     = "diagram_labeling"
	TypeTableCompletion     = "table_completion"
	TypeFormCompletion      = "form_completion"
	TypeNoteCompletion      = "note_completion"
	TypeFlowchartCompletion = "flowchart_completion"
	TypeSummaryCompletion   = "summary_completion"
	TypeSentenceCompletion  = "sentence_completion"
	TypeShortAnswer         = "short_answer"
	TypeDictation           = "dictation"
	TypeEssay               = "essay"
	TypeSpeakingPrompt      = "speaking_prompt"
)

// Result is the outcome of evaluating a single answer.
//
// PointsEarned is rounded to two decimals for per-question storage and
// display. PointsExact keeps the unrounded value so submission totals can be
// summed before the final rounding step.
type Result struct {
	IsCorrect    *bool   `json:"is_correct"`
	PointsEarned float64 `json:"points_earned"`
	PointsExact  float64 `json:"-"`
	PointsMax    float64 `json:"points_max"`
	DisplayText  string  `json:"display_text"`
}

// ValidationError reports a structurally malformed answer payload for the
// declared question type. It is returned before any scoring happens.
type ValidationError struct {
	QuestionType string
	Reason       string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s answer: %s", e.QuestionType, e.Reason)
}

// Strategy evaluates answers for one question type.
type Strategy interface {
	// Validate checks the structural shape of the raw answer payload.
	Validate(raw json.RawMessage) error
	// Score computes correctness and points against the canonical answer.
	Score(raw, canonical json.RawMessage, maxPoints float64) (Result, error)
	// Format renders a human-readable view of the answer for review UIs.
	Format(raw json.RawMessage) string
}

// Registry routes question types to their strategies. Evaluation is pure and
// stateless, so a single registry is safe to share across goroutines.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry installs the built-in strategies for every supported type.
func NewRegistry() *Registry {
	gap := completionStrategy{}
	text := textMatchStrategy{}

	return &Registry{
		strategies: map[string]Strategy{
			TypeSingleSelect:        singleSelectStrategy{},
			TypeMultiSelect:         multiSelectStrategy{},
			TypeTrueFalseNotGiven:   trueFalseNotGivenStrategy{},
			TypeMatching:            matchingStrategy{kind: TypeMatching},
			TypeDiagramLabeling:     matchingStrategy{kind: TypeDiagramLabeling},
			TypeTableCompletion:     gap,
			TypeFormCompletion:      gap,
			TypeNoteCompletion:      gap,
			TypeFlowchartCompletion: gap,
			TypeSummaryCompletion:   gap,
			TypeSentenceCompletion:  gap,
			TypeShortAnswer:         text,
			TypeDictation:           text,
			TypeEssay:               manualStrategy{},
			TypeSpeakingPrompt:      manualStrategy{},
		},
	}
}

// Register adds or replaces the strategy for a question type.
func (r *Registry) Register(questionType string, strategy Strategy) {
	r.strategies[questionType] = strategy
}

// Supports reports whether the registry has a strategy for the type.
func (r *Registry) Supports(questionType string) bool {
	_, ok := r.strategies[questionType]
	return ok
}

// Evaluate validates and scores a raw answer against the canonical answer.
// Unregistered question types fail closed: anything validates, correctness is
// nil and the answer contributes zero points.
func (r *Registry) Evaluate(questionType string, raw, canonical json.RawMessage, maxPoints float64) (Result, error) {
	strategy, ok := r.strategies[questionType]
	if !ok {
		strategy = manualStrategy{}
	}

	if isEmptyPayload(raw) {
		incorrect := false
		result := Result{PointsMax: maxPoints, DisplayText: ""}
		if _, manual := strategy.(manualStrategy); !manual {
			result.IsCorrect = &incorrect
		}
		return result, nil
	}

	if err := strategy.Validate(raw); err != nil {
		return Result{}, err
	}

	result, err := strategy.Score(raw, canonical, maxPoints)
	if err != nil {
		return Result{}, err
	}

	result.PointsMax = maxPoints
	result.PointsExact = result.PointsEarned
	result.PointsEarned = Round2(result.PointsEarned)
	if result.DisplayText == "" {
		result.DisplayText = strategy.Format(raw)
	}

	return result, nil
}

// Validate checks only the structural shape of a raw answer for the declared
// type, without scoring. Used while an attempt is still open.
func (r *Registry) Validate(questionType string, raw json.RawMessage) error {
	strategy, ok := r.strategies[questionType]
	if !ok {
		strategy = manualStrategy{}
	}
	if isEmptyPayload(raw) {
		return nil
	}
	return strategy.Validate(raw)
}

// Format renders the answer without scoring it, for review screens.
func (r *Registry) Format(questionType string, raw json.RawMessage) string {
	strategy, ok := r.strategies[questionType]
	if !ok {
		strategy = manualStrategy{}
	}
	if isEmptyPayload(raw) {
		return ""
	}
	return strategy.Format(raw)
}

// Round2 rounds to two decimal places, the resolution used for question
// points and submission totals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func isEmptyPayload(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}

// normalizeText lowercases and collapses whitespace for lenient string
// comparison across completion and short-answer types.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

// textMatches reports whether the response matches any acceptable variant.
func textMatches(response string, accepted []string) bool {
	normalized := normalizeText(response)
	for _, candidate := range accepted {
		if normalizeText(candidate) == normalized {
			return true
		}
	}
	return false
}
