package dto

import (
	"encoding/json"
	"time"

	"github.com/linguahub/lingua-go-api/internal/models"
)

// AnswerRequest carries one answer for one question. Clients may send either
// the structured answer_data payload or the legacy flat selected_option_id;
// when both are present the structured payload wins.
type AnswerRequest struct {
	QuestionID       uint            `json:"question_id" validate:"required"`
	AnswerData       json.RawMessage `json:"answer_data"`
	SelectedOptionID *string         `json:"selected_option_id"`
}

// Resolve returns the canonical answer payload for evaluation.
func (r AnswerRequest) Resolve() json.RawMessage {
	if len(r.AnswerData) > 0 && string(r.AnswerData) != "null" {
		return r.AnswerData
	}
	if r.SelectedOptionID != nil {
		encoded, err := json.Marshal(*r.SelectedOptionID)
		if err != nil {
			return nil
		}
		return encoded
	}
	return nil
}

// SubmitRequest finalizes an attempt. Answers may ride along so clients can
// flush unsaved work in the same call.
type SubmitRequest struct {
	Answers []AnswerRequest `json:"answers" validate:"dive"`
}

// ReviewRequest carries a teacher's manual grade and feedback.
type ReviewRequest struct {
	Score    float64 `json:"score" validate:"gte=0"`
	Feedback string  `json:"feedback"`
}

// QuestionAnswerResponse is one evaluated answer. The canonical answer is
// never included.
type QuestionAnswerResponse struct {
	ID           uint            `json:"id"`
	QuestionID   uint            `json:"question_id"`
	Answer       json.RawMessage `json:"answer"`
	Transcript   string          `json:"transcript,omitempty"`
	IsCorrect    *bool           `json:"is_correct"`
	PointsEarned float64         `json:"points_earned"`
	PointsMax    float64         `json:"points_max"`
	DisplayText  string          `json:"display_text"`
}

// NewQuestionAnswerResponse converts a model into a DTO.
func NewQuestionAnswerResponse(model models.QuestionAnswer) QuestionAnswerResponse {
	return QuestionAnswerResponse{
		ID:           model.ID,
		QuestionID:   model.QuestionID,
		Answer:       json.RawMessage(model.Answer),
		Transcript:   model.Transcript,
		IsCorrect:    model.IsCorrect,
		PointsEarned: model.PointsEarned,
		PointsMax:    model.PointsMax,
		DisplayText:  model.DisplayText,
	}
}

// SubmissionResponse is one attempt with its evaluated answers.
type SubmissionResponse struct {
	ID                  uint                     `json:"id"`
	StudentAssignmentID uint                     `json:"student_assignment_id"`
	TaskID              uint                     `json:"task_id"`
	StudentID           uint                     `json:"student_id"`
	AttemptNumber       int                      `json:"attempt_number"`
	Status              string                   `json:"status"`
	Score               *float64                 `json:"score"`
	Percentage          *float64                 `json:"percentage"`
	Feedback            string                   `json:"feedback,omitempty"`
	ReviewedBy          *uint                    `json:"reviewed_by,omitempty"`
	StartedAt           time.Time                `json:"started_at"`
	SubmittedAt         *time.Time               `json:"submitted_at"`
	ReviewedAt          *time.Time               `json:"reviewed_at"`
	Answers             []QuestionAnswerResponse `json:"answers,omitempty"`
}

// NewSubmissionResponse converts a model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	response := SubmissionResponse{
		ID:                  model.ID,
		StudentAssignmentID: model.StudentAssignmentID,
		TaskID:              model.TaskID,
		StudentID:           model.StudentID,
		AttemptNumber:       model.AttemptNumber,
		Status:              model.Status,
		Score:               model.Score,
		Percentage:          model.Percentage,
		Feedback:            model.Feedback,
		ReviewedBy:          model.ReviewedBy,
		StartedAt:           model.StartedAt,
		SubmittedAt:         model.SubmittedAt,
		ReviewedAt:          model.ReviewedAt,
	}

	for _, answer := range model.Answers {
		response.Answers = append(response.Answers, NewQuestionAnswerResponse(answer))
	}

	return response
}
