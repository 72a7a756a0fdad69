package dto

import (
	"time"

	"gorm.io/datatypes"

	"github.com/linguahub/lingua-go-api/internal/models"
)

// QuestionCreateRequest describes one question within a new task.
type QuestionCreateRequest struct {
	Type          string         `json:"type" validate:"required"`
	Prompt        string         `json:"prompt" validate:"required"`
	Options       datatypes.JSON `json:"options"`
	CorrectAnswer datatypes.JSON `json:"correct_answer"`
	Points        float64        `json:"points" validate:"gt=0"`
	Required      bool           `json:"required"`
}

// TaskCreateRequest describes the payload for creating a new task.
type TaskCreateRequest struct {
	Title            string                  `json:"title" validate:"required,min=3"`
	Description      string                  `json:"description"`
	Modality         string                  `json:"modality" validate:"required"`
	ClassID          *uint                   `json:"class_id"`
	AllowRetake      bool                    `json:"allow_retake"`
	MaxAttempts      *int                    `json:"max_attempts" validate:"omitempty,gt=0"`
	TimeLimitMinutes *int                    `json:"time_limit_minutes" validate:"omitempty,gt=0"`
	EnforceComplete  bool                    `json:"enforce_complete"`
	Questions        []QuestionCreateRequest `json:"questions" validate:"dive"`
}

// TaskPublishRequest carries the optional assignment overrides supplied when
// publishing a task to a class.
type TaskPublishRequest struct {
	ClassID     *uint      `json:"class_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
}

// QuestionResponse is the serialized question without its answer key.
type QuestionResponse struct {
	ID       uint           `json:"id"`
	Position int            `json:"position"`
	Type     string         `json:"type"`
	Prompt   string         `json:"prompt"`
	Options  datatypes.JSON `json:"options"`
	Points   float64        `json:"points"`
	Required bool           `json:"required"`
}

// TaskResponse is the serialized representation returned to API clients.
type TaskResponse struct {
	ID               uint               `json:"id"`
	Title            string             `json:"title"`
	Description      string             `json:"description"`
	Modality         string             `json:"modality"`
	ClassID          *uint              `json:"class_id"`
	Published        bool               `json:"published"`
	Lifecycle        string             `json:"lifecycle"`
	AllowRetake      bool               `json:"allow_retake"`
	MaxAttempts      *int               `json:"max_attempts"`
	TimeLimitMinutes *int               `json:"time_limit_minutes"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
	Questions        []QuestionResponse `json:"questions,omitempty"`
}

// NewTaskResponse converts a model into a DTO. The canonical answers never
// leave the server through this shape.
func NewTaskResponse(model models.Task) TaskResponse {
	response := TaskResponse{
		ID:               model.ID,
		Title:            model.Title,
		Description:      model.Description,
		Modality:         model.Modality,
		ClassID:          model.ClassID,
		Published:        model.Published,
		Lifecycle:        model.Lifecycle,
		AllowRetake:      model.AllowRetake,
		MaxAttempts:      model.MaxAttempts,
		TimeLimitMinutes: model.TimeLimitMinutes,
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
	}

	for _, question := range model.Questions {
		response.Questions = append(response.Questions, QuestionResponse{
			ID:       question.ID,
			Position: question.Position,
			Type:     question.Type,
			Prompt:   question.Prompt,
			Options:  question.Options,
			Points:   question.Points,
			Required: question.Required,
		})
	}

	return response
}
