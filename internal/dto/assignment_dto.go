package dto

import (
	"time"

	"github.com/linguahub/lingua-go-api/internal/models"
)

// StudentAssignmentResponse is the per-student view of one assignment.
type StudentAssignmentResponse struct {
	ID           uint       `json:"id"`
	AssignmentID uint       `json:"assignment_id"`
	TaskID       uint       `json:"task_id"`
	StudentID    uint       `json:"student_id"`
	Title        string     `json:"title"`
	Modality     string     `json:"modality"`
	Status       string     `json:"status"`
	AttemptCount int        `json:"attempt_count"`
	Score        *float64   `json:"score"`
	DueDate      *time.Time `json:"due_date"`
	IsOverdue    bool       `json:"is_overdue"`
	StartedAt    *time.Time `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at"`
}

// NewStudentAssignmentResponse converts a model into a DTO. Overdue is
// derived against the supplied reference time so list views stay consistent
// within one request.
func NewStudentAssignmentResponse(model models.StudentAssignment, reference time.Time) StudentAssignmentResponse {
	return StudentAssignmentResponse{
		ID:           model.ID,
		AssignmentID: model.AssignmentID,
		TaskID:       model.Assignment.TaskID,
		StudentID:    model.StudentID,
		Title:        model.Assignment.Title,
		Modality:     model.Assignment.Modality,
		Status:       model.Status,
		AttemptCount: model.AttemptCount,
		Score:        model.Score,
		DueDate:      model.Assignment.DueDate,
		IsOverdue:    model.Assignment.IsPastDue(reference),
		StartedAt:    model.StartedAt,
		CompletedAt:  model.CompletedAt,
	}
}
