package dto

import (
	"time"

	"github.com/linguahub/lingua-go-api/internal/models"
)

// EnrollmentRequest enrolls a student into a class.
type EnrollmentRequest struct {
	ClassID   uint `json:"class_id" validate:"required"`
	StudentID uint `json:"student_id" validate:"required"`
}

// EnrollmentStatusRequest toggles an existing enrollment.
type EnrollmentStatusRequest struct {
	ClassID   uint   `json:"class_id" validate:"required"`
	StudentID uint   `json:"student_id" validate:"required"`
	Status    string `json:"status" validate:"required"`
}

// EnrollmentResponse is the serialized enrollment row.
type EnrollmentResponse struct {
	ID        uint      `json:"id"`
	ClassID   uint      `json:"class_id"`
	StudentID uint      `json:"student_id"`
	Status    string    `json:"status"`
	JoinedAt  time.Time `json:"joined_at"`
}

// NewEnrollmentResponse converts a model into a DTO.
func NewEnrollmentResponse(model models.Enrollment) EnrollmentResponse {
	return EnrollmentResponse{
		ID:        model.ID,
		ClassID:   model.ClassID,
		StudentID: model.StudentID,
		Status:    model.Status,
		JoinedAt:  model.JoinedAt,
	}
}
