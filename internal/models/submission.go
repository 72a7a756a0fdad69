package models

import (
	"time"

	"gorm.io/datatypes"
)

// Submission is one attempt at a task by one student. Attempt numbers are
// 1-based and monotonically increasing per student assignment. Submissions
// outlive status changes on their parent row so retakes keep full history.
type Submission struct {
	ID                  uint              `gorm:"primaryKey" json:"id"`
	StudentAssignmentID uint              `gorm:"not null;index" json:"student_assignment_id"`
	TaskID              uint              `gorm:"not null;index" json:"task_id"`
	StudentID           uint              `gorm:"not null;index" json:"student_id"`
	AttemptNumber       int               `gorm:"not null" json:"attempt_number"`
	Status              string            `gorm:"size:16;not null;default:in_progress" json:"status"`
	Score               *float64          `json:"score"`
	Percentage          *float64          `json:"percentage"`
	Feedback            string            `gorm:"type:text" json:"feedback"`
	ReviewedBy          *uint             `json:"reviewed_by"`
	StartedAt           time.Time         `json:"started_at"`
	SubmittedAt         *time.Time        `json:"submitted_at"`
	ReviewedAt          *time.Time        `json:"reviewed_at"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
	StudentAssignment   StudentAssignment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
	Answers             []QuestionAnswer  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"answers,omitempty"`
}

// IsOpen reports whether the attempt still accepts answers.
func (s Submission) IsOpen() bool {
	return s.Status == StudentAssignmentStatusInProgress
}

// QuestionAnswer holds one student answer within a submission. A stub row is
// created per question when the attempt starts; the evaluator fills in
// correctness and points at submit time.
type QuestionAnswer struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	SubmissionID  uint           `gorm:"not null;uniqueIndex:idx_question_answers_submission_question" json:"submission_id"`
	QuestionID    uint           `gorm:"not null;uniqueIndex:idx_question_answers_submission_question" json:"question_id"`
	Answer        datatypes.JSON `gorm:"type:json" json:"answer"`
	CorrectAnswer datatypes.JSON `gorm:"type:json" json:"-"`
	Transcript    string         `gorm:"type:text" json:"transcript,omitempty"`
	IsCorrect     *bool          `json:"is_correct"`
	PointsEarned  float64        `gorm:"not null;default:0" json:"points_earned"`
	PointsMax     float64        `gorm:"not null;default:0" json:"points_max"`
	DisplayText   string         `gorm:"type:text" json:"display_text"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	Question      Question       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// IsAnswered reports whether the student supplied any answer payload.
func (qa QuestionAnswer) IsAnswered() bool {
	return len(qa.Answer) > 0 && string(qa.Answer) != "null"
}
