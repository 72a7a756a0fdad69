package models

import "time"

// Assignment creation sources.
const (
	AssignmentSourceManual      = "manual"
	AssignmentSourceAutoPublish = "auto_publish"
)

// StudentAssignment statuses. The full chain applies to human-reviewed
// modalities; auto-graded tasks jump from submitted straight to completed.
const (
	StudentAssignmentStatusNotStarted = "not_started"
	StudentAssignmentStatusInProgress = "in_progress"
	StudentAssignmentStatusSubmitted  = "submitted"
	StudentAssignmentStatusReviewed   = "reviewed"
	StudentAssignmentStatusDone       = "done"
	StudentAssignmentStatusCompleted  = "completed"
)

// Assignment links one task to one class. The composite unique index on
// (task_id, class_id) is the idempotency guarantee for the publish fan-out:
// concurrent provisioning attempts collapse onto a single row.
type Assignment struct {
	ID                 uint                `gorm:"primaryKey" json:"id"`
	TaskID             uint                `gorm:"not null;uniqueIndex:idx_assignments_task_class" json:"task_id"`
	ClassID            uint                `gorm:"not null;uniqueIndex:idx_assignments_task_class" json:"class_id"`
	Modality           string              `gorm:"size:16;not null" json:"modality"`
	Title              string              `gorm:"size:255;not null" json:"title"`
	Description        string              `gorm:"type:text" json:"description"`
	Published          bool                `gorm:"not null;default:false" json:"published"`
	Source             string              `gorm:"size:16;not null;default:manual" json:"source"`
	DueDate            *time.Time          `json:"due_date"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
	Task               Task                `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	StudentAssignments []StudentAssignment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// IsPastDue returns true when the assignment deadline has already passed.
func (a Assignment) IsPastDue(reference time.Time) bool {
	return a.DueDate != nil && reference.After(*a.DueDate)
}

// StudentAssignment is the per-student instance of an assignment. The
// composite unique index on (assignment_id, student_id) lets the provisioner
// and the enrollment listener race safely on the same key.
type StudentAssignment struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	AssignmentID uint       `gorm:"not null;uniqueIndex:idx_student_assignments_assignment_student" json:"assignment_id"`
	StudentID    uint       `gorm:"not null;uniqueIndex:idx_student_assignments_assignment_student" json:"student_id"`
	Status       string     `gorm:"size:16;not null;default:not_started" json:"status"`
	AttemptCount int        `gorm:"not null;default:0" json:"attempt_count"`
	Score        *float64   `json:"score"`
	StartedAt    *time.Time `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Assignment   Assignment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Student      Student    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// IsRetakeSource reports whether a new attempt may be started from the
// current status, retake policy permitting.
func (sa StudentAssignment) IsRetakeSource() bool {
	switch sa.Status {
	case StudentAssignmentStatusSubmitted,
		StudentAssignmentStatusReviewed,
		StudentAssignmentStatusDone,
		StudentAssignmentStatusCompleted:
		return true
	default:
		return false
	}
}
