package models

import "time"

const (
	// EnrollmentStatusActive marks a student as an active member of a class.
	EnrollmentStatusActive = "active"
	// EnrollmentStatusInactive marks a student who left or was suspended from a class.
	EnrollmentStatusInactive = "inactive"
)

// Class groups students so tests can be assigned to them as a batch.
type Class struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	TeacherID   uint      `gorm:"not null;index" json:"teacher_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Enrollment links a student to a class. Status is toggled, never hard-deleted,
// so submission history keeps a valid reference.
type Enrollment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ClassID   uint      `gorm:"not null;uniqueIndex:idx_enrollments_class_student" json:"class_id"`
	StudentID uint      `gorm:"not null;uniqueIndex:idx_enrollments_class_student" json:"student_id"`
	Status    string    `gorm:"size:16;not null;default:active" json:"status"`
	JoinedAt  time.Time `json:"joined_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Class     Class     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Student   Student   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// IsActive reports whether the enrollment currently grants class membership.
func (e Enrollment) IsActive() bool {
	return e.Status == EnrollmentStatusActive
}
