package models

import (
	"time"

	"gorm.io/datatypes"
)

// Task modalities. Reading and listening are auto-graded, writing and
// speaking require human review.
const (
	ModalityReading   = "reading"
	ModalityWriting   = "writing"
	ModalityListening = "listening"
	ModalitySpeaking  = "speaking"
)

// Task lifecycle states. Archived tasks are kept for submission history and
// can never be hard-deleted.
const (
	TaskLifecycleActive   = "active"
	TaskLifecycleArchived = "archived"
)

// Task is a test definition in a single modality. A task may belong to a
// class or be standalone/public (nil ClassID).
type Task struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	Title            string     `gorm:"size:255;not null" json:"title"`
	Description      string     `gorm:"type:text" json:"description"`
	Modality         string     `gorm:"size:16;not null;index" json:"modality"`
	ClassID          *uint      `gorm:"index" json:"class_id"`
	AuthorID         uint       `gorm:"not null" json:"author_id"`
	Published        bool       `gorm:"not null;default:false" json:"published"`
	Lifecycle        string     `gorm:"size:16;not null;default:active" json:"lifecycle"`
	AllowRetake      bool       `gorm:"not null;default:false" json:"allow_retake"`
	MaxAttempts      *int       `json:"max_attempts"`
	TimeLimitMinutes *int       `json:"time_limit_minutes"`
	EnforceComplete  bool       `gorm:"not null;default:false" json:"enforce_complete"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	Questions        []Question `json:"questions,omitempty"`
}

// IsAutoGraded reports whether submissions for this task are scored
// mechanically without a reviewer.
func (t Task) IsAutoGraded() bool {
	return t.Modality == ModalityReading || t.Modality == ModalityListening
}

// IsArchived reports whether the task has been retired from editing and deletion.
func (t Task) IsArchived() bool {
	return t.Lifecycle == TaskLifecycleArchived
}

// Question is a single gradable unit within a task. Options and the
// canonical answer are stored as type-dependent JSON documents.
type Question struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	TaskID        uint           `gorm:"not null;index" json:"task_id"`
	Position      int            `gorm:"not null;default:0" json:"position"`
	Type          string         `gorm:"size:32;not null" json:"type"`
	Prompt        string         `gorm:"type:text;not null" json:"prompt"`
	Options       datatypes.JSON `gorm:"type:json" json:"options"`
	CorrectAnswer datatypes.JSON `gorm:"type:json" json:"-"`
	Points        float64        `gorm:"not null;default:1" json:"points"`
	Required      bool           `gorm:"not null;default:true" json:"required"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	Task          Task           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
