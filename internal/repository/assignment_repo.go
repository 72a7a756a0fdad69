package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/linguahub/lingua-go-api/internal/models"
)

// AssignmentRepository persists assignments and their per-student rows. The
// two Ensure operations are the idempotent upsert primitives the provisioner
// and the enrollment listener share: both rely on the storage-level unique
// constraints, never on read-then-write checks.
type AssignmentRepository interface {
	GetByID(ctx context.Context, id uint) (models.Assignment, error)
	GetByTaskAndClass(ctx context.Context, taskID, classID uint) (models.Assignment, error)
	ListPublishedByClass(ctx context.Context, classID uint) ([]models.Assignment, error)
	EnsureAssignment(ctx context.Context, assignment *models.Assignment) error
	Update(ctx context.Context, assignment *models.Assignment) error

	GetStudentAssignment(ctx context.Context, id uint) (models.StudentAssignment, error)
	FindStudentAssignment(ctx context.Context, assignmentID, studentID uint) (models.StudentAssignment, error)
	ListStudentAssignments(ctx context.Context, filter StudentAssignmentFilter) ([]models.StudentAssignment, error)
	EnsureStudentAssignment(ctx context.Context, assignmentID, studentID uint) (models.StudentAssignment, error)
	// UpdateStudentAssignmentStatus persists the row only when its status
	// still equals expectedStatus, acting as a compare-and-swap so two
	// concurrent transitions cannot interleave.
	UpdateStudentAssignmentStatus(ctx context.Context, sa *models.StudentAssignment, expectedStatus string) error
}

// StudentAssignmentFilter narrows student assignment queries.
type StudentAssignmentFilter struct {
	AssignmentID *uint
	StudentID    *uint
	Status       *string
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository instantiates a GORM-backed assignment repository.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) GetByID(ctx context.Context, id uint) (models.Assignment, error) {
	var assignment models.Assignment
	if err := r.db.WithContext(ctx).Preload("Task").First(&assignment, id).Error; err != nil {
		return models.Assignment{}, err
	}

	return assignment, nil
}

func (r *assignmentRepository) GetByTaskAndClass(ctx context.Context, taskID, classID uint) (models.Assignment, error) {
	var assignment models.Assignment
	if err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Where("class_id = ?", classID).
		First(&assignment).Error; err != nil {
		return models.Assignment{}, err
	}

	return assignment, nil
}

func (r *assignmentRepository) ListPublishedByClass(ctx context.Context, classID uint) ([]models.Assignment, error) {
	var assignments []models.Assignment
	if err := r.db.WithContext(ctx).
		Where("class_id = ?", classID).
		Where("published = ?", true).
		Order("id ASC").
		Find(&assignments).Error; err != nil {
		return nil, err
	}

	return assignments, nil
}

// EnsureAssignment inserts the assignment, or is a no-op when a row for the
// same (task_id, class_id) already exists. The caller always gets the row
// that won.
func (r *assignmentRepository) EnsureAssignment(ctx context.Context, assignment *models.Assignment) error {
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "task_id"}, {Name: "class_id"}},
			DoNothing: true,
		}).
		Create(assignment).Error; err != nil {
		return err
	}

	if assignment.ID == 0 {
		existing, err := r.GetByTaskAndClass(ctx, assignment.TaskID, assignment.ClassID)
		if err != nil {
			return err
		}
		*assignment = existing
	}

	return nil
}

func (r *assignmentRepository) Update(ctx context.Context, assignment *models.Assignment) error {
	return r.db.WithContext(ctx).Save(assignment).Error
}

func (r *assignmentRepository) GetStudentAssignment(ctx context.Context, id uint) (models.StudentAssignment, error) {
	var sa models.StudentAssignment
	if err := r.db.WithContext(ctx).
		Preload("Assignment").
		Preload("Assignment.Task").
		First(&sa, id).Error; err != nil {
		return models.StudentAssignment{}, err
	}

	return sa, nil
}

func (r *assignmentRepository) FindStudentAssignment(ctx context.Context, assignmentID, studentID uint) (models.StudentAssignment, error) {
	var sa models.StudentAssignment
	if err := r.db.WithContext(ctx).
		Preload("Assignment").
		Preload("Assignment.Task").
		Where("assignment_id = ?", assignmentID).
		Where("student_id = ?", studentID).
		First(&sa).Error; err != nil {
		return models.StudentAssignment{}, err
	}

	return sa, nil
}

func (r *assignmentRepository) ListStudentAssignments(ctx context.Context, filter StudentAssignmentFilter) ([]models.StudentAssignment, error) {
	query := r.db.WithContext(ctx).Model(&models.StudentAssignment{}).Preload("Assignment")

	if filter.AssignmentID != nil {
		query = query.Where("assignment_id = ?", *filter.AssignmentID)
	}
	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var rows []models.StudentAssignment
	if err := query.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	return rows, nil
}

// EnsureStudentAssignment inserts a fresh not_started row, or returns the
// existing one when (assignment_id, student_id) is already present. Safe
// under concurrent invocation from the provisioner and the listener.
func (r *assignmentRepository) EnsureStudentAssignment(ctx context.Context, assignmentID, studentID uint) (models.StudentAssignment, error) {
	sa := models.StudentAssignment{
		AssignmentID: assignmentID,
		StudentID:    studentID,
		Status:       models.StudentAssignmentStatusNotStarted,
	}

	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "assignment_id"}, {Name: "student_id"}},
			DoNothing: true,
		}).
		Create(&sa).Error; err != nil {
		return models.StudentAssignment{}, err
	}

	if sa.ID == 0 {
		return r.FindStudentAssignment(ctx, assignmentID, studentID)
	}

	return sa, nil
}

func (r *assignmentRepository) UpdateStudentAssignmentStatus(ctx context.Context, sa *models.StudentAssignment, expectedStatus string) error {
	result := r.db.WithContext(ctx).
		Model(&models.StudentAssignment{}).
		Where("id = ?", sa.ID).
		Where("status = ?", expectedStatus).
		Updates(map[string]interface{}{
			"status":        sa.Status,
			"attempt_count": sa.AttemptCount,
			"score":         sa.Score,
			"started_at":    sa.StartedAt,
			"completed_at":  sa.CompletedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}
