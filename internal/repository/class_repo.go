package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/linguahub/lingua-go-api/internal/models"
)

// ClassRepository provides access to classes and their enrollments.
type ClassRepository interface {
	GetByID(ctx context.Context, id uint) (models.Class, error)
	Create(ctx context.Context, class *models.Class) error
	ListActiveEnrollments(ctx context.Context, classID uint) ([]models.Enrollment, error)
	GetEnrollment(ctx context.Context, classID, studentID uint) (models.Enrollment, error)
	UpsertEnrollment(ctx context.Context, enrollment *models.Enrollment) error
	UpdateEnrollmentStatus(ctx context.Context, classID, studentID uint, status string) (models.Enrollment, error)
}

type classRepository struct {
	db *gorm.DB
}

// NewClassRepository instantiates a GORM-backed class repository.
func NewClassRepository(db *gorm.DB) ClassRepository {
	return &classRepository{db: db}
}

func (r *classRepository) GetByID(ctx context.Context, id uint) (models.Class, error) {
	var class models.Class
	if err := r.db.WithContext(ctx).First(&class, id).Error; err != nil {
		return models.Class{}, err
	}

	return class, nil
}

func (r *classRepository) Create(ctx context.Context, class *models.Class) error {
	return r.db.WithContext(ctx).Create(class).Error
}

func (r *classRepository) ListActiveEnrollments(ctx context.Context, classID uint) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	if err := r.db.WithContext(ctx).
		Where("class_id = ?", classID).
		Where("status = ?", models.EnrollmentStatusActive).
		Order("student_id ASC").
		Find(&enrollments).Error; err != nil {
		return nil, err
	}

	return enrollments, nil
}

func (r *classRepository) GetEnrollment(ctx context.Context, classID, studentID uint) (models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := r.db.WithContext(ctx).
		Where("class_id = ?", classID).
		Where("student_id = ?", studentID).
		First(&enrollment).Error; err != nil {
		return models.Enrollment{}, err
	}

	return enrollment, nil
}

// UpsertEnrollment inserts the enrollment or leaves an existing
// (class_id, student_id) row untouched. Re-joins go through
// UpdateEnrollmentStatus instead so history is preserved.
func (r *classRepository) UpsertEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "class_id"}, {Name: "student_id"}},
			DoNothing: true,
		}).
		Create(enrollment).Error; err != nil {
		return err
	}

	// A conflicted insert leaves the struct without its ID; reload it.
	if enrollment.ID == 0 {
		existing, err := r.GetEnrollment(ctx, enrollment.ClassID, enrollment.StudentID)
		if err != nil {
			return err
		}
		*enrollment = existing
	}

	return nil
}

func (r *classRepository) UpdateEnrollmentStatus(ctx context.Context, classID, studentID uint, status string) (models.Enrollment, error) {
	enrollment, err := r.GetEnrollment(ctx, classID, studentID)
	if err != nil {
		return models.Enrollment{}, err
	}

	enrollment.Status = status
	if err := r.db.WithContext(ctx).Save(&enrollment).Error; err != nil {
		return models.Enrollment{}, err
	}

	return enrollment, nil
}
