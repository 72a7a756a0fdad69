package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/linguahub/lingua-go-api/internal/models"
)

// SubmissionRepository defines data operations for attempt submissions and
// their per-question answers.
type SubmissionRepository interface {
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	GetOpenByStudentAssignment(ctx context.Context, studentAssignmentID uint) (models.Submission, error)
	ListByStudentAssignment(ctx context.Context, studentAssignmentID uint) ([]models.Submission, error)
	ListGradedScores(ctx context.Context, taskID, studentID uint) ([]float64, error)
	Create(ctx context.Context, submission *models.Submission) error
	Update(ctx context.Context, submission *models.Submission) error
	SaveAnswer(ctx context.Context, answer *models.QuestionAnswer) error
	UpdateAnswers(ctx context.Context, answers []models.QuestionAnswer) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("question_id ASC")
		}).
		Preload("Answers.Question").
		First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) GetOpenByStudentAssignment(ctx context.Context, studentAssignmentID uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).
		Preload("Answers").
		Preload("Answers.Question").
		Where("student_assignment_id = ?", studentAssignmentID).
		Where("status = ?", models.StudentAssignmentStatusInProgress).
		Order("attempt_number DESC").
		First(&submission).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) ListByStudentAssignment(ctx context.Context, studentAssignmentID uint) ([]models.Submission, error) {
	var submissions []models.Submission
	if err := r.db.WithContext(ctx).
		Where("student_assignment_id = ?", studentAssignmentID).
		Order("attempt_number ASC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

// ListGradedScores returns scores of finished attempts in chronological
// order, the input for progress and improvement calculations.
func (r *submissionRepository) ListGradedScores(ctx context.Context, taskID, studentID uint) ([]float64, error) {
	var scores []float64
	if err := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("task_id = ?", taskID).
		Where("student_id = ?", studentID).
		Where("score IS NOT NULL").
		Order("attempt_number ASC").
		Pluck("score", &scores).Error; err != nil {
		return nil, err
	}

	return scores, nil
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) Update(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Save(submission).Error
}

func (r *submissionRepository) SaveAnswer(ctx context.Context, answer *models.QuestionAnswer) error {
	return r.db.WithContext(ctx).Save(answer).Error
}

func (r *submissionRepository) UpdateAnswers(ctx context.Context, answers []models.QuestionAnswer) error {
	if len(answers) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range answers {
			if err := tx.Save(&answers[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
