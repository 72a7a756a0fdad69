package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/linguahub/lingua-go-api/internal/models"
)

func setupAssignmentTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Student{},
		&models.Class{},
		&models.Enrollment{},
		&models.Task{},
		&models.Question{},
		&models.Assignment{},
		&models.StudentAssignment{},
		&models.Submission{},
		&models.QuestionAnswer{},
	))

	return db
}

func seedTaskAndClass(t *testing.T, db *gorm.DB) (models.Task, models.Class) {
	t.Helper()

	class := models.Class{Name: "Evening B2", TeacherID: 7}
	require.NoError(t, db.Create(&class).Error)

	task := models.Task{
		Title:     "Listening section 2",
		Modality:  models.ModalityListening,
		ClassID:   &class.ID,
		AuthorID:  7,
		Published: true,
		Lifecycle: models.TaskLifecycleActive,
	}
	require.NoError(t, db.Create(&task).Error)

	return task, class
}

func TestEnsureAssignmentIsIdempotent(t *testing.T) {
	db := setupAssignmentTestDB(t)
	repo := NewAssignmentRepository(db)
	task, class := seedTaskAndClass(t, db)

	first := models.Assignment{
		TaskID:    task.ID,
		ClassID:   class.ID,
		Modality:  task.Modality,
		Title:     task.Title,
		Published: true,
		Source:    models.AssignmentSourceAutoPublish,
	}
	require.NoError(t, repo.EnsureAssignment(context.Background(), &first))
	require.NotZero(t, first.ID)

	duplicate := models.Assignment{
		TaskID:    task.ID,
		ClassID:   class.ID,
		Modality:  task.Modality,
		Title:     "a different title that must not win",
		Published: true,
		Source:    models.AssignmentSourceAutoPublish,
	}
	require.NoError(t, repo.EnsureAssignment(context.Background(), &duplicate))
	require.Equal(t, first.ID, duplicate.ID)
	require.Equal(t, task.Title, duplicate.Title)

	var count int64
	require.NoError(t, db.Model(&models.Assignment{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestEnsureStudentAssignmentAbsorbsDuplicates(t *testing.T) {
	db := setupAssignmentTestDB(t)
	repo := NewAssignmentRepository(db)
	task, class := seedTaskAndClass(t, db)

	assignment := models.Assignment{TaskID: task.ID, ClassID: class.ID, Modality: task.Modality, Title: task.Title, Published: true}
	require.NoError(t, repo.EnsureAssignment(context.Background(), &assignment))

	first, err := repo.EnsureStudentAssignment(context.Background(), assignment.ID, 42)
	require.NoError(t, err)
	require.Equal(t, models.StudentAssignmentStatusNotStarted, first.Status)
	require.Zero(t, first.AttemptCount)

	second, err := repo.EnsureStudentAssignment(context.Background(), assignment.ID, 42)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&models.StudentAssignment{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestUpdateStudentAssignmentStatusIsCompareAndSwap(t *testing.T) {
	db := setupAssignmentTestDB(t)
	repo := NewAssignmentRepository(db)
	task, class := seedTaskAndClass(t, db)

	assignment := models.Assignment{TaskID: task.ID, ClassID: class.ID, Modality: task.Modality, Title: task.Title, Published: true}
	require.NoError(t, repo.EnsureAssignment(context.Background(), &assignment))

	sa, err := repo.EnsureStudentAssignment(context.Background(), assignment.ID, 42)
	require.NoError(t, err)

	sa.Status = models.StudentAssignmentStatusInProgress
	sa.AttemptCount = 1
	require.NoError(t, repo.UpdateStudentAssignmentStatus(context.Background(), &sa, models.StudentAssignmentStatusNotStarted))

	// A second writer still holding the stale status must lose.
	stale := sa
	stale.Status = models.StudentAssignmentStatusInProgress
	err = repo.UpdateStudentAssignmentStatus(context.Background(), &stale, models.StudentAssignmentStatusNotStarted)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	reloaded, err := repo.GetStudentAssignment(context.Background(), sa.ID)
	require.NoError(t, err)
	require.Equal(t, models.StudentAssignmentStatusInProgress, reloaded.Status)
	require.Equal(t, 1, reloaded.AttemptCount)
}

func TestUpsertEnrollmentKeepsExistingRow(t *testing.T) {
	db := setupAssignmentTestDB(t)
	repo := NewClassRepository(db)
	_, class := seedTaskAndClass(t, db)

	enrollment := models.Enrollment{ClassID: class.ID, StudentID: 42, Status: models.EnrollmentStatusActive}
	require.NoError(t, repo.UpsertEnrollment(context.Background(), &enrollment))
	require.NotZero(t, enrollment.ID)

	again := models.Enrollment{ClassID: class.ID, StudentID: 42, Status: models.EnrollmentStatusInactive}
	require.NoError(t, repo.UpsertEnrollment(context.Background(), &again))
	require.Equal(t, enrollment.ID, again.ID)
	require.Equal(t, models.EnrollmentStatusActive, again.Status)
}
