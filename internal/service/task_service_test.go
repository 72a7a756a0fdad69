package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/linguahub/lingua-go-api/internal/dto"
	"github.com/linguahub/lingua-go-api/internal/events"
	"github.com/linguahub/lingua-go-api/internal/models"
)

func (env *serviceTestEnv) taskService() TaskService {
	validate := validator.New(validator.WithRequiredStructEnabled())
	dispatcher := events.NewInProcessDispatcher(env.provisioner())
	return NewTaskService(env.tasks, dispatcher, validate, nil, env.logger)
}

func TestCreateTaskWithQuestions(t *testing.T) {
	env := newServiceTestEnv(t)
	svc := env.taskService()

	task, err := svc.Create(context.Background(), 7, dto.TaskCreateRequest{
		Title:    "Reading section 1",
		Modality: models.ModalityReading,
		Questions: []dto.QuestionCreateRequest{
			{Type: "single_select", Prompt: "Pick one", CorrectAnswer: datatypes.JSON(`"A"`), Points: 5},
			{Type: "short_answer", Prompt: "Name it", CorrectAnswer: datatypes.JSON(`["reef"]`), Points: 5},
		},
	})
	require.NoError(t, err)
	require.NotZero(t, task.ID)
	require.Len(t, task.Questions, 2)
	require.Equal(t, 0, task.Questions[0].Position)
	require.Equal(t, 1, task.Questions[1].Position)
}

func TestCreateTaskRejectsUnknownModality(t *testing.T) {
	env := newServiceTestEnv(t)
	svc := env.taskService()

	_, err := svc.Create(context.Background(), 7, dto.TaskCreateRequest{Title: "Bad one", Modality: "telepathy"})
	require.ErrorIs(t, err, ErrInvalidModality)
}

func TestPublishDispatchesFanOut(t *testing.T) {
	env := newServiceTestEnv(t)
	class := env.seedClass(t)
	env.seedEnrollment(t, class.ID, 1, models.EnrollmentStatusActive)
	env.seedEnrollment(t, class.ID, 2, models.EnrollmentStatusActive)

	task := env.seedTask(t, class.ID, models.ModalityReading, false)
	svc := env.taskService()

	published, err := svc.Publish(context.Background(), task.ID, 7, dto.TaskPublishRequest{})
	require.NoError(t, err)
	require.True(t, published.Published)

	require.Equal(t, int64(2), env.countStudentAssignments(t))
}

func TestPublishToExplicitOtherClass(t *testing.T) {
	env := newServiceTestEnv(t)
	owning := env.seedClass(t)
	target := env.seedClass(t)
	env.seedEnrollment(t, target.ID, 1, models.EnrollmentStatusActive)

	task := env.seedTask(t, owning.ID, models.ModalityReading, false)
	svc := env.taskService()

	// Naming the class in the request overrides the task's owning class.
	published, err := svc.Publish(context.Background(), task.ID, 7, dto.TaskPublishRequest{ClassID: &target.ID})
	require.NoError(t, err)
	require.True(t, published.Published)

	var assignment models.Assignment
	require.NoError(t, env.db.Where("task_id = ?", task.ID).First(&assignment).Error)
	require.Equal(t, target.ID, assignment.ClassID)
	require.Equal(t, int64(1), env.countStudentAssignments(t))
}

func TestPublishRefusesArchivedTask(t *testing.T) {
	env := newServiceTestEnv(t)
	class := env.seedClass(t)
	task := env.seedTask(t, class.ID, models.ModalityReading, false)
	require.NoError(t, env.db.Model(&models.Task{}).Where("id = ?", task.ID).Update("lifecycle", models.TaskLifecycleArchived).Error)

	svc := env.taskService()
	_, err := svc.Publish(context.Background(), task.ID, 7, dto.TaskPublishRequest{})
	require.ErrorIs(t, err, ErrTaskArchived)
}

func TestDeleteArchivesTaskWithSubmissions(t *testing.T) {
	env := newServiceTestEnv(t)
	class := env.seedClass(t)
	task := env.seedTask(t, class.ID, models.ModalityReading, true)

	submission := models.Submission{StudentAssignmentID: 1, TaskID: task.ID, StudentID: 42, AttemptNumber: 1, Status: models.StudentAssignmentStatusCompleted}
	require.NoError(t, env.db.Create(&submission).Error)

	svc := env.taskService()
	err := svc.Delete(context.Background(), task.ID, 7)
	require.ErrorIs(t, err, ErrTaskHasSubmissions)

	var reloaded models.Task
	require.NoError(t, env.db.First(&reloaded, task.ID).Error)
	require.True(t, reloaded.IsArchived())
	require.False(t, reloaded.Published)

	// Archived tasks refuse deletion outright.
	err = svc.Delete(context.Background(), task.ID, 7)
	require.ErrorIs(t, err, ErrTaskArchived)
}

func TestDeleteRemovesUnusedTask(t *testing.T) {
	env := newServiceTestEnv(t)
	class := env.seedClass(t)
	task := env.seedTask(t, class.ID, models.ModalityReading, false)

	svc := env.taskService()
	require.NoError(t, svc.Delete(context.Background(), task.ID, 7))

	var count int64
	require.NoError(t, env.db.Model(&models.Task{}).Count(&count).Error)
	require.Zero(t, count)
}
