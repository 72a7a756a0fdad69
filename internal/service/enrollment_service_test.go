package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/linguahub/lingua-go-api/internal/dto"
	"github.com/linguahub/lingua-go-api/internal/events"
	"github.com/linguahub/lingua-go-api/internal/models"
)

func (env *serviceTestEnv) enrollmentService() EnrollmentService {
	validate := validator.New(validator.WithRequiredStructEnabled())
	dispatcher := events.NewInProcessDispatcher(env.provisioner())
	return NewEnrollmentService(env.classes, env.students, dispatcher, validate, env.logger)
}

func TestJoinBackfillsPublishedAssignments(t *testing.T) {
	env := newServiceTestEnv(t)
	class := env.seedClass(t)
	task := env.seedTask(t, class.ID, models.ModalityReading, true)

	provisioner := env.provisioner()
	require.NoError(t, provisioner.HandleTaskPublished(context.Background(), events.TaskPublished{TaskID: task.ID, ClassID: class.ID}))

	env.seedStudent(t, 42)
	svc := env.enrollmentService()
	enrollment, err := svc.Join(context.Background(), dto.EnrollmentRequest{ClassID: class.ID, StudentID: 42})
	require.NoError(t, err)
	require.Equal(t, models.EnrollmentStatusActive, enrollment.Status)

	require.Equal(t, int64(1), env.countStudentAssignments(t))
}

func TestJoinUnknownStudentFails(t *testing.T) {
	env := newServiceTestEnv(t)
	class := env.seedClass(t)

	svc := env.enrollmentService()
	_, err := svc.Join(context.Background(), dto.EnrollmentRequest{ClassID: class.ID, StudentID: 999})
	require.ErrorIs(t, err, ErrStudentNotFound)
}

func TestJoinUnknownClassFails(t *testing.T) {
	env := newServiceTestEnv(t)
	svc := env.enrollmentService()

	_, err := svc.Join(context.Background(), dto.EnrollmentRequest{ClassID: 999, StudentID: 42})
	require.ErrorIs(t, err, ErrClassNotFound)
}

func TestJoinReactivatesInactiveEnrollment(t *testing.T) {
	env := newServiceTestEnv(t)
	class := env.seedClass(t)
	env.seedStudent(t, 42)
	env.seedEnrollment(t, class.ID, 42, models.EnrollmentStatusInactive)

	svc := env.enrollmentService()
	enrollment, err := svc.Join(context.Background(), dto.EnrollmentRequest{ClassID: class.ID, StudentID: 42})
	require.NoError(t, err)
	require.Equal(t, models.EnrollmentStatusActive, enrollment.Status)

	var count int64
	require.NoError(t, env.db.Model(&models.Enrollment{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestSetStatusDispatchesOnlyOnActivation(t *testing.T) {
	env := newServiceTestEnv(t)
	class := env.seedClass(t)
	task := env.seedTask(t, class.ID, models.ModalityReading, true)

	provisioner := env.provisioner()
	require.NoError(t, provisioner.HandleTaskPublished(context.Background(), events.TaskPublished{TaskID: task.ID, ClassID: class.ID}))

	env.seedEnrollment(t, class.ID, 42, models.EnrollmentStatusInactive)
	svc := env.enrollmentService()

	// Deactivating an already inactive row must not provision anything.
	_, err := svc.SetStatus(context.Background(), dto.EnrollmentStatusRequest{ClassID: class.ID, StudentID: 42, Status: models.EnrollmentStatusInactive})
	require.NoError(t, err)
	require.Zero(t, env.countStudentAssignments(t))

	// The flip into active triggers the backfill.
	updated, err := svc.SetStatus(context.Background(), dto.EnrollmentStatusRequest{ClassID: class.ID, StudentID: 42, Status: models.EnrollmentStatusActive})
	require.NoError(t, err)
	require.Equal(t, models.EnrollmentStatusActive, updated.Status)
	require.Equal(t, int64(1), env.countStudentAssignments(t))
}

func TestSetStatusRejectsUnknownStatus(t *testing.T) {
	env := newServiceTestEnv(t)
	class := env.seedClass(t)
	env.seedEnrollment(t, class.ID, 42, models.EnrollmentStatusActive)

	svc := env.enrollmentService()
	_, err := svc.SetStatus(context.Background(), dto.EnrollmentStatusRequest{ClassID: class.ID, StudentID: 42, Status: "suspended"})
	require.ErrorIs(t, err, ErrInvalidEnrollmentStatus)
}
