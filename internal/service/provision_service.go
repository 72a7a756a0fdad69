package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/linguahub/lingua-go-api/internal/events"
	"github.com/linguahub/lingua-go-api/internal/models"
	"github.com/linguahub/lingua-go-api/internal/observability"
	"github.com/linguahub/lingua-go-api/internal/repository"
)

// ErrTaskNotPublishable indicates the task is not marked published at
// provisioning time, a defensive re-check against stale events.
var ErrTaskNotPublishable = errors.New("task is not publishable")

// ErrClassMismatch indicates the task belongs to a different class than the
// event targets and no explicit override was supplied.
var ErrClassMismatch = errors.New("task does not belong to the target class")

// FanOutError collects per-student provisioning failures. A failed upsert
// for one student never aborts the loop for the rest.
type FanOutError struct {
	AssignmentID uint
	Failures     map[uint]error
}

func (e *FanOutError) Error() string {
	return fmt.Sprintf("fan-out for assignment %d failed for %d students", e.AssignmentID, len(e.Failures))
}

// assignmentModalities maps task modalities onto assignment modalities. The
// mapping is the identity today but stays explicit so the derivation has one
// owner.
var assignmentModalities = map[string]string{
	models.ModalityReading:   models.ModalityReading,
	models.ModalityWriting:   models.ModalityWriting,
	models.ModalityListening: models.ModalityListening,
	models.ModalitySpeaking:  models.ModalitySpeaking,
}

// ProvisionService converges the two provisioning triggers onto the same
// invariant: every active student holds exactly one StudentAssignment per
// published assignment, regardless of event ordering, duplication or
// concurrent delivery. It is the single events.Handler registered with the
// dispatcher at startup.
type ProvisionService interface {
	events.Handler
	// EnsureStudentAssignment is the shared upsert primitive; exposed so
	// lifecycle code can lazily repair a missing row.
	EnsureStudentAssignment(ctx context.Context, assignmentID, studentID uint) (models.StudentAssignment, error)
}

type provisionService struct {
	tasks       repository.TaskRepository
	classes     repository.ClassRepository
	assignments repository.AssignmentRepository
	activity    ActivityRecorder
	logger      zerolog.Logger
	now         func() time.Time
}

// NewProvisionService builds the provisioning engine.
func NewProvisionService(tasks repository.TaskRepository, classes repository.ClassRepository, assignments repository.AssignmentRepository, activity ActivityRecorder, logger zerolog.Logger) ProvisionService {
	return &provisionService{
		tasks:       tasks,
		classes:     classes,
		assignments: assignments,
		activity:    activity,
		logger:      logger.With().Str("component", "provision_service").Logger(),
		now:         time.Now,
	}
}

// HandleTaskPublished ensures one Assignment per (task, class) and fans out
// one StudentAssignment per active enrollment. Re-delivery is a no-op for
// the assignment row but always re-scans enrollments, since students may
// have joined between deliveries.
func (s *provisionService) HandleTaskPublished(ctx context.Context, event events.TaskPublished) error {
	task, err := s.tasks.GetByID(ctx, event.TaskID)
	if err != nil {
		return fmt.Errorf("failed to load task %d: %w", event.TaskID, err)
	}

	if !task.Published {
		return ErrTaskNotPublishable
	}

	// An explicitly named target class is the publisher's call; the owning
	// class only binds when the event fell back to it.
	if !event.ExplicitClass && task.ClassID != nil && *task.ClassID != event.ClassID {
		return fmt.Errorf("task %d is owned by class %d, event targets class %d: %w",
			task.ID, *task.ClassID, event.ClassID, ErrClassMismatch)
	}

	assignment := models.Assignment{
		TaskID:      task.ID,
		ClassID:     event.ClassID,
		Modality:    assignmentModalities[task.Modality],
		Title:       task.Title,
		Description: task.Description,
		Published:   true,
		Source:      models.AssignmentSourceAutoPublish,
		DueDate:     event.DueDate,
	}
	if event.Title != "" {
		assignment.Title = event.Title
	}
	if event.Description != "" {
		assignment.Description = event.Description
	}

	if err := s.assignments.EnsureAssignment(ctx, &assignment); err != nil {
		return fmt.Errorf("failed to ensure assignment for task %d class %d: %w", task.ID, event.ClassID, err)
	}

	enrollments, err := s.classes.ListActiveEnrollments(ctx, event.ClassID)
	if err != nil {
		return fmt.Errorf("failed to list enrollments for class %d: %w", event.ClassID, err)
	}

	if err := s.fanOut(ctx, assignment.ID, enrollments); err != nil {
		return err
	}

	s.recordActivity(ctx, task.AuthorID, "task_published", "assignment", assignment.ID, map[string]interface{}{
		"task_id":  task.ID,
		"class_id": event.ClassID,
		"students": len(enrollments),
	})

	s.logger.Info().
		Uint("task_id", task.ID).
		Uint("class_id", event.ClassID).
		Uint("assignment_id", assignment.ID).
		Int("students", len(enrollments)).
		Msg("task provisioned to class")

	return nil
}

// HandleEnrollmentChanged backfills the student's rows for every already
// published assignment in the class. Transitions that do not end in active
// are ignored, so deactivations never create rows.
func (s *provisionService) HandleEnrollmentChanged(ctx context.Context, event events.EnrollmentChanged) error {
	if event.ResultingStatus != models.EnrollmentStatusActive {
		return nil
	}

	enrollment, err := s.classes.GetEnrollment(ctx, event.ClassID, event.StudentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn().
				Uint("student_id", event.StudentID).
				Uint("class_id", event.ClassID).
				Msg("enrollment event without enrollment row")
			return nil
		}
		return fmt.Errorf("failed to load enrollment: %w", err)
	}

	if !enrollment.IsActive() {
		return nil
	}

	assignments, err := s.assignments.ListPublishedByClass(ctx, event.ClassID)
	if err != nil {
		return fmt.Errorf("failed to list assignments for class %d: %w", event.ClassID, err)
	}

	failures := map[uint]error{}
	for _, assignment := range assignments {
		if _, err := s.assignments.EnsureStudentAssignment(ctx, assignment.ID, event.StudentID); err != nil {
			failures[assignment.ID] = err
			continue
		}
		observability.FanOutUpserts().WithLabelValues("enrollment").Inc()
	}

	if len(failures) > 0 {
		for assignmentID, failure := range failures {
			s.logger.Error().Err(failure).
				Uint("assignment_id", assignmentID).
				Uint("student_id", event.StudentID).
				Msg("student assignment upsert failed")
		}
		return &FanOutError{Failures: failures}
	}

	s.logger.Info().
		Uint("student_id", event.StudentID).
		Uint("class_id", event.ClassID).
		Int("assignments", len(assignments)).
		Msg("enrollment fan-out complete")

	return nil
}

func (s *provisionService) EnsureStudentAssignment(ctx context.Context, assignmentID, studentID uint) (models.StudentAssignment, error) {
	return s.assignments.EnsureStudentAssignment(ctx, assignmentID, studentID)
}

// fanOut upserts one row per enrollment, collecting failures instead of
// aborting so one bad student never blocks the batch.
func (s *provisionService) fanOut(ctx context.Context, assignmentID uint, enrollments []models.Enrollment) error {
	failures := map[uint]error{}
	for _, enrollment := range enrollments {
		if !enrollment.IsActive() {
			continue
		}
		if _, err := s.assignments.EnsureStudentAssignment(ctx, assignmentID, enrollment.StudentID); err != nil {
			failures[enrollment.StudentID] = err
			continue
		}
		observability.FanOutUpserts().WithLabelValues("publish").Inc()
	}

	if len(failures) > 0 {
		for studentID, failure := range failures {
			s.logger.Error().Err(failure).
				Uint("assignment_id", assignmentID).
				Uint("student_id", studentID).
				Msg("student assignment upsert failed")
		}
		return &FanOutError{AssignmentID: assignmentID, Failures: failures}
	}

	return nil
}

func (s *provisionService) recordActivity(ctx context.Context, actorID uint, action, entityType string, entityID uint, metadata map[string]interface{}) {
	if s.activity == nil {
		return
	}

	id := entityID
	if _, err := s.activity.Record(ctx, ActivityEntry{
		ActorID:    actorID,
		ActorRole:  "teacher",
		Action:     action,
		EntityType: entityType,
		EntityID:   &id,
		Metadata:   metadata,
	}); err != nil {
		s.logger.Warn().Err(err).Str("action", action).Msg("failed to record activity")
	}
}
