package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/linguahub/lingua-go-api/internal/dto"
	"github.com/linguahub/lingua-go-api/internal/events"
	"github.com/linguahub/lingua-go-api/internal/models"
	"github.com/linguahub/lingua-go-api/internal/repository"
)

var (
	// ErrClassNotFound indicates the target class does not exist.
	ErrClassNotFound = errors.New("class not found")
	// ErrStudentNotFound indicates the student record does not exist.
	ErrStudentNotFound = errors.New("student not found")
	// ErrEnrollmentNotFound indicates the student is not enrolled in the class.
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	// ErrInvalidEnrollmentStatus indicates an unsupported status value.
	ErrInvalidEnrollmentStatus = errors.New("invalid enrollment status")
)

// EnrollmentService manages class membership and emits the enrollment events
// that drive assignment fan-out. Only transitions that end in active status
// are dispatched; deactivations never reach the provisioner.
type EnrollmentService interface {
	Join(ctx context.Context, payload dto.EnrollmentRequest) (dto.EnrollmentResponse, error)
	SetStatus(ctx context.Context, payload dto.EnrollmentStatusRequest) (dto.EnrollmentResponse, error)
	ListActive(ctx context.Context, classID uint) ([]dto.EnrollmentResponse, error)
}

type enrollmentService struct {
	classes    repository.ClassRepository
	students   repository.StudentRepository
	dispatcher events.Dispatcher
	validator  *validator.Validate
	logger     zerolog.Logger
	now        func() time.Time
}

// NewEnrollmentService builds the enrollment service.
func NewEnrollmentService(classes repository.ClassRepository, students repository.StudentRepository, dispatcher events.Dispatcher, validate *validator.Validate, logger zerolog.Logger) EnrollmentService {
	return &enrollmentService{
		classes:    classes,
		students:   students,
		dispatcher: dispatcher,
		validator:  validate,
		logger:     logger.With().Str("component", "enrollment_service").Logger(),
		now:        time.Now,
	}
}

// Join enrolls the student as active, or reactivates an existing inactive
// enrollment. Either way an event is dispatched so the student picks up
// every already-published assignment with no backfill job.
func (s *enrollmentService) Join(ctx context.Context, payload dto.EnrollmentRequest) (dto.EnrollmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.EnrollmentResponse{}, err
	}

	if _, err := s.classes.GetByID(ctx, payload.ClassID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EnrollmentResponse{}, ErrClassNotFound
		}
		return dto.EnrollmentResponse{}, err
	}

	if _, err := s.students.GetByID(ctx, payload.StudentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EnrollmentResponse{}, ErrStudentNotFound
		}
		return dto.EnrollmentResponse{}, err
	}

	enrollment := models.Enrollment{
		ClassID:   payload.ClassID,
		StudentID: payload.StudentID,
		Status:    models.EnrollmentStatusActive,
		JoinedAt:  s.now(),
	}
	if err := s.classes.UpsertEnrollment(ctx, &enrollment); err != nil {
		return dto.EnrollmentResponse{}, fmt.Errorf("failed to enroll student: %w", err)
	}

	// An earlier inactive row survives the upsert untouched; flip it.
	if !enrollment.IsActive() {
		updated, err := s.classes.UpdateEnrollmentStatus(ctx, payload.ClassID, payload.StudentID, models.EnrollmentStatusActive)
		if err != nil {
			return dto.EnrollmentResponse{}, err
		}
		enrollment = updated
	}

	if err := s.dispatch(ctx, enrollment); err != nil {
		return dto.EnrollmentResponse{}, err
	}

	s.logger.Info().
		Uint("class_id", enrollment.ClassID).
		Uint("student_id", enrollment.StudentID).
		Msg("student enrolled")

	return dto.NewEnrollmentResponse(enrollment), nil
}

// SetStatus toggles an enrollment between active and inactive. Transitions
// into active dispatch a fan-out event; transitions out of active do not.
func (s *enrollmentService) SetStatus(ctx context.Context, payload dto.EnrollmentStatusRequest) (dto.EnrollmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.EnrollmentResponse{}, err
	}

	if payload.Status != models.EnrollmentStatusActive && payload.Status != models.EnrollmentStatusInactive {
		return dto.EnrollmentResponse{}, ErrInvalidEnrollmentStatus
	}

	current, err := s.classes.GetEnrollment(ctx, payload.ClassID, payload.StudentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EnrollmentResponse{}, ErrEnrollmentNotFound
		}
		return dto.EnrollmentResponse{}, err
	}

	becameActive := !current.IsActive() && payload.Status == models.EnrollmentStatusActive

	enrollment, err := s.classes.UpdateEnrollmentStatus(ctx, payload.ClassID, payload.StudentID, payload.Status)
	if err != nil {
		return dto.EnrollmentResponse{}, err
	}

	if becameActive {
		if err := s.dispatch(ctx, enrollment); err != nil {
			return dto.EnrollmentResponse{}, err
		}
	}

	s.logger.Info().
		Uint("class_id", enrollment.ClassID).
		Uint("student_id", enrollment.StudentID).
		Str("status", enrollment.Status).
		Msg("enrollment status updated")

	return dto.NewEnrollmentResponse(enrollment), nil
}

func (s *enrollmentService) ListActive(ctx context.Context, classID uint) ([]dto.EnrollmentResponse, error) {
	enrollments, err := s.classes.ListActiveEnrollments(ctx, classID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.EnrollmentResponse, 0, len(enrollments))
	for _, enrollment := range enrollments {
		responses = append(responses, dto.NewEnrollmentResponse(enrollment))
	}

	return responses, nil
}

func (s *enrollmentService) dispatch(ctx context.Context, enrollment models.Enrollment) error {
	event := events.EnrollmentChanged{
		StudentID:       enrollment.StudentID,
		ClassID:         enrollment.ClassID,
		ResultingStatus: enrollment.Status,
		EmittedAt:       s.now(),
	}
	if err := s.dispatcher.DispatchEnrollmentChanged(ctx, event); err != nil {
		return fmt.Errorf("failed to dispatch enrollment event: %w", err)
	}
	return nil
}
