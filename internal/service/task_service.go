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
	// ErrTaskNotFound indicates the requested task does not exist.
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskArchived indicates the task is archived and refuses mutation or deletion.
	ErrTaskArchived = errors.New("task is archived")
	// ErrTaskHasSubmissions indicates graded work exists, so the task must be
	// archived instead of deleted.
	ErrTaskHasSubmissions = errors.New("task has submissions and can only be archived")
	// ErrInvalidModality indicates an unsupported task modality.
	ErrInvalidModality = errors.New("invalid task modality")
)

// TaskService exposes task authoring use cases: creation, publication and
// the archive-instead-of-delete lifecycle.
type TaskService interface {
	Get(ctx context.Context, id uint) (dto.TaskResponse, error)
	List(ctx context.Context, filter repository.TaskFilter) ([]dto.TaskResponse, int64, error)
	Create(ctx context.Context, actorID uint, payload dto.TaskCreateRequest) (dto.TaskResponse, error)
	Publish(ctx context.Context, taskID uint, actorID uint, payload dto.TaskPublishRequest) (dto.TaskResponse, error)
	Unpublish(ctx context.Context, taskID uint, actorID uint) (dto.TaskResponse, error)
	Archive(ctx context.Context, taskID uint, actorID uint) (dto.TaskResponse, error)
	Delete(ctx context.Context, taskID uint, actorID uint) error
}

type taskService struct {
	repo       repository.TaskRepository
	dispatcher events.Dispatcher
	validator  *validator.Validate
	activity   ActivityRecorder
	logger     zerolog.Logger
	now        func() time.Time
}

// NewTaskService builds a new task service.
func NewTaskService(repo repository.TaskRepository, dispatcher events.Dispatcher, validate *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) TaskService {
	return &taskService{
		repo:       repo,
		dispatcher: dispatcher,
		validator:  validate,
		activity:   activity,
		logger:     logger.With().Str("component", "task_service").Logger(),
		now:        time.Now,
	}
}

func (s *taskService) Get(ctx context.Context, id uint) (dto.TaskResponse, error) {
	task, err := s.repo.GetWithQuestions(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TaskResponse{}, ErrTaskNotFound
		}
		return dto.TaskResponse{}, err
	}

	return dto.NewTaskResponse(task), nil
}

func (s *taskService) List(ctx context.Context, filter repository.TaskFilter) ([]dto.TaskResponse, int64, error) {
	tasks, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]dto.TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		responses = append(responses, dto.NewTaskResponse(task))
	}

	return responses, total, nil
}

func (s *taskService) Create(ctx context.Context, actorID uint, payload dto.TaskCreateRequest) (dto.TaskResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.TaskResponse{}, err
	}

	if _, ok := assignmentModalities[payload.Modality]; !ok {
		return dto.TaskResponse{}, ErrInvalidModality
	}

	task := models.Task{
		Title:            payload.Title,
		Description:      payload.Description,
		Modality:         payload.Modality,
		ClassID:          payload.ClassID,
		AuthorID:         actorID,
		Lifecycle:        models.TaskLifecycleActive,
		AllowRetake:      payload.AllowRetake,
		MaxAttempts:      payload.MaxAttempts,
		TimeLimitMinutes: payload.TimeLimitMinutes,
		EnforceComplete:  payload.EnforceComplete,
	}

	for i, questionPayload := range payload.Questions {
		task.Questions = append(task.Questions, models.Question{
			Position:      i,
			Type:          questionPayload.Type,
			Prompt:        questionPayload.Prompt,
			Options:       questionPayload.Options,
			CorrectAnswer: questionPayload.CorrectAnswer,
			Points:        questionPayload.Points,
			Required:      questionPayload.Required,
		})
	}

	if err := s.repo.Create(ctx, &task); err != nil {
		return dto.TaskResponse{}, err
	}

	s.logger.Info().Uint("task_id", task.ID).Str("modality", task.Modality).Msg("task created")

	return dto.NewTaskResponse(task), nil
}

// Publish flags the task as published and emits the provisioning event that
// drives the class fan-out. Emitting after the flag is persisted keeps the
// provisioner's defensive re-check meaningful.
func (s *taskService) Publish(ctx context.Context, taskID uint, actorID uint, payload dto.TaskPublishRequest) (dto.TaskResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.TaskResponse{}, err
	}

	task, err := s.repo.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TaskResponse{}, ErrTaskNotFound
		}
		return dto.TaskResponse{}, err
	}

	if task.IsArchived() {
		return dto.TaskResponse{}, ErrTaskArchived
	}

	classID := payload.ClassID
	if classID == nil {
		classID = task.ClassID
	}
	if classID == nil {
		return dto.TaskResponse{}, fmt.Errorf("task %d has no class to publish to", taskID)
	}

	if !task.Published {
		task.Published = true
		if err := s.repo.Update(ctx, &task); err != nil {
			return dto.TaskResponse{}, err
		}
	}

	event := events.TaskPublished{
		TaskID:        task.ID,
		ClassID:       *classID,
		ExplicitClass: payload.ClassID != nil,
		Title:         payload.Title,
		Description:   payload.Description,
		DueDate:       payload.DueDate,
		EmittedAt:     s.now(),
	}
	if err := s.dispatcher.DispatchTaskPublished(ctx, event); err != nil {
		return dto.TaskResponse{}, fmt.Errorf("failed to dispatch publish event: %w", err)
	}

	s.recordActivity(ctx, actorID, "task_publish_requested", task.ID, map[string]interface{}{"class_id": *classID})
	s.logger.Info().Uint("task_id", task.ID).Uint("class_id", *classID).Msg("task publish dispatched")

	return dto.NewTaskResponse(task), nil
}

func (s *taskService) Unpublish(ctx context.Context, taskID uint, actorID uint) (dto.TaskResponse, error) {
	task, err := s.repo.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TaskResponse{}, ErrTaskNotFound
		}
		return dto.TaskResponse{}, err
	}

	if task.Published {
		task.Published = false
		if err := s.repo.Update(ctx, &task); err != nil {
			return dto.TaskResponse{}, err
		}
	}

	s.recordActivity(ctx, actorID, "task_unpublished", task.ID, nil)

	return dto.NewTaskResponse(task), nil
}

// Archive retires a task that has graded work. The lifecycle flag is the
// explicit check for every destructive path; deletion never infers it from a
// submission count at delete time.
func (s *taskService) Archive(ctx context.Context, taskID uint, actorID uint) (dto.TaskResponse, error) {
	task, err := s.repo.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TaskResponse{}, ErrTaskNotFound
		}
		return dto.TaskResponse{}, err
	}

	if !task.IsArchived() {
		task.Lifecycle = models.TaskLifecycleArchived
		task.Published = false
		if err := s.repo.Update(ctx, &task); err != nil {
			return dto.TaskResponse{}, err
		}
	}

	s.recordActivity(ctx, actorID, "task_archived", task.ID, nil)
	s.logger.Info().Uint("task_id", task.ID).Msg("task archived")

	return dto.NewTaskResponse(task), nil
}

func (s *taskService) Delete(ctx context.Context, taskID uint, actorID uint) error {
	task, err := s.repo.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return err
	}

	if task.IsArchived() {
		return ErrTaskArchived
	}

	hasSubmissions, err := s.repo.HasSubmissions(ctx, taskID)
	if err != nil {
		return err
	}
	if hasSubmissions {
		// Graded work exists: flip the lifecycle flag instead of deleting.
		if _, err := s.Archive(ctx, taskID, actorID); err != nil {
			return err
		}
		return ErrTaskHasSubmissions
	}

	if err := s.repo.Delete(ctx, taskID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return err
	}

	s.recordActivity(ctx, actorID, "task_deleted", taskID, nil)
	s.logger.Info().Uint("task_id", taskID).Msg("task deleted")

	return nil
}

func (s *taskService) recordActivity(ctx context.Context, actorID uint, action string, taskID uint, metadata map[string]interface{}) {
	if s.activity == nil {
		return
	}

	id := taskID
	if _, err := s.activity.Record(ctx, ActivityEntry{
		ActorID:    actorID,
		ActorRole:  "teacher",
		Action:     action,
		EntityType: "task",
		EntityID:   &id,
		Metadata:   metadata,
	}); err != nil {
		s.logger.Warn().Err(err).Str("action", action).Msg("failed to record activity")
	}
}
