package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/linguahub/lingua-go-api/internal/dto"
	"github.com/linguahub/lingua-go-api/internal/repository"
	"github.com/linguahub/lingua-go-api/internal/service"
	"github.com/linguahub/lingua-go-api/internal/utils"
)

// TaskHandler exposes task authoring endpoints.
type TaskHandler struct {
	service service.TaskService
	logger  zerolog.Logger
}

// NewTaskHandler constructs a task handler.
func NewTaskHandler(service service.TaskService, logger zerolog.Logger) *TaskHandler {
	return &TaskHandler{
		service: service,
		logger:  logger.With().Str("component", "task_handler").Logger(),
	}
}

// Register wires task routes.
func (h *TaskHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Post("/:id/publish", h.publish)
	router.Post("/:id/unpublish", h.unpublish)
	router.Post("/:id/archive", h.archive)
	router.Delete("/:id", h.delete)
}

func (h *TaskHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page size")
	}

	filter := repository.TaskFilter{
		Modality:  c.Query("modality"),
		Lifecycle: c.Query("lifecycle"),
		Page:      page,
		PageSize:  pageSize,
	}

	tasks, total, err := h.service.List(c.Context(), filter)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list tasks")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list tasks")
	}

	return utils.SendSuccess(c, "tasks retrieved", fiber.Map{"tasks": tasks, "total": total})
}

func (h *TaskHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid task id")
	}

	task, err := h.service.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrTaskNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "task not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to load task")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load task")
	}

	return utils.SendSuccess(c, "task retrieved", task)
}

func (h *TaskHandler) create(c *fiber.Ctx) error {
	var payload dto.TaskCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	task, err := h.service.Create(c.Context(), userIDFromContext(c), payload)
	if err != nil {
		switch {
		case isValidationError(err), errors.Is(err, service.ErrInvalidModality):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to create task")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to create task")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "task created", task)
}

func (h *TaskHandler) publish(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid task id")
	}

	var payload dto.TaskPublishRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	task, err := h.service.Publish(c.Context(), id, userIDFromContext(c), payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTaskNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "task not found")
		case errors.Is(err, service.ErrTaskArchived):
			return utils.SendError(c, fiber.StatusConflict, "task is archived")
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to publish task")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to publish task")
		}
	}

	return utils.SendSuccess(c, "task published", task)
}

func (h *TaskHandler) unpublish(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid task id")
	}

	task, err := h.service.Unpublish(c.Context(), id, userIDFromContext(c))
	if err != nil {
		if errors.Is(err, service.ErrTaskNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "task not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to unpublish task")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to unpublish task")
	}

	return utils.SendSuccess(c, "task unpublished", task)
}

func (h *TaskHandler) archive(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid task id")
	}

	task, err := h.service.Archive(c.Context(), id, userIDFromContext(c))
	if err != nil {
		if errors.Is(err, service.ErrTaskNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "task not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to archive task")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to archive task")
	}

	return utils.SendSuccess(c, "task archived", task)
}

func (h *TaskHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid task id")
	}

	if err := h.service.Delete(c.Context(), id, userIDFromContext(c)); err != nil {
		switch {
		case errors.Is(err, service.ErrTaskNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "task not found")
		case errors.Is(err, service.ErrTaskArchived):
			return utils.SendError(c, fiber.StatusConflict, "archived tasks cannot be deleted")
		case errors.Is(err, service.ErrTaskHasSubmissions):
			return utils.SendError(c, fiber.StatusConflict, "task has submissions and was archived instead")
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to delete task")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to delete task")
		}
	}

	return utils.SendSuccess(c, "task deleted", nil)
}
