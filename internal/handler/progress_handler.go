package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/linguahub/lingua-go-api/internal/service"
	"github.com/linguahub/lingua-go-api/internal/utils"
)

// ProgressHandler exposes per-student dashboard endpoints.
type ProgressHandler struct {
	service service.ProgressService
	logger  zerolog.Logger
}

// NewProgressHandler constructs a progress handler.
func NewProgressHandler(service service.ProgressService, logger zerolog.Logger) *ProgressHandler {
	return &ProgressHandler{
		service: service,
		logger:  logger.With().Str("component", "progress_handler").Logger(),
	}
}

// Register wires progress routes.
func (h *ProgressHandler) Register(router fiber.Router) {
	router.Get("/me", h.me)
	router.Get("/me/tasks/:id/improvement", h.improvement)
}

func (h *ProgressHandler) me(c *fiber.Ctx) error {
	progress, err := h.service.GetProgress(c.Context(), userIDFromContext(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to load progress")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load progress")
	}

	return utils.SendSuccess(c, "progress retrieved", progress)
}

func (h *ProgressHandler) improvement(c *fiber.Ctx) error {
	taskID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid task id")
	}

	rate, err := h.service.GetImprovementRate(c.Context(), taskID, userIDFromContext(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to compute improvement rate")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to compute improvement rate")
	}

	return utils.SendSuccess(c, "improvement rate computed", fiber.Map{"task_id": taskID, "improvement_rate": rate})
}
