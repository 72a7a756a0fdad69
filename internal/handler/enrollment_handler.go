package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/linguahub/lingua-go-api/internal/dto"
	"github.com/linguahub/lingua-go-api/internal/service"
	"github.com/linguahub/lingua-go-api/internal/utils"
)

// EnrollmentHandler exposes class membership endpoints.
type EnrollmentHandler struct {
	service service.EnrollmentService
	logger  zerolog.Logger
}

// NewEnrollmentHandler constructs an enrollment handler.
func NewEnrollmentHandler(service service.EnrollmentService, logger zerolog.Logger) *EnrollmentHandler {
	return &EnrollmentHandler{
		service: service,
		logger:  logger.With().Str("component", "enrollment_handler").Logger(),
	}
}

// Register wires enrollment routes.
func (h *EnrollmentHandler) Register(router fiber.Router) {
	router.Post("", h.join)
	router.Patch("/status", h.setStatus)
	router.Get("/classes/:id", h.listActive)
}

func (h *EnrollmentHandler) join(c *fiber.Ctx) error {
	var payload dto.EnrollmentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	enrollment, err := h.service.Join(c.Context(), payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrClassNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "class not found")
		case errors.Is(err, service.ErrStudentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to enroll student")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to enroll student")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "student enrolled", enrollment)
}

func (h *EnrollmentHandler) setStatus(c *fiber.Ctx) error {
	var payload dto.EnrollmentStatusRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	enrollment, err := h.service.SetStatus(c.Context(), payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEnrollmentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "enrollment not found")
		case errors.Is(err, service.ErrInvalidEnrollmentStatus), isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to update enrollment")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to update enrollment")
		}
	}

	return utils.SendSuccess(c, "enrollment updated", enrollment)
}

func (h *EnrollmentHandler) listActive(c *fiber.Ctx) error {
	classID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid class id")
	}

	enrollments, err := h.service.ListActive(c.Context(), classID)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list enrollments")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list enrollments")
	}

	return utils.SendSuccess(c, "enrollments retrieved", enrollments)
}
