package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/linguahub/lingua-go-api/internal/dto"
	"github.com/linguahub/lingua-go-api/internal/evaluator"
	"github.com/linguahub/lingua-go-api/internal/service"
	"github.com/linguahub/lingua-go-api/internal/utils"
)

// AttemptHandler exposes the attempt lifecycle endpoints. The acting user id
// always comes from the verified token, never from the request body.
type AttemptHandler struct {
	service service.AttemptService
	logger  zerolog.Logger
}

// NewAttemptHandler constructs an attempt handler.
func NewAttemptHandler(service service.AttemptService, logger zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		service: service,
		logger:  logger.With().Str("component", "attempt_handler").Logger(),
	}
}

// Register wires student-facing attempt routes.
func (h *AttemptHandler) Register(router fiber.Router) {
	router.Post("/:id/start", h.start)
	router.Put("/:id/answers", h.saveAnswer)
	router.Post("/:id/submit", h.submit)
	router.Post("/:id/acknowledge", h.acknowledge)
	router.Get("/submissions/:id", h.getSubmission)
}

// RegisterReview wires the teacher-facing review route.
func (h *AttemptHandler) RegisterReview(router fiber.Router) {
	router.Post("/:id/review", h.review)
}

func (h *AttemptHandler) start(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student assignment id")
	}

	submission, err := h.service.Start(c.Context(), id, userIDFromContext(c))
	if err != nil {
		return h.sendAttemptError(c, err, "failed to start attempt")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "attempt started", submission)
}

func (h *AttemptHandler) saveAnswer(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student assignment id")
	}

	var payload dto.AnswerRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	answer, err := h.service.SaveAnswer(c.Context(), id, userIDFromContext(c), payload)
	if err != nil {
		return h.sendAttemptError(c, err, "failed to save answer")
	}

	return utils.SendSuccess(c, "answer saved", answer)
}

func (h *AttemptHandler) submit(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student assignment id")
	}

	var payload dto.SubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	submission, err := h.service.Submit(c.Context(), id, userIDFromContext(c), payload)
	if err != nil {
		return h.sendAttemptError(c, err, "failed to submit attempt")
	}

	return utils.SendSuccess(c, "attempt submitted", submission)
}

func (h *AttemptHandler) review(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student assignment id")
	}

	var payload dto.ReviewRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	submission, err := h.service.Review(c.Context(), id, userIDFromContext(c), payload)
	if err != nil {
		return h.sendAttemptError(c, err, "failed to review attempt")
	}

	return utils.SendSuccess(c, "attempt reviewed", submission)
}

func (h *AttemptHandler) acknowledge(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student assignment id")
	}

	assignment, err := h.service.Acknowledge(c.Context(), id, userIDFromContext(c))
	if err != nil {
		return h.sendAttemptError(c, err, "failed to acknowledge review")
	}

	return utils.SendSuccess(c, "review acknowledged", assignment)
}

func (h *AttemptHandler) getSubmission(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	submission, err := h.service.GetSubmission(c.Context(), id, userIDFromContext(c))
	if err != nil {
		return h.sendAttemptError(c, err, "failed to load submission")
	}

	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *AttemptHandler) sendAttemptError(c *fiber.Ctx, err error, fallback string) error {
	var transition *service.StateTransitionError
	var validation *evaluator.ValidationError

	switch {
	case errors.Is(err, service.ErrStudentAssignmentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "student assignment not found")
	case errors.Is(err, service.ErrNotAssignmentOwner):
		return utils.SendError(c, fiber.StatusForbidden, "assignment belongs to another student")
	case errors.Is(err, service.ErrRetakeNotAllowed):
		return utils.SendError(c, fiber.StatusConflict, "retake is not allowed for this task")
	case errors.Is(err, service.ErrAttemptLimitExceeded):
		return utils.SendError(c, fiber.StatusConflict, "attempt limit exceeded")
	case errors.Is(err, service.ErrSubmissionIncomplete):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrTimeLimitExceeded):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, "time limit exceeded")
	case errors.Is(err, service.ErrConcurrentTransition):
		return utils.SendError(c, fiber.StatusConflict, "assignment was modified concurrently, retry")
	case errors.Is(err, service.ErrReviewScoreExceedsMax):
		return utils.SendError(c, fiber.StatusBadRequest, "score exceeds task maximum")
	case errors.As(err, &transition):
		return utils.SendError(c, fiber.StatusConflict, transition.Error())
	case errors.As(err, &validation):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg(fallback)
		return utils.SendError(c, fiber.StatusInternalServerError, fallback)
	}
}
