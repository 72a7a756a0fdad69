package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/linguahub/lingua-go-api/internal/config"
	"github.com/linguahub/lingua-go-api/internal/handler"
	"github.com/linguahub/lingua-go-api/internal/middleware"
	"github.com/linguahub/lingua-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	TaskHandler       *handler.TaskHandler
	EnrollmentHandler *handler.EnrollmentHandler
	AttemptHandler    *handler.AttemptHandler
	ProgressHandler   *handler.ProgressHandler
	ActivityHandler   *handler.ActivityHandler
	UploadHandler     *handler.UploadHandler
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	teacherOnly := middleware.RequireRole("teacher", "admin")
	studentOnly := middleware.RequireRole("student")

	// Task authoring
	if deps.TaskHandler != nil {
		tasks := api.Group("/tasks", jwtMiddleware, teacherOnly)
		deps.TaskHandler.Register(tasks)
	}

	// Class membership
	if deps.EnrollmentHandler != nil {
		enrollments := api.Group("/enrollments", jwtMiddleware, teacherOnly)
		deps.EnrollmentHandler.Register(enrollments)
	}

	// Attempt lifecycle
	if deps.AttemptHandler != nil {
		attempts := api.Group("/assignments", jwtMiddleware, studentOnly)
		deps.AttemptHandler.Register(attempts)

		review := api.Group("/review", jwtMiddleware, teacherOnly)
		deps.AttemptHandler.RegisterReview(review)
	}

	// Student dashboard
	if deps.ProgressHandler != nil {
		progress := api.Group("/progress", jwtMiddleware, studentOnly)
		deps.ProgressHandler.Register(progress)
	}

	// Audit trail
	if deps.ActivityHandler != nil {
		activity := api.Group("/activity", jwtMiddleware, teacherOnly)
		deps.ActivityHandler.Register(activity)
	}

	// Speaking recordings
	if deps.UploadHandler != nil {
		uploads := api.Group("/uploads", jwtMiddleware, studentOnly, middleware.RateLimit("uploads", 10, time.Minute))
		deps.UploadHandler.Register(uploads)
	}
}
