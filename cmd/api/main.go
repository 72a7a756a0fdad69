package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/linguahub/lingua-go-api/internal/config"
	"github.com/linguahub/lingua-go-api/internal/database"
	"github.com/linguahub/lingua-go-api/internal/evaluator"
	"github.com/linguahub/lingua-go-api/internal/events"
	"github.com/linguahub/lingua-go-api/internal/handler"
	"github.com/linguahub/lingua-go-api/internal/middleware"
	"github.com/linguahub/lingua-go-api/internal/models"
	"github.com/linguahub/lingua-go-api/internal/repository"
	"github.com/linguahub/lingua-go-api/internal/router"
	"github.com/linguahub/lingua-go-api/internal/service"
	cloud "github.com/linguahub/lingua-go-api/pkg/cloudinary"
	"github.com/linguahub/lingua-go-api/pkg/transcribe"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Student{},
		&models.Class{},
		&models.Enrollment{},
		&models.Task{},
		&models.Question{},
		&models.Assignment{},
		&models.StudentAssignment{},
		&models.Submission{},
		&models.QuestionAnswer{},
		&models.ActivityLog{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create cloudinary client: %v", err)
	}

	var transcriber service.Transcriber
	if cfg.OpenAIAPIKey != "" {
		whisper, err := transcribe.New(cfg.OpenAIAPIKey, logger)
		if err != nil {
			log.Fatalf("failed to create transcriber: %v", err)
		}
		transcriber = whisper
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	studentRepo := repository.NewStudentRepository(db)
	classRepo := repository.NewClassRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)
	txRunner := repository.NewTxRunner(db)

	activityService := service.NewActivityService(activityRepo, logger)
	provisioner := service.NewProvisionService(taskRepo, classRepo, assignmentRepo, activityService, logger)

	// The provisioner is the single registered event handler. With a broker
	// configured the fan-out runs on queue subscribers; without one it runs
	// inline on the emitting request.
	var dispatcher events.Dispatcher
	var natsDispatcher *events.NATSDispatcher
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.NATSURL != "" {
		conn, err := nats.Connect(cfg.NATSURL, nats.Name(cfg.AppName))
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer conn.Close()

		natsDispatcher = events.NewNATSDispatcher(conn, cfg.EventSubjectPrefix, provisioner, logger)
		if err := natsDispatcher.Start(ctx); err != nil {
			log.Fatalf("failed to start event dispatcher: %v", err)
		}
		defer natsDispatcher.Stop()
		dispatcher = natsDispatcher
	} else {
		dispatcher = events.NewInProcessDispatcher(provisioner)
	}

	registry := evaluator.NewRegistry()

	taskService := service.NewTaskService(taskRepo, dispatcher, validate, activityService, logger)
	enrollmentService := service.NewEnrollmentService(classRepo, studentRepo, dispatcher, validate, logger)
	attemptService := service.NewAttemptService(assignmentRepo, submissionRepo, taskRepo, txRunner, registry, transcriber, validate, activityService, logger)
	progressService := service.NewProgressService(assignmentRepo, submissionRepo, redisClient, cfg.ProgressCacheTTL, logger)
	uploadService := service.NewUploadService(uploader, cfg.UploadMaxMB, logger)

	taskHandler := handler.NewTaskHandler(taskService, logger)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentService, logger)
	attemptHandler := handler.NewAttemptHandler(attemptService, logger)
	progressHandler := handler.NewProgressHandler(progressService, logger)
	activityHandler := handler.NewActivityHandler(activityService, logger)
	uploadHandler := handler.NewUploadHandler(uploadService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		TaskHandler:       taskHandler,
		EnrollmentHandler: enrollmentHandler,
		AttemptHandler:    attemptHandler,
		ProgressHandler:   progressHandler,
		ActivityHandler:   activityHandler,
		UploadHandler:     uploadHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(ctx, app)
}

func waitForShutdown(ctx context.Context, app *fiber.App) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
