package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/linguahub/lingua-go-api/internal/dto"
	"github.com/linguahub/lingua-go-api/internal/evaluator"
	"github.com/linguahub/lingua-go-api/internal/models"
	"github.com/linguahub/lingua-go-api/internal/observability"
	"github.com/linguahub/lingua-go-api/internal/repository"
)

var (
	// ErrStudentAssignmentNotFound indicates the requested row does not exist.
	ErrStudentAssignmentNotFound = errors.New("student assignment not found")
	// ErrNotAssignmentOwner indicates the acting student does not own the row.
	ErrNotAssignmentOwner = errors.New("student does not own this assignment")
	// ErrRetakeNotAllowed indicates the task forbids retakes.
	ErrRetakeNotAllowed = errors.New("retake is not allowed for this task")
	// ErrAttemptLimitExceeded indicates the attempt quota is used up.
	ErrAttemptLimitExceeded = errors.New("attempt limit exceeded")
	// ErrSubmissionIncomplete indicates required questions are unanswered.
	ErrSubmissionIncomplete = errors.New("required questions are unanswered")
	// ErrTimeLimitExceeded indicates the attempt overran the task time limit.
	ErrTimeLimitExceeded = errors.New("time limit exceeded")
	// ErrConcurrentTransition indicates another writer changed the row first.
	ErrConcurrentTransition = errors.New("student assignment was modified concurrently")
	// ErrReviewScoreExceedsMax indicates a review score above the task maximum.
	ErrReviewScoreExceedsMax = errors.New("score exceeds task maximum")
)

// StateTransitionError is returned for any operation attempted from a state
// where it is not allowed. It carries enough context for a precise message.
type StateTransitionError struct {
	Operation     string
	CurrentStatus string
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("cannot %s from status %s", e.Operation, e.CurrentStatus)
}

// Transcriber converts a speaking answer recording into text. Failures never
// block the attempt path; transcription is an enrichment, not a gate.
type Transcriber interface {
	Transcribe(ctx context.Context, audioURL string) (string, error)
}

// AttemptService owns the per-student-assignment state machine: attempt
// counting, retake eligibility, transition guards and scoring write-back.
// Every operation takes the acting user's id explicitly; nothing is read
// from ambient auth state.
type AttemptService interface {
	Start(ctx context.Context, studentAssignmentID, studentID uint) (dto.SubmissionResponse, error)
	SaveAnswer(ctx context.Context, studentAssignmentID, studentID uint, payload dto.AnswerRequest) (dto.QuestionAnswerResponse, error)
	Submit(ctx context.Context, studentAssignmentID, studentID uint, payload dto.SubmitRequest) (dto.SubmissionResponse, error)
	Review(ctx context.Context, studentAssignmentID, reviewerID uint, payload dto.ReviewRequest) (dto.SubmissionResponse, error)
	Acknowledge(ctx context.Context, studentAssignmentID, studentID uint) (dto.StudentAssignmentResponse, error)
	GetSubmission(ctx context.Context, submissionID, studentID uint) (dto.SubmissionResponse, error)
}

type attemptService struct {
	assignments repository.AssignmentRepository
	submissions repository.SubmissionRepository
	tasks       repository.TaskRepository
	tx          repository.TxRunner
	registry    *evaluator.Registry
	transcriber Transcriber
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	activity    ActivityRecorder
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewAttemptService builds the attempt lifecycle manager.
func NewAttemptService(
	assignments repository.AssignmentRepository,
	submissions repository.SubmissionRepository,
	tasks repository.TaskRepository,
	tx repository.TxRunner,
	registry *evaluator.Registry,
	transcriber Transcriber,
	validate *validator.Validate,
	activity ActivityRecorder,
	logger zerolog.Logger,
) AttemptService {
	return &attemptService{
		assignments: assignments,
		submissions: submissions,
		tasks:       tasks,
		tx:          tx,
		registry:    registry,
		transcriber: transcriber,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		activity:    activity,
		logger:      logger.With().Str("component", "attempt_service").Logger(),
		tracer:      otel.Tracer("github.com/linguahub/lingua-go-api/internal/service/attempt"),
		now:         time.Now,
	}
}

func (s *attemptService) Start(ctx context.Context, studentAssignmentID, studentID uint) (dto.SubmissionResponse, error) {
	sa, err := s.loadOwned(ctx, studentAssignmentID, studentID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	task, err := s.tasks.GetWithQuestions(ctx, sa.Assignment.TaskID)
	if err != nil {
		return dto.SubmissionResponse{}, fmt.Errorf("failed to load task: %w", err)
	}

	switch {
	case sa.Status == models.StudentAssignmentStatusNotStarted:
		// First attempt.
	case sa.IsRetakeSource():
		if !task.AllowRetake {
			return dto.SubmissionResponse{}, ErrRetakeNotAllowed
		}
		if task.MaxAttempts != nil && sa.AttemptCount >= *task.MaxAttempts {
			return dto.SubmissionResponse{}, ErrAttemptLimitExceeded
		}
	default:
		return dto.SubmissionResponse{}, &StateTransitionError{Operation: "start", CurrentStatus: sa.Status}
	}

	expected := sa.Status
	startedAt := s.now()
	sa.Status = models.StudentAssignmentStatusInProgress
	sa.AttemptCount++
	sa.StartedAt = &startedAt

	submission := models.Submission{
		StudentAssignmentID: sa.ID,
		TaskID:              task.ID,
		StudentID:           studentID,
		AttemptNumber:       sa.AttemptCount,
		Status:              models.StudentAssignmentStatusInProgress,
		StartedAt:           startedAt,
	}
	for _, question := range task.Questions {
		submission.Answers = append(submission.Answers, models.QuestionAnswer{
			QuestionID:    question.ID,
			CorrectAnswer: question.CorrectAnswer,
			PointsMax:     question.Points,
		})
	}

	// One transaction covers the counter bump and the new submission, so a
	// failed insert never strands the row in in_progress with no open attempt.
	if err := s.tx.InTransaction(ctx, func(repos repository.Atomic) error {
		if err := repos.Assignments.UpdateStudentAssignmentStatus(ctx, &sa, expected); err != nil {
			return err
		}
		return repos.Submissions.Create(ctx, &submission)
	}); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrConcurrentTransition
		}
		return dto.SubmissionResponse{}, fmt.Errorf("failed to start attempt: %w", err)
	}

	observability.AttemptTransitions().WithLabelValues("start").Inc()
	s.logger.Info().
		Uint("student_assignment_id", sa.ID).
		Uint("student_id", studentID).
		Int("attempt", sa.AttemptCount).
		Msg("attempt started")

	return dto.NewSubmissionResponse(submission), nil
}

func (s *attemptService) SaveAnswer(ctx context.Context, studentAssignmentID, studentID uint, payload dto.AnswerRequest) (dto.QuestionAnswerResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.QuestionAnswerResponse{}, err
	}

	sa, err := s.loadOwned(ctx, studentAssignmentID, studentID)
	if err != nil {
		return dto.QuestionAnswerResponse{}, err
	}

	if sa.Status != models.StudentAssignmentStatusInProgress {
		return dto.QuestionAnswerResponse{}, &StateTransitionError{Operation: "answer", CurrentStatus: sa.Status}
	}

	submission, err := s.submissions.GetOpenByStudentAssignment(ctx, sa.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.QuestionAnswerResponse{}, &StateTransitionError{Operation: "answer", CurrentStatus: sa.Status}
		}
		return dto.QuestionAnswerResponse{}, err
	}

	answer, err := s.applyAnswer(ctx, &submission, payload)
	if err != nil {
		return dto.QuestionAnswerResponse{}, err
	}

	if err := s.submissions.SaveAnswer(ctx, answer); err != nil {
		return dto.QuestionAnswerResponse{}, fmt.Errorf("failed to save answer: %w", err)
	}

	return dto.NewQuestionAnswerResponse(*answer), nil
}

func (s *attemptService) Submit(ctx context.Context, studentAssignmentID, studentID uint, payload dto.SubmitRequest) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "attempt.submit")
	span.SetAttributes(
		attribute.Int64("attempt.student_assignment_id", int64(studentAssignmentID)),
		attribute.Int64("attempt.student_id", int64(studentID)),
	)
	defer span.End()

	sa, err := s.loadOwned(ctx, studentAssignmentID, studentID)
	if err != nil {
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}

	if sa.Status != models.StudentAssignmentStatusInProgress {
		err := &StateTransitionError{Operation: "submit", CurrentStatus: sa.Status}
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid_transition")
		return dto.SubmissionResponse{}, err
	}

	task, err := s.tasks.GetWithQuestions(ctx, sa.Assignment.TaskID)
	if err != nil {
		return dto.SubmissionResponse{}, fmt.Errorf("failed to load task: %w", err)
	}

	submission, err := s.submissions.GetOpenByStudentAssignment(ctx, sa.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, &StateTransitionError{Operation: "submit", CurrentStatus: sa.Status}
		}
		return dto.SubmissionResponse{}, err
	}

	// Last-moment answers may ride along with the submit call.
	for _, answerPayload := range payload.Answers {
		if _, err := s.applyAnswer(ctx, &submission, answerPayload); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "malformed_answer")
			return dto.SubmissionResponse{}, err
		}
	}

	submittedAt := s.now()

	// Time limit is a policy check at submit time, not a scheduled cancel.
	if task.TimeLimitMinutes != nil {
		limit := time.Duration(*task.TimeLimitMinutes) * time.Minute
		if submittedAt.Sub(submission.StartedAt) > limit {
			span.SetStatus(codes.Error, "time_limit_exceeded")
			return dto.SubmissionResponse{}, ErrTimeLimitExceeded
		}
	}

	questionsByID := make(map[uint]models.Question, len(task.Questions))
	for _, question := range task.Questions {
		questionsByID[question.ID] = question
	}

	if task.EnforceComplete {
		for i := range submission.Answers {
			question, ok := questionsByID[submission.Answers[i].QuestionID]
			if !ok || !question.Required {
				continue
			}
			if !submission.Answers[i].IsAnswered() {
				return dto.SubmissionResponse{}, fmt.Errorf("question %d: %w", question.ID, ErrSubmissionIncomplete)
			}
		}
	}

	gradeStart := time.Now()
	total, maxTotal, err := s.grade(&submission, questionsByID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "grading_failed")
		return dto.SubmissionResponse{}, err
	}
	observability.GradingLatency().Observe(time.Since(gradeStart).Seconds())

	expected := sa.Status
	submission.SubmittedAt = &submittedAt

	if task.IsAutoGraded() {
		score := evaluator.Round2(total)
		percentage := 0.0
		if maxTotal > 0 {
			percentage = evaluator.Round2(total / maxTotal * 100)
		}

		sa.Status = models.StudentAssignmentStatusCompleted
		sa.Score = &score
		sa.CompletedAt = &submittedAt

		submission.Status = models.StudentAssignmentStatusCompleted
		submission.Score = &score
		submission.Percentage = &percentage
	} else {
		sa.Status = models.StudentAssignmentStatusSubmitted
		submission.Status = models.StudentAssignmentStatusSubmitted
	}

	// Evaluations, the status swap and the submission record land together;
	// a lost compare-and-swap rolls the graded answers back too.
	if err := s.tx.InTransaction(ctx, func(repos repository.Atomic) error {
		if err := repos.Submissions.UpdateAnswers(ctx, submission.Answers); err != nil {
			return err
		}
		if err := repos.Assignments.UpdateStudentAssignmentStatus(ctx, &sa, expected); err != nil {
			return err
		}
		return repos.Submissions.Update(ctx, &submission)
	}); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrConcurrentTransition
		}
		return dto.SubmissionResponse{}, fmt.Errorf("failed to persist submission: %w", err)
	}

	observability.AttemptTransitions().WithLabelValues("submit").Inc()
	span.SetAttributes(attribute.Bool("attempt.auto_graded", task.IsAutoGraded()))

	s.logger.Info().
		Uint("student_assignment_id", sa.ID).
		Uint("student_id", studentID).
		Str("status", sa.Status).
		Msg("attempt submitted")

	return dto.NewSubmissionResponse(submission), nil
}

func (s *attemptService) Review(ctx context.Context, studentAssignmentID, reviewerID uint, payload dto.ReviewRequest) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	sa, err := s.load(ctx, studentAssignmentID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	task, err := s.tasks.GetWithQuestions(ctx, sa.Assignment.TaskID)
	if err != nil {
		return dto.SubmissionResponse{}, fmt.Errorf("failed to load task: %w", err)
	}

	if task.IsAutoGraded() {
		return dto.SubmissionResponse{}, &StateTransitionError{Operation: "review", CurrentStatus: sa.Status}
	}

	if sa.Status != models.StudentAssignmentStatusSubmitted {
		return dto.SubmissionResponse{}, &StateTransitionError{Operation: "review", CurrentStatus: sa.Status}
	}

	var maxTotal float64
	for _, question := range task.Questions {
		maxTotal += question.Points
	}
	if maxTotal > 0 && payload.Score > maxTotal+1e-9 {
		return dto.SubmissionResponse{}, ErrReviewScoreExceedsMax
	}

	submission, err := s.latestSubmitted(ctx, sa.ID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	expected := sa.Status
	reviewedAt := s.now()
	score := evaluator.Round2(payload.Score)

	sa.Status = models.StudentAssignmentStatusReviewed
	sa.Score = &score

	submission.Status = models.StudentAssignmentStatusReviewed
	submission.Score = &score
	submission.Feedback = s.sanitizer.Sanitize(payload.Feedback)
	submission.ReviewedBy = &reviewerID
	submission.ReviewedAt = &reviewedAt
	if maxTotal > 0 {
		percentage := evaluator.Round2(score / maxTotal * 100)
		submission.Percentage = &percentage
	}

	if err := s.tx.InTransaction(ctx, func(repos repository.Atomic) error {
		if err := repos.Assignments.UpdateStudentAssignmentStatus(ctx, &sa, expected); err != nil {
			return err
		}
		return repos.Submissions.Update(ctx, &submission)
	}); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrConcurrentTransition
		}
		return dto.SubmissionResponse{}, fmt.Errorf("failed to persist review: %w", err)
	}

	observability.AttemptTransitions().WithLabelValues("review").Inc()
	s.recordActivity(ctx, reviewerID, "attempt_reviewed", submission.ID, map[string]interface{}{
		"student_assignment_id": sa.ID,
		"score":                 score,
	})

	return dto.NewSubmissionResponse(submission), nil
}

func (s *attemptService) Acknowledge(ctx context.Context, studentAssignmentID, studentID uint) (dto.StudentAssignmentResponse, error) {
	sa, err := s.loadOwned(ctx, studentAssignmentID, studentID)
	if err != nil {
		return dto.StudentAssignmentResponse{}, err
	}

	// Acknowledgement closes the feedback loop on writing tasks only.
	if sa.Assignment.Modality != models.ModalityWriting {
		return dto.StudentAssignmentResponse{}, &StateTransitionError{Operation: "acknowledge", CurrentStatus: sa.Status}
	}

	if sa.Status != models.StudentAssignmentStatusReviewed {
		return dto.StudentAssignmentResponse{}, &StateTransitionError{Operation: "acknowledge", CurrentStatus: sa.Status}
	}

	expected := sa.Status
	completedAt := s.now()
	sa.Status = models.StudentAssignmentStatusDone
	sa.CompletedAt = &completedAt

	if err := s.assignments.UpdateStudentAssignmentStatus(ctx, &sa, expected); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StudentAssignmentResponse{}, ErrConcurrentTransition
		}
		return dto.StudentAssignmentResponse{}, err
	}

	if submission, err := s.latestSubmitted(ctx, sa.ID); err == nil {
		submission.Status = models.StudentAssignmentStatusDone
		if err := s.submissions.Update(ctx, &submission); err != nil {
			s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to mirror done status")
		}
	}

	observability.AttemptTransitions().WithLabelValues("acknowledge").Inc()
	return dto.NewStudentAssignmentResponse(sa, s.now()), nil
}

func (s *attemptService) GetSubmission(ctx context.Context, submissionID, studentID uint) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrStudentAssignmentNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	if submission.StudentID != studentID {
		return dto.SubmissionResponse{}, ErrNotAssignmentOwner
	}

	return dto.NewSubmissionResponse(submission), nil
}

// applyAnswer resolves the payload, validates its structure for the declared
// question type and writes it onto the matching answer stub. When both a
// structured answer and a flat option id are supplied, the structured
// payload wins.
func (s *attemptService) applyAnswer(ctx context.Context, submission *models.Submission, payload dto.AnswerRequest) (*models.QuestionAnswer, error) {
	var answer *models.QuestionAnswer
	for i := range submission.Answers {
		if submission.Answers[i].QuestionID == payload.QuestionID {
			answer = &submission.Answers[i]
			break
		}
	}
	if answer == nil {
		return nil, fmt.Errorf("question %d is not part of this attempt", payload.QuestionID)
	}

	raw := payload.Resolve()
	if len(raw) == 0 {
		return nil, fmt.Errorf("question %d: answer payload missing", payload.QuestionID)
	}

	questionType := answer.Question.Type
	if questionType == "" {
		if question, err := s.questionType(ctx, submission.TaskID, payload.QuestionID); err == nil {
			questionType = question
		}
	}

	if err := s.registry.Validate(questionType, raw); err != nil {
		return nil, fmt.Errorf("question %d: %w", payload.QuestionID, err)
	}

	answer.Answer = datatypes.JSON(raw)

	if questionType == evaluator.TypeSpeakingPrompt && s.transcriber != nil {
		s.attachTranscript(ctx, answer, raw)
	}

	return answer, nil
}

func (s *attemptService) attachTranscript(ctx context.Context, answer *models.QuestionAnswer, raw json.RawMessage) {
	var payload struct {
		AudioURL string `json:"audio_url"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || payload.AudioURL == "" {
		return
	}

	transcript, err := s.transcriber.Transcribe(ctx, payload.AudioURL)
	if err != nil {
		s.logger.Warn().Err(err).Uint("question_id", answer.QuestionID).Msg("transcription failed")
		return
	}
	answer.Transcript = transcript
}

// grade runs the evaluator over every answer, mutating the in-memory rows.
// Per-question points are stored rounded; the submission total sums the exact
// values before its own final rounding. Persistence is the caller's job, so
// evaluations commit together with the status transition.
func (s *attemptService) grade(submission *models.Submission, questions map[uint]models.Question) (total, maxTotal float64, err error) {
	for i := range submission.Answers {
		answer := &submission.Answers[i]
		question, ok := questions[answer.QuestionID]
		if !ok {
			continue
		}

		maxTotal += question.Points

		result, evalErr := s.registry.Evaluate(question.Type, json.RawMessage(answer.Answer), json.RawMessage(question.CorrectAnswer), question.Points)
		if evalErr != nil {
			return 0, 0, fmt.Errorf("question %d: %w", question.ID, evalErr)
		}

		answer.IsCorrect = result.IsCorrect
		answer.PointsEarned = result.PointsEarned
		answer.PointsMax = question.Points
		answer.DisplayText = result.DisplayText
		total += result.PointsExact
	}

	return total, maxTotal, nil
}

func (s *attemptService) latestSubmitted(ctx context.Context, studentAssignmentID uint) (models.Submission, error) {
	submissions, err := s.submissions.ListByStudentAssignment(ctx, studentAssignmentID)
	if err != nil {
		return models.Submission{}, err
	}
	if len(submissions) == 0 {
		return models.Submission{}, ErrStudentAssignmentNotFound
	}
	return submissions[len(submissions)-1], nil
}

func (s *attemptService) questionType(ctx context.Context, taskID, questionID uint) (string, error) {
	task, err := s.tasks.GetWithQuestions(ctx, taskID)
	if err != nil {
		return "", err
	}
	for _, question := range task.Questions {
		if question.ID == questionID {
			return question.Type, nil
		}
	}
	return "", gorm.ErrRecordNotFound
}

func (s *attemptService) load(ctx context.Context, studentAssignmentID uint) (models.StudentAssignment, error) {
	sa, err := s.assignments.GetStudentAssignment(ctx, studentAssignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.StudentAssignment{}, ErrStudentAssignmentNotFound
		}
		return models.StudentAssignment{}, err
	}
	return sa, nil
}

func (s *attemptService) loadOwned(ctx context.Context, studentAssignmentID, studentID uint) (models.StudentAssignment, error) {
	sa, err := s.load(ctx, studentAssignmentID)
	if err != nil {
		return models.StudentAssignment{}, err
	}
	if sa.StudentID != studentID {
		return models.StudentAssignment{}, ErrNotAssignmentOwner
	}
	return sa, nil
}

func (s *attemptService) recordActivity(ctx context.Context, actorID uint, action string, entityID uint, metadata map[string]interface{}) {
	if s.activity == nil {
		return
	}

	id := entityID
	if _, err := s.activity.Record(ctx, ActivityEntry{
		ActorID:    actorID,
		ActorRole:  "teacher",
		Action:     action,
		EntityType: "submission",
		EntityID:   &id,
		Metadata:   metadata,
	}); err != nil {
		s.logger.Warn().Err(err).Str("action", action).Msg("failed to record activity")
	}
}
