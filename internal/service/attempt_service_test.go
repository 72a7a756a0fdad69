package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/linguahub/lingua-go-api/internal/dto"
	"github.com/linguahub/lingua-go-api/internal/evaluator"
	"github.com/linguahub/lingua-go-api/internal/models"
	"github.com/linguahub/lingua-go-api/internal/repository"
)

func (env *serviceTestEnv) attemptService() AttemptService {
	validate := validator.New(validator.WithRequiredStructEnabled())
	return NewAttemptService(env.assignments, env.submissions, env.tasks, env.tx, evaluator.NewRegistry(), nil, validate, nil, env.logger)
}

type questionSpec struct {
	qType         string
	correctAnswer string
	points        float64
	required      bool
}

func (env *serviceTestEnv) seedGradableTask(t *testing.T, modality string, questions []questionSpec, mutate func(*models.Task)) (models.Task, models.StudentAssignment) {
	t.Helper()

	class := env.seedClass(t)
	task := models.Task{
		Title:     "Unit test task",
		Modality:  modality,
		ClassID:   &class.ID,
		AuthorID:  7,
		Published: true,
		Lifecycle: models.TaskLifecycleActive,
	}
	if mutate != nil {
		mutate(&task)
	}
	for i, spec := range questions {
		question := models.Question{
			Position: i,
			Type:     spec.qType,
			Prompt:   "prompt",
			Points:   spec.points,
			Required: spec.required,
		}
		if spec.correctAnswer != "" {
			question.CorrectAnswer = datatypes.JSON(spec.correctAnswer)
		}
		task.Questions = append(task.Questions, question)
	}
	require.NoError(t, env.db.Create(&task).Error)

	assignment := models.Assignment{
		TaskID:    task.ID,
		ClassID:   class.ID,
		Modality:  modality,
		Title:     task.Title,
		Published: true,
		Source:    models.AssignmentSourceAutoPublish,
	}
	require.NoError(t, env.assignments.EnsureAssignment(context.Background(), &assignment))

	sa, err := env.assignments.EnsureStudentAssignment(context.Background(), assignment.ID, 42)
	require.NoError(t, err)

	return task, sa
}

func TestStartSubmitAutoGradedAttempt(t *testing.T) {
	env := newServiceTestEnv(t)
	task, sa := env.seedGradableTask(t, models.ModalityListening, []questionSpec{
		{qType: evaluator.TypeSingleSelect, correctAnswer: `"B"`, points: 10, required: true},
	}, nil)
	svc := env.attemptService()

	submission, err := svc.Start(context.Background(), sa.ID, 42)
	require.NoError(t, err)
	require.Equal(t, 1, submission.AttemptNumber)
	require.Len(t, submission.Answers, len(task.Questions))

	questionID := submission.Answers[0].QuestionID
	_, err = svc.SaveAnswer(context.Background(), sa.ID, 42, dto.AnswerRequest{
		QuestionID: questionID,
		AnswerData: json.RawMessage(`"B"`),
	})
	require.NoError(t, err)

	result, err := svc.Submit(context.Background(), sa.ID, 42, dto.SubmitRequest{})
	require.NoError(t, err)
	require.Equal(t, models.StudentAssignmentStatusCompleted, result.Status)
	require.NotNil(t, result.Score)
	require.InDelta(t, 10, *result.Score, 1e-9)
	require.NotNil(t, result.Percentage)
	require.InDelta(t, 100, *result.Percentage, 1e-9)

	reloaded, err := env.assignments.GetStudentAssignment(context.Background(), sa.ID)
	require.NoError(t, err)
	require.Equal(t, models.StudentAssignmentStatusCompleted, reloaded.Status)
	require.NotNil(t, reloaded.Score)
}

func TestAnswersMayRideAlongWithSubmit(t *testing.T) {
	env := newServiceTestEnv(t)
	_, sa := env.seedGradableTask(t, models.ModalityReading, []questionSpec{
		{qType: evaluator.TypeSingleSelect, correctAnswer: `"A"`, points: 5, required: true},
		{qType: evaluator.TypeShortAnswer, correctAnswer: `["coral reef"]`, points: 5, required: true},
	}, nil)
	svc := env.attemptService()

	submission, err := svc.Start(context.Background(), sa.ID, 42)
	require.NoError(t, err)

	result, err := svc.Submit(context.Background(), sa.ID, 42, dto.SubmitRequest{Answers: []dto.AnswerRequest{
		{QuestionID: submission.Answers[0].QuestionID, AnswerData: json.RawMessage(`"A"`)},
		{QuestionID: submission.Answers[1].QuestionID, AnswerData: json.RawMessage(`"Coral Reef"`)},
	}})
	require.NoError(t, err)
	require.NotNil(t, result.Score)
	require.InDelta(t, 10, *result.Score, 1e-9)
}

func TestStartRespectsRetakePolicy(t *testing.T) {
	env := newServiceTestEnv(t)
	_, sa := env.seedGradableTask(t, models.ModalityReading, []questionSpec{
		{qType: evaluator.TypeSingleSelect, correctAnswer: `"A"`, points: 1, required: false},
	}, func(task *models.Task) {
		task.AllowRetake = false
	})
	svc := env.attemptService()

	_, err := svc.Start(context.Background(), sa.ID, 42)
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), sa.ID, 42, dto.SubmitRequest{})
	require.NoError(t, err)

	_, err = svc.Start(context.Background(), sa.ID, 42)
	require.ErrorIs(t, err, ErrRetakeNotAllowed)
}

func TestStartEnforcesAttemptLimit(t *testing.T) {
	env := newServiceTestEnv(t)
	maxAttempts := 2
	_, sa := env.seedGradableTask(t, models.ModalityReading, []questionSpec{
		{qType: evaluator.TypeSingleSelect, correctAnswer: `"A"`, points: 1, required: false},
	}, func(task *models.Task) {
		task.AllowRetake = true
		task.MaxAttempts = &maxAttempts
	})
	svc := env.attemptService()

	for i := 0; i < maxAttempts; i++ {
		_, err := svc.Start(context.Background(), sa.ID, 42)
		require.NoError(t, err)
		_, err = svc.Submit(context.Background(), sa.ID, 42, dto.SubmitRequest{})
		require.NoError(t, err)
	}

	_, err := svc.Start(context.Background(), sa.ID, 42)
	require.ErrorIs(t, err, ErrAttemptLimitExceeded)
}

func TestSubmitRequiresAnswersWhenEnforced(t *testing.T) {
	env := newServiceTestEnv(t)
	_, sa := env.seedGradableTask(t, models.ModalityReading, []questionSpec{
		{qType: evaluator.TypeSingleSelect, correctAnswer: `"A"`, points: 1, required: true},
	}, func(task *models.Task) {
		task.EnforceComplete = true
	})
	svc := env.attemptService()

	_, err := svc.Start(context.Background(), sa.ID, 42)
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), sa.ID, 42, dto.SubmitRequest{})
	require.ErrorIs(t, err, ErrSubmissionIncomplete)
}

func TestSubmitFromWrongStateFails(t *testing.T) {
	env := newServiceTestEnv(t)
	_, sa := env.seedGradableTask(t, models.ModalityReading, []questionSpec{
		{qType: evaluator.TypeSingleSelect, correctAnswer: `"A"`, points: 1, required: false},
	}, nil)
	svc := env.attemptService()

	_, err := svc.Submit(context.Background(), sa.ID, 42, dto.SubmitRequest{})
	var transition *StateTransitionError
	require.ErrorAs(t, err, &transition)
	require.Equal(t, "submit", transition.Operation)
	require.Equal(t, models.StudentAssignmentStatusNotStarted, transition.CurrentStatus)
}

func TestSubmitFromCompletedLeavesScoreUntouched(t *testing.T) {
	env := newServiceTestEnv(t)
	_, sa := env.seedGradableTask(t, models.ModalityListening, []questionSpec{
		{qType: evaluator.TypeSingleSelect, correctAnswer: `"B"`, points: 10, required: false},
	}, nil)
	svc := env.attemptService()

	submission, err := svc.Start(context.Background(), sa.ID, 42)
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), sa.ID, 42, dto.SubmitRequest{Answers: []dto.AnswerRequest{
		{QuestionID: submission.Answers[0].QuestionID, AnswerData: json.RawMessage(`"B"`)},
	}})
	require.NoError(t, err)

	before, err := env.assignments.GetStudentAssignment(context.Background(), sa.ID)
	require.NoError(t, err)
	require.Equal(t, models.StudentAssignmentStatusCompleted, before.Status)

	_, err = svc.Submit(context.Background(), sa.ID, 42, dto.SubmitRequest{})
	var transition *StateTransitionError
	require.ErrorAs(t, err, &transition)
	require.Equal(t, "submit", transition.Operation)
	require.Equal(t, models.StudentAssignmentStatusCompleted, transition.CurrentStatus)

	after, err := env.assignments.GetStudentAssignment(context.Background(), sa.ID)
	require.NoError(t, err)
	require.Equal(t, before.AttemptCount, after.AttemptCount)
	require.NotNil(t, after.Score)
	require.InDelta(t, *before.Score, *after.Score, 1e-9)
}

type submissionCreateFailure struct {
	repository.SubmissionRepository
}

func (submissionCreateFailure) Create(context.Context, *models.Submission) error {
	return errors.New("insert rejected")
}

type failingCreateRunner struct {
	inner repository.TxRunner
}

func (r failingCreateRunner) InTransaction(ctx context.Context, fn func(repository.Atomic) error) error {
	return r.inner.InTransaction(ctx, func(repos repository.Atomic) error {
		repos.Submissions = submissionCreateFailure{repos.Submissions}
		return fn(repos)
	})
}

func TestStartFailureLeavesRowRetryable(t *testing.T) {
	env := newServiceTestEnv(t)
	_, sa := env.seedGradableTask(t, models.ModalityReading, []questionSpec{
		{qType: evaluator.TypeSingleSelect, correctAnswer: `"A"`, points: 1, required: false},
	}, nil)

	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewAttemptService(env.assignments, env.submissions, env.tasks, failingCreateRunner{env.tx}, evaluator.NewRegistry(), nil, validate, nil, env.logger)

	_, err := svc.Start(context.Background(), sa.ID, 42)
	require.Error(t, err)

	// The failed insert rolled the counter bump back with it.
	reloaded, err := env.assignments.GetStudentAssignment(context.Background(), sa.ID)
	require.NoError(t, err)
	require.Equal(t, models.StudentAssignmentStatusNotStarted, reloaded.Status)
	require.Zero(t, reloaded.AttemptCount)

	// A retry against a healthy store succeeds from scratch.
	submission, err := env.attemptService().Start(context.Background(), sa.ID, 42)
	require.NoError(t, err)
	require.Equal(t, 1, submission.AttemptNumber)
}

func TestOwnershipIsEnforced(t *testing.T) {
	env := newServiceTestEnv(t)
	_, sa := env.seedGradableTask(t, models.ModalityReading, []questionSpec{
		{qType: evaluator.TypeSingleSelect, correctAnswer: `"A"`, points: 1, required: false},
	}, nil)
	svc := env.attemptService()

	_, err := svc.Start(context.Background(), sa.ID, 99)
	require.ErrorIs(t, err, ErrNotAssignmentOwner)
}

func TestReviewAndAcknowledgeWritingFlow(t *testing.T) {
	env := newServiceTestEnv(t)
	_, sa := env.seedGradableTask(t, models.ModalityWriting, []questionSpec{
		{qType: evaluator.TypeEssay, points: 10, required: true},
	}, nil)
	svc := env.attemptService()

	submission, err := svc.Start(context.Background(), sa.ID, 42)
	require.NoError(t, err)

	_, err = svc.SaveAnswer(context.Background(), sa.ID, 42, dto.AnswerRequest{
		QuestionID: submission.Answers[0].QuestionID,
		AnswerData: json.RawMessage(`"My essay about travel."`),
	})
	require.NoError(t, err)

	submitted, err := svc.Submit(context.Background(), sa.ID, 42, dto.SubmitRequest{})
	require.NoError(t, err)
	require.Equal(t, models.StudentAssignmentStatusSubmitted, submitted.Status)
	require.Nil(t, submitted.Score)

	reviewed, err := svc.Review(context.Background(), sa.ID, 7, dto.ReviewRequest{
		Score:    8.5,
		Feedback: "<script>alert(1)</script>Good structure.",
	})
	require.NoError(t, err)
	require.Equal(t, models.StudentAssignmentStatusReviewed, reviewed.Status)
	require.NotNil(t, reviewed.Score)
	require.InDelta(t, 8.5, *reviewed.Score, 1e-9)
	require.NotContains(t, reviewed.Feedback, "<script>")
	require.Contains(t, reviewed.Feedback, "Good structure.")

	done, err := svc.Acknowledge(context.Background(), sa.ID, 42)
	require.NoError(t, err)
	require.Equal(t, models.StudentAssignmentStatusDone, done.Status)
	require.NotNil(t, done.CompletedAt)
}

func TestReviewRejectsScoreAboveMaximum(t *testing.T) {
	env := newServiceTestEnv(t)
	_, sa := env.seedGradableTask(t, models.ModalityWriting, []questionSpec{
		{qType: evaluator.TypeEssay, points: 10, required: true},
	}, nil)
	svc := env.attemptService()

	submission, err := svc.Start(context.Background(), sa.ID, 42)
	require.NoError(t, err)
	_, err = svc.SaveAnswer(context.Background(), sa.ID, 42, dto.AnswerRequest{
		QuestionID: submission.Answers[0].QuestionID,
		AnswerData: json.RawMessage(`"essay"`),
	})
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), sa.ID, 42, dto.SubmitRequest{})
	require.NoError(t, err)

	_, err = svc.Review(context.Background(), sa.ID, 7, dto.ReviewRequest{Score: 11})
	require.ErrorIs(t, err, ErrReviewScoreExceedsMax)
}

func TestReviewRejectsAutoGradedModalities(t *testing.T) {
	env := newServiceTestEnv(t)
	_, sa := env.seedGradableTask(t, models.ModalityListening, []questionSpec{
		{qType: evaluator.TypeSingleSelect, correctAnswer: `"A"`, points: 1, required: false},
	}, nil)
	svc := env.attemptService()

	_, err := svc.Review(context.Background(), sa.ID, 7, dto.ReviewRequest{Score: 1})
	var transition *StateTransitionError
	require.ErrorAs(t, err, &transition)
	require.Equal(t, "review", transition.Operation)
}

func TestAcknowledgeOnlyAppliesToWriting(t *testing.T) {
	env := newServiceTestEnv(t)
	_, sa := env.seedGradableTask(t, models.ModalitySpeaking, []questionSpec{
		{qType: evaluator.TypeSpeakingPrompt, points: 10, required: true},
	}, nil)
	svc := env.attemptService()

	_, err := svc.Acknowledge(context.Background(), sa.ID, 42)
	var transition *StateTransitionError
	require.ErrorAs(t, err, &transition)
	require.Equal(t, "acknowledge", transition.Operation)
}

func TestSubmitEnforcesTimeLimit(t *testing.T) {
	env := newServiceTestEnv(t)
	limit := 30
	_, sa := env.seedGradableTask(t, models.ModalityReading, []questionSpec{
		{qType: evaluator.TypeSingleSelect, correctAnswer: `"A"`, points: 1, required: false},
	}, func(task *models.Task) {
		task.TimeLimitMinutes = &limit
	})

	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewAttemptService(env.assignments, env.submissions, env.tasks, env.tx, evaluator.NewRegistry(), nil, validate, nil, env.logger).(*attemptService)

	started := time.Now().Add(-time.Duration(limit+5) * time.Minute)
	svc.now = func() time.Time { return started }

	_, err := svc.Start(context.Background(), sa.ID, 42)
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.Submit(context.Background(), sa.ID, 42, dto.SubmitRequest{})
	require.ErrorIs(t, err, ErrTimeLimitExceeded)
}
