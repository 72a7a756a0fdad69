package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/linguahub/lingua-go-api/internal/dto"
	"github.com/linguahub/lingua-go-api/internal/evaluator"
	"github.com/linguahub/lingua-go-api/internal/models"
	"github.com/linguahub/lingua-go-api/internal/repository"
)

// improvementWindow is the number of attempts compared at each end of the
// history. Below twice this window the improvement rate is undefined and
// reported as zero; that cutoff is a product decision, not a rounding
// artifact.
const improvementWindow = 3

// ProgressService produces per-student assignment snapshots for dashboards.
type ProgressService interface {
	GetProgress(ctx context.Context, studentID uint) (dto.StudentProgressResponse, error)
	GetImprovementRate(ctx context.Context, taskID, studentID uint) (float64, error)
}

type progressService struct {
	assignments repository.AssignmentRepository
	submissions repository.SubmissionRepository
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      zerolog.Logger
	now         func() time.Time
}

// NewProgressService builds the progress aggregator.
func NewProgressService(assignments repository.AssignmentRepository, submissions repository.SubmissionRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) ProgressService {
	return &progressService{
		assignments: assignments,
		submissions: submissions,
		cache:       cache,
		cacheTTL:    ttl,
		logger:      logger.With().Str("component", "progress_service").Logger(),
		now:         time.Now,
	}
}

func (s *progressService) GetProgress(ctx context.Context, studentID uint) (dto.StudentProgressResponse, error) {
	cacheKey := fmt.Sprintf("progress:student:%d", studentID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.StudentProgressResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				s.logger.Debug().Uint("student_id", studentID).Msg("progress cache hit")
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read progress cache")
		}
	}

	rows, err := s.assignments.ListStudentAssignments(ctx, repository.StudentAssignmentFilter{StudentID: &studentID})
	if err != nil {
		return dto.StudentProgressResponse{}, err
	}

	response := s.buildResponse(studentID, rows)

	if s.cache != nil {
		if payload, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store progress cache")
			}
		}
	}

	return response, nil
}

// GetImprovementRate compares the first and last attempts of the score
// history. With fewer than six graded attempts the rate is defined as zero.
func (s *progressService) GetImprovementRate(ctx context.Context, taskID, studentID uint) (float64, error) {
	scores, err := s.submissions.ListGradedScores(ctx, taskID, studentID)
	if err != nil {
		return 0, err
	}

	if len(scores) < improvementWindow*2 {
		return 0, nil
	}

	var early, late float64
	for i := 0; i < improvementWindow; i++ {
		early += scores[i]
		late += scores[len(scores)-improvementWindow+i]
	}
	early /= improvementWindow
	late /= improvementWindow

	return evaluator.Round2(late - early), nil
}

func (s *progressService) buildResponse(studentID uint, rows []models.StudentAssignment) dto.StudentProgressResponse {
	now := s.now()

	response := dto.StudentProgressResponse{StudentID: studentID}
	items := make([]dto.StudentAssignmentResponse, 0, len(rows))

	var scoreTotal float64
	var scoredCount int

	for _, row := range rows {
		item := dto.NewStudentAssignmentResponse(row, now)
		items = append(items, item)

		response.Summary.Total++
		switch row.Status {
		case models.StudentAssignmentStatusNotStarted:
			response.Summary.NotStarted++
		case models.StudentAssignmentStatusInProgress:
			response.Summary.InProgress++
		case models.StudentAssignmentStatusSubmitted:
			response.Summary.AwaitingReview++
		default:
			response.Summary.Finished++
		}

		if item.IsOverdue {
			response.Summary.Overdue++
		}

		if row.Score != nil {
			scoreTotal += *row.Score
			scoredCount++
		}
	}

	if scoredCount > 0 {
		average := evaluator.Round2(scoreTotal / float64(scoredCount))
		response.Summary.AverageScore = &average
	}

	response.Assignments = items
	return response
}
