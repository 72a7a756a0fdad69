package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/linguahub/lingua-go-api/internal/dto"
	"github.com/linguahub/lingua-go-api/internal/models"
	"github.com/linguahub/lingua-go-api/internal/repository"
)

// ActivityEntry captures the details required to persist an audit entry.
type ActivityEntry struct {
	ActorID    uint
	ActorRole  string
	Action     string
	EntityType string
	EntityID   *uint
	Metadata   map[string]interface{}
}

// ActivityRecorder defines behaviour for recording activity logs.
type ActivityRecorder interface {
	Record(ctx context.Context, entry ActivityEntry) (dto.ActivityResponse, error)
}

// ActivityService exposes methods to query and persist activity logs.
type ActivityService interface {
	ActivityRecorder
	List(ctx context.Context, filter repository.ActivityLogFilter) ([]dto.ActivityResponse, int64, error)
}

type activityService struct {
	repo   repository.ActivityLogRepository
	logger zerolog.Logger
}

// NewActivityService constructs the activity service.
func NewActivityService(repo repository.ActivityLogRepository, logger zerolog.Logger) ActivityService {
	return &activityService{
		repo:   repo,
		logger: logger.With().Str("component", "activity_service").Logger(),
	}
}

func (s *activityService) Record(ctx context.Context, entry ActivityEntry) (dto.ActivityResponse, error) {
	role := strings.ToLower(strings.TrimSpace(entry.ActorRole))
	if role == "" {
		role = "system"
	}

	record := models.ActivityLog{
		ActorID:    entry.ActorID,
		ActorRole:  role,
		Action:     strings.TrimSpace(entry.Action),
		EntityType: strings.TrimSpace(entry.EntityType),
		EntityID:   entry.EntityID,
		Metadata:   sanitizeMetadata(entry.Metadata),
	}

	if err := s.repo.Create(ctx, &record); err != nil {
		return dto.ActivityResponse{}, err
	}

	return dto.NewActivityResponse(record), nil
}

func (s *activityService) List(ctx context.Context, filter repository.ActivityLogFilter) ([]dto.ActivityResponse, int64, error) {
	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]dto.ActivityResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, dto.NewActivityResponse(record))
	}

	return responses, total, nil
}

func sanitizeMetadata(metadata map[string]interface{}) datatypes.JSONMap {
	if len(metadata) == 0 {
		return nil
	}

	sanitized := datatypes.JSONMap{}
	for key, value := range metadata {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			continue
		}
		sanitized[trimmed] = value
	}

	return sanitized
}
