package contract_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/linguahub/lingua-go-api/internal/dto"
	"github.com/linguahub/lingua-go-api/internal/handler"
)

type stubProgressService struct {
	response dto.StudentProgressResponse
}

func (s stubProgressService) GetProgress(context.Context, uint) (dto.StudentProgressResponse, error) {
	return s.response, nil
}

func (s stubProgressService) GetImprovementRate(context.Context, uint, uint) (float64, error) {
	return 0, nil
}

func TestStudentProgressContract(t *testing.T) {
	schemaPath, err := filepath.Abs(filepath.Join("..", "contracts", "student_progress.schema.json"))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile("file://" + schemaPath)
	require.NoError(t, err)

	now := time.Now().UTC()
	due := now.Add(24 * time.Hour)
	score := 82.5
	average := 82.5

	response := dto.StudentProgressResponse{
		StudentID: 42,
		Summary: dto.ProgressSummary{
			Total:          2,
			NotStarted:     1,
			Finished:       1,
			AverageScore:   &average,
			AwaitingReview: 0,
		},
		Assignments: []dto.StudentAssignmentResponse{
			{
				ID:           1,
				AssignmentID: 10,
				TaskID:       5,
				StudentID:    42,
				Title:        "Listening section 2",
				Modality:     "listening",
				Status:       "completed",
				AttemptCount: 1,
				Score:        &score,
				DueDate:      &due,
				StartedAt:    &now,
				CompletedAt:  &now,
			},
			{
				ID:           2,
				AssignmentID: 11,
				TaskID:       6,
				StudentID:    42,
				Title:        "Writing task 1",
				Modality:     "writing",
				Status:       "not_started",
			},
		},
	}

	progressHandler := handler.NewProgressHandler(stubProgressService{response: response}, zerolog.Nop())

	app := fiber.New()
	group := app.Group("/api/v1/progress", func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(42))
		c.Locals("user_role", "student")
		return c.Next()
	})
	progressHandler.Register(group)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/progress/me", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload))
}
