package dto

// ProgressSummary aggregates a student's assignment statuses.
type ProgressSummary struct {
	Total          int      `json:"total"`
	NotStarted     int      `json:"not_started"`
	InProgress     int      `json:"in_progress"`
	AwaitingReview int      `json:"awaiting_review"`
	Finished       int      `json:"finished"`
	Overdue        int      `json:"overdue"`
	AverageScore   *float64 `json:"average_score"`
}

// StudentProgressResponse is the dashboard snapshot for one student.
type StudentProgressResponse struct {
	StudentID   uint                        `json:"student_id"`
	Summary     ProgressSummary             `json:"summary"`
	Assignments []StudentAssignmentResponse `json:"assignments"`
}
