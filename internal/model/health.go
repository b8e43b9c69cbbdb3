package model

import (
	"time"

	"github.com/quizforge/quizforge-backend/internal/response"
)

// HealthResponse reports liveness and the process start time.
type HealthResponse struct {
	response.Result
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}
