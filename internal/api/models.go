package api

import (
	"time"

	"github.com/google/uuid"
)

// DeployAgentRequest is the body of POST /agents/deploy.
type DeployAgentRequest struct {
	AgentType   string         `json:"agent_type" validate:"required"`
	Name        string         `json:"name" validate:"required,max=200"`
	Config      map[string]any `json:"config"`
	Description string         `json:"description" validate:"max=1000"`
}

// DeployAgentResponse is returned by POST /agents/deploy.
type DeployAgentResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// TerminateAgentResponse is returned by DELETE /agents/{id}.
type TerminateAgentResponse struct {
	Status  string    `json:"status"`
	AgentID uuid.UUID `json:"agent_id"`
}

// SubmitTaskRequest is the body of POST /tasks/submit.
type SubmitTaskRequest struct {
	AgentID  string         `json:"agent_id" validate:"required"`
	TaskType string         `json:"task_type" validate:"required,max=100"`
	Payload  map[string]any `json:"payload"`
	Priority int            `json:"priority" validate:"omitempty,min=1,max=10"`
}

// SubmitTaskResponse is returned by POST /tasks/submit.
type SubmitTaskResponse struct {
	TaskID uuid.UUID `json:"task_id"`
	Status string    `json:"status"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
