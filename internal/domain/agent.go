package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AgentStatus represents the lifecycle state of an agent.
type AgentStatus string

// Possible agent status values
const (
	AgentStatusRunning    AgentStatus = "running"
	AgentStatusIdle       AgentStatus = "idle"
	AgentStatusTerminated AgentStatus = "terminated"
)

// AgentType selects the capability variant an agent runs.
type AgentType string

// Supported agent types
const (
	AgentTypeCustomerSupport  AgentType = "customer_support"
	AgentTypeDataEntry        AgentType = "data_entry"
	AgentTypeSoftwareEngineer AgentType = "software_engineer"
)

// AgentTypes lists every agent type with a capability implementation.
var AgentTypes = []AgentType{
	AgentTypeCustomerSupport,
	AgentTypeDataEntry,
	AgentTypeSoftwareEngineer,
}

// ParseAgentType converts a raw string into an AgentType.
// Returns ErrUnknownAgentType for unsupported values.
func ParseAgentType(s string) (AgentType, error) {
	for _, t := range AgentTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownAgentType, s)
}

// Agent is a point-in-time view of a capability-bearing worker.
// Live agents report their uptime; historical records report zero.
type Agent struct {
	ID             uuid.UUID      `json:"id"`
	Name           string         `json:"name"`
	Type           AgentType      `json:"type"`
	Description    string         `json:"description"`
	Status         AgentStatus    `json:"status"`
	Config         map[string]any `json:"config"`
	CreatedAt      time.Time      `json:"created_at"`
	UptimeSeconds  float64        `json:"uptime_seconds"`
	TasksCompleted int            `json:"tasks_completed"`
	TasksFailed    int            `json:"tasks_failed"`
	CurrentTask    *uuid.UUID     `json:"current_task"`
}

// IsLive reports whether the agent has not been terminated.
func (a Agent) IsLive() bool {
	return a.Status != AgentStatusTerminated
}
