package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the current state of a task
type TaskStatus string

// Possible task status values
const (
	TaskStatusQueued    TaskStatus = "queued"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// Priority bounds. Priority is recorded on the task but never used to
// reorder work.
const (
	MinTaskPriority     = 1
	MaxTaskPriority     = 10
	DefaultTaskPriority = 5
)

// transitions holds the only legal edges of the task state machine.
var transitions = map[TaskStatus][]TaskStatus{
	TaskStatusQueued:  {TaskStatusRunning},
	TaskStatusRunning: {TaskStatusCompleted, TaskStatusFailed},
}

// IsTerminal reports whether no further transition can leave s.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// IsValid reports whether s is one of the known statuses.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusQueued, TaskStatusRunning, TaskStatusCompleted, TaskStatusFailed:
		return true
	}
	return false
}

// CanTransitionTo reports whether the state machine allows s -> next.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Task is a unit of work submitted against an agent.
// Result is only set on completed tasks and Error only on failed ones.
type Task struct {
	ID         uuid.UUID      `json:"id"`
	AgentID    uuid.UUID      `json:"agent_id"`
	Type       string         `json:"type"`
	Payload    map[string]any `json:"payload"`
	Priority   int            `json:"priority"`
	Status     TaskStatus     `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Result     any            `json:"result"`
	Error      *string        `json:"error"`
}

// NewTask creates a queued task. A zero priority is replaced by
// DefaultTaskPriority.
func NewTask(id, agentID uuid.UUID, taskType string, payload map[string]any, priority int) (*Task, error) {
	if priority == 0 {
		priority = DefaultTaskPriority
	}
	if payload == nil {
		payload = map[string]any{}
	}

	t := &Task{
		ID:        id,
		AgentID:   agentID,
		Type:      taskType,
		Payload:   payload,
		Priority:  priority,
		Status:    TaskStatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks if the Task has valid data.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return fmt.Errorf("%w: task id cannot be empty", ErrValidation)
	}
	if t.AgentID == uuid.Nil {
		return fmt.Errorf("%w: agent id cannot be empty", ErrValidation)
	}
	if t.Type == "" {
		return fmt.Errorf("%w: task type cannot be empty", ErrValidation)
	}
	if t.Priority < MinTaskPriority || t.Priority > MaxTaskPriority {
		return fmt.Errorf("%w: priority must be between %d and %d",
			ErrValidation, MinTaskPriority, MaxTaskPriority)
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, t.Status)
	}
	return nil
}

// Transition moves the task to next, stamping started_at on entering
// running and finished_at on entering a terminal state. result is kept only
// for completed and errMsg only for failed.
func (t *Task) Transition(next TaskStatus, at time.Time, result any, errMsg string) error {
	if !t.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, next)
	}

	t.Status = next
	switch next {
	case TaskStatusRunning:
		t.StartedAt = &at
	case TaskStatusCompleted:
		t.FinishedAt = &at
		t.Result = result
	case TaskStatusFailed:
		t.FinishedAt = &at
		t.Error = &errMsg
	}
	return nil
}

// Clone returns a copy of the task that shares no pointer fields with t.
// Payload and Result are treated as immutable once set and are shared.
func (t *Task) Clone() Task {
	c := *t
	if t.StartedAt != nil {
		v := *t.StartedAt
		c.StartedAt = &v
	}
	if t.FinishedAt != nil {
		v := *t.FinishedAt
		c.FinishedAt = &v
	}
	if t.Error != nil {
		v := *t.Error
		c.Error = &v
	}
	return c
}
