package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/workforce-api/internal/domain"
)

// TaskFilter narrows a task listing.
type TaskFilter struct {
	// AgentID restricts results to a single agent when not uuid.Nil.
	AgentID uuid.UUID

	// Limit caps the number of rows returned.
	Limit int
}

// TaskStore defines the persistence operations for task records.
// Tasks are inserted once and then updated in place; they are never deleted.
type TaskStore interface {
	// InsertTask saves a new task.
	// Returns ErrDuplicate if a task with the same id exists.
	InsertTask(ctx context.Context, task *domain.Task) error

	// UpdateTask persists the status, timestamps, result and error of an
	// existing task. Returns ErrTaskNotFound if no row matches.
	UpdateTask(ctx context.Context, task *domain.Task) error

	// GetTask retrieves a task by id.
	// Returns ErrTaskNotFound if the task does not exist.
	GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// ListTasks returns tasks ordered by created_at descending.
	ListTasks(ctx context.Context, filter TaskFilter) ([]domain.Task, error)

	// CountTasksByStatus returns the number of stored tasks per status.
	// Statuses with no tasks are absent from the map.
	CountTasksByStatus(ctx context.Context) (map[domain.TaskStatus]int, error)

	// FailOrphaned moves every queued or running task to failed with the
	// given message and finish time, returning the number of rows changed.
	FailOrphaned(ctx context.Context, errMsg string, at time.Time) (int64, error)
}
