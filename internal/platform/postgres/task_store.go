package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/workforce-api/internal/domain"
	"github.com/phrazzld/workforce-api/internal/platform/logger"
	"github.com/phrazzld/workforce-api/internal/store"
)

// MaxTaskListLimit caps the number of rows ListTasks will return.
const MaxTaskListLimit = 1000

// PostgresTaskStore implements the store.TaskStore interface using PostgreSQL
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgresTaskStore.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

const taskColumns = `id, agent_id, type, payload, priority, status, result, error,
	created_at, started_at, finished_at`

// InsertTask persists a new task to the database
func (s *PostgresTaskStore) InsertTask(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		return store.NewStoreError("task", "insert", "invalid task", fmt.Errorf("%w: %v", store.ErrInvalidEntity, err))
	}

	payload, err := encodeJSONB(task.Payload)
	if err != nil {
		return store.NewStoreError("task", "insert", "invalid payload", err)
	}
	result, err := encodeJSONB(task.Result)
	if err != nil {
		return store.NewStoreError("task", "insert", "invalid result", err)
	}

	query := `
		INSERT INTO tasks (id, agent_id, type, payload, priority, status, result, error,
			created_at, started_at, finished_at, updated_at)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7::jsonb, $8, $9, $10, $11, NOW())
	`
	_, err = s.db.ExecContext(ctx, query,
		task.ID,
		task.AgentID,
		task.Type,
		payload,
		task.Priority,
		string(task.Status),
		result,
		task.Error,
		task.CreatedAt.UTC(),
		nullableTime(task.StartedAt),
		nullableTime(task.FinishedAt),
	)
	if err != nil {
		log.Error("failed to insert task",
			slog.String("task_id", task.ID.String()),
			slog.String("task_type", task.Type),
			slog.String("error", err.Error()))
		return store.NewStoreError("task", "insert", "failed to insert task", MapError(err))
	}

	log.Debug("task inserted",
		slog.String("task_id", task.ID.String()),
		slog.String("agent_id", task.AgentID.String()))
	return nil
}

// UpdateTask writes the mutable columns of an existing task
func (s *PostgresTaskStore) UpdateTask(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := encodeJSONB(task.Result)
	if err != nil {
		return store.NewStoreError("task", "update", "invalid result", err)
	}

	query := `
		UPDATE tasks
		SET status = $2, result = $3::jsonb, error = $4,
			started_at = $5, finished_at = $6, updated_at = NOW()
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		task.ID,
		string(task.Status),
		result,
		task.Error,
		nullableTime(task.StartedAt),
		nullableTime(task.FinishedAt),
	)
	if err != nil {
		log.Error("failed to update task",
			slog.String("task_id", task.ID.String()),
			slog.String("status", string(task.Status)),
			slog.String("error", err.Error()))
		return store.NewStoreError("task", "update", "failed to update task", MapError(err))
	}

	return CheckRowsAffected(res, store.ErrTaskNotFound)
}

// GetTask retrieves a single task by id
func (s *PostgresTaskStore) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)

	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Debug("task not found", slog.String("task_id", id.String()))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task",
			slog.String("task_id", id.String()),
			slog.String("error", err.Error()))
		return nil, store.NewStoreError("task", "get", "failed to get task", err)
	}

	return &task, nil
}

// ListTasks returns tasks newest first, optionally filtered by agent
func (s *PostgresTaskStore) ListTasks(ctx context.Context, filter store.TaskFilter) ([]domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	limit := filter.Limit
	if limit <= 0 {
		return []domain.Task{}, nil
	}
	if limit > MaxTaskListLimit {
		limit = MaxTaskListLimit
	}

	var (
		rows *sql.Rows
		err  error
	)
	if filter.AgentID != uuid.Nil {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+taskColumns+` FROM tasks
			WHERE agent_id = $1
			ORDER BY created_at DESC
			LIMIT $2`,
			filter.AgentID, limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+taskColumns+` FROM tasks
			ORDER BY created_at DESC
			LIMIT $1`,
			limit)
	}
	if err != nil {
		log.Error("failed to list tasks",
			slog.String("agent_id", filter.AgentID.String()),
			slog.String("error", err.Error()))
		return nil, store.NewStoreError("task", "list", "failed to query tasks", MapError(err))
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			log.Warn("failed to close task rows", slog.String("error", cerr.Error()))
		}
	}()

	tasks := make([]domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, store.NewStoreError("task", "list", "failed to scan task", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("task", "list", "failed to iterate tasks", MapError(err))
	}

	return tasks, nil
}

// CountTasksByStatus aggregates the task table by status
func (s *PostgresTaskStore) CountTasksByStatus(ctx context.Context) (map[domain.TaskStatus]int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		log.Error("failed to count tasks", slog.String("error", err.Error()))
		return nil, store.NewStoreError("task", "count", "failed to count tasks", MapError(err))
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			log.Warn("failed to close task count rows", slog.String("error", cerr.Error()))
		}
	}()

	counts := make(map[domain.TaskStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, store.NewStoreError("task", "count", "failed to scan count", MapError(err))
		}
		counts[domain.TaskStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("task", "count", "failed to iterate counts", MapError(err))
	}

	return counts, nil
}

// FailOrphaned marks tasks left queued or running as failed
func (s *PostgresTaskStore) FailOrphaned(ctx context.Context, errMsg string, at time.Time) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks
		SET status = $1, error = $2, finished_at = $3,
			started_at = COALESCE(started_at, $3), updated_at = NOW()
		WHERE status IN ($4, $5)`,
		string(domain.TaskStatusFailed),
		errMsg,
		at.UTC(),
		string(domain.TaskStatusQueued),
		string(domain.TaskStatusRunning),
	)
	if err != nil {
		log.Error("failed to fail orphaned tasks", slog.String("error", err.Error()))
		return 0, store.NewStoreError("task", "update", "failed to fail orphans", MapError(err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

func scanTask(row rowScanner) (domain.Task, error) {
	var (
		task       domain.Task
		status     string
		payload    []byte
		result     []byte
		errMsg     sql.NullString
		createdAt  time.Time
		startedAt  sql.NullTime
		finishedAt sql.NullTime
	)

	err := row.Scan(
		&task.ID,
		&task.AgentID,
		&task.Type,
		&payload,
		&task.Priority,
		&status,
		&result,
		&errMsg,
		&createdAt,
		&startedAt,
		&finishedAt,
	)
	if err != nil {
		return domain.Task{}, MapError(err)
	}

	task.Status = domain.TaskStatus(status)
	task.CreatedAt = createdAt.UTC()
	task.StartedAt = scanNullTime(startedAt)
	task.FinishedAt = scanNullTime(finishedAt)
	task.Error = scanNullString(errMsg)

	if task.Payload, err = decodeJSONBMap(payload); err != nil {
		return domain.Task{}, err
	}
	if task.Result, err = decodeJSONBValue(result); err != nil {
		return domain.Task{}, err
	}

	return task, nil
}
