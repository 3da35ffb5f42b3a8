package postgres_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/workforce-api/internal/domain"
	"github.com/phrazzld/workforce-api/internal/platform/postgres"
	"github.com/phrazzld/workforce-api/internal/store"
	"github.com/phrazzld/workforce-api/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTask(t *testing.T, agentID uuid.UUID) *domain.Task {
	t.Helper()
	task, err := domain.NewTask(uuid.New(), agentID, "extract_fields",
		map[string]any{"text": "name: Ada"}, 0)
	require.NoError(t, err)
	task.CreatedAt = task.CreatedAt.Truncate(time.Microsecond)
	return task
}

func TestPostgresTaskStore(t *testing.T) {
	db := testdb.GetTestDBWithT(t)
	ctx := context.Background()

	t.Run("insert then get", func(t *testing.T) {
		testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
			s := postgres.NewPostgresTaskStore(tx, discardLogger())
			task := newTestTask(t, uuid.New())

			require.NoError(t, s.InsertTask(ctx, task))

			got, err := s.GetTask(ctx, task.ID)
			require.NoError(t, err)
			assert.Equal(t, task.ID, got.ID)
			assert.Equal(t, task.AgentID, got.AgentID)
			assert.Equal(t, domain.TaskStatusQueued, got.Status)
			assert.Equal(t, domain.DefaultTaskPriority, got.Priority)
			assert.Equal(t, map[string]any{"text": "name: Ada"}, got.Payload)
			assert.Nil(t, got.Result)
			assert.Nil(t, got.Error)
			assert.Nil(t, got.StartedAt)
		})
	})

	t.Run("duplicate insert", func(t *testing.T) {
		testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
			s := postgres.NewPostgresTaskStore(tx, discardLogger())
			task := newTestTask(t, uuid.New())

			require.NoError(t, s.InsertTask(ctx, task))
			err := s.InsertTask(ctx, task)
			assert.ErrorIs(t, err, store.ErrDuplicate)
		})
	})

	t.Run("get missing task", func(t *testing.T) {
		testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
			s := postgres.NewPostgresTaskStore(tx, discardLogger())
			_, err := s.GetTask(ctx, uuid.New())
			assert.ErrorIs(t, err, store.ErrTaskNotFound)
		})
	})

	t.Run("update persists lifecycle fields", func(t *testing.T) {
		testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
			s := postgres.NewPostgresTaskStore(tx, discardLogger())
			task := newTestTask(t, uuid.New())
			require.NoError(t, s.InsertTask(ctx, task))

			now := time.Now().UTC().Truncate(time.Microsecond)
			require.NoError(t, task.Transition(domain.TaskStatusRunning, now, nil, ""))
			require.NoError(t, task.Transition(domain.TaskStatusCompleted, now, map[string]any{"ok": true}, ""))
			require.NoError(t, s.UpdateTask(ctx, task))

			got, err := s.GetTask(ctx, task.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.TaskStatusCompleted, got.Status)
			assert.Equal(t, map[string]any{"ok": true}, got.Result)
			require.NotNil(t, got.StartedAt)
			require.NotNil(t, got.FinishedAt)
			assert.True(t, now.Equal(*got.FinishedAt))

			missing := newTestTask(t, uuid.New())
			assert.ErrorIs(t, s.UpdateTask(ctx, missing), store.ErrTaskNotFound)
		})
	})

	t.Run("list filters by agent and orders newest first", func(t *testing.T) {
		testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
			s := postgres.NewPostgresTaskStore(tx, discardLogger())
			agentID := uuid.New()

			first := newTestTask(t, agentID)
			second := newTestTask(t, agentID)
			second.CreatedAt = first.CreatedAt.Add(time.Second)
			other := newTestTask(t, uuid.New())
			for _, task := range []*domain.Task{first, second, other} {
				require.NoError(t, s.InsertTask(ctx, task))
			}

			tasks, err := s.ListTasks(ctx, store.TaskFilter{AgentID: agentID, Limit: 10})
			require.NoError(t, err)
			require.Len(t, tasks, 2)
			assert.Equal(t, second.ID, tasks[0].ID)
			assert.Equal(t, first.ID, tasks[1].ID)

			limited, err := s.ListTasks(ctx, store.TaskFilter{AgentID: agentID, Limit: 1})
			require.NoError(t, err)
			assert.Len(t, limited, 1)
		})
	})

	t.Run("count by status", func(t *testing.T) {
		testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
			s := postgres.NewPostgresTaskStore(tx, discardLogger())
			before, err := s.CountTasksByStatus(ctx)
			require.NoError(t, err)

			queued := newTestTask(t, uuid.New())
			done := newTestTask(t, uuid.New())
			now := time.Now().UTC()
			require.NoError(t, done.Transition(domain.TaskStatusRunning, now, nil, ""))
			require.NoError(t, done.Transition(domain.TaskStatusCompleted, now, nil, ""))
			require.NoError(t, s.InsertTask(ctx, queued))
			require.NoError(t, s.InsertTask(ctx, done))

			after, err := s.CountTasksByStatus(ctx)
			require.NoError(t, err)
			assert.Equal(t, before[domain.TaskStatusQueued]+1, after[domain.TaskStatusQueued])
			assert.Equal(t, before[domain.TaskStatusCompleted]+1, after[domain.TaskStatusCompleted])
			assert.Equal(t, before[domain.TaskStatusFailed], after[domain.TaskStatusFailed])
		})
	})

	t.Run("fail orphaned", func(t *testing.T) {
		testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
			s := postgres.NewPostgresTaskStore(tx, discardLogger())
			queued := newTestTask(t, uuid.New())
			require.NoError(t, s.InsertTask(ctx, queued))

			at := time.Now().UTC()
			n, err := s.FailOrphaned(ctx, "interrupted by restart", at)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, n, int64(1))

			got, err := s.GetTask(ctx, queued.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.TaskStatusFailed, got.Status)
			require.NotNil(t, got.Error)
			assert.Equal(t, "interrupted by restart", *got.Error)
			assert.NotNil(t, got.StartedAt)
			assert.NotNil(t, got.FinishedAt)
		})
	})
}
