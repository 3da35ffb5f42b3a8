package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTask(t *testing.T) {
	t.Parallel()

	task, err := NewTask(uuid.New(), uuid.New(), "extract_fields", nil, 0)
	require.NoError(t, err)

	assert.Equal(t, TaskStatusQueued, task.Status)
	assert.Equal(t, DefaultTaskPriority, task.Priority)
	assert.NotNil(t, task.Payload)
	assert.False(t, task.CreatedAt.IsZero())
	assert.Nil(t, task.StartedAt)
	assert.Nil(t, task.FinishedAt)
	assert.Nil(t, task.Error)

	_, err = NewTask(uuid.New(), uuid.New(), "extract_fields", nil, 11)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewTask(uuid.New(), uuid.Nil, "extract_fields", nil, 5)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewTask(uuid.Nil, uuid.New(), "extract_fields", nil, 5)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewTask(uuid.New(), uuid.New(), "", nil, 5)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTaskStatus_CanTransitionTo(t *testing.T) {
	t.Parallel()

	all := []TaskStatus{TaskStatusQueued, TaskStatusRunning, TaskStatusCompleted, TaskStatusFailed}
	allowed := map[[2]TaskStatus]bool{
		{TaskStatusQueued, TaskStatusRunning}:    true,
		{TaskStatusRunning, TaskStatusCompleted}: true,
		{TaskStatusRunning, TaskStatusFailed}:    true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]TaskStatus{from, to}]
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestTask_Transition(t *testing.T) {
	t.Parallel()

	t.Run("completed path stamps timestamps and keeps result", func(t *testing.T) {
		t.Parallel()

		task, err := NewTask(uuid.New(), uuid.New(), "dedupe", nil, 5)
		require.NoError(t, err)

		start := time.Now()
		require.NoError(t, task.Transition(TaskStatusRunning, start, nil, ""))
		require.NotNil(t, task.StartedAt)
		assert.Equal(t, start, *task.StartedAt)

		end := start.Add(time.Second)
		require.NoError(t, task.Transition(TaskStatusCompleted, end, map[string]any{"ok": true}, ""))
		require.NotNil(t, task.FinishedAt)
		assert.Equal(t, end, *task.FinishedAt)
		assert.Equal(t, map[string]any{"ok": true}, task.Result)
		assert.Nil(t, task.Error)
	})

	t.Run("failed path records error only", func(t *testing.T) {
		t.Parallel()

		task, err := NewTask(uuid.New(), uuid.New(), "dedupe", nil, 5)
		require.NoError(t, err)

		now := time.Now()
		require.NoError(t, task.Transition(TaskStatusRunning, now, nil, ""))
		require.NoError(t, task.Transition(TaskStatusFailed, now, "ignored", "boom"))
		require.NotNil(t, task.Error)
		assert.Equal(t, "boom", *task.Error)
		assert.Nil(t, task.Result)
	})

	t.Run("terminal states are never left", func(t *testing.T) {
		t.Parallel()

		task, err := NewTask(uuid.New(), uuid.New(), "dedupe", nil, 5)
		require.NoError(t, err)

		now := time.Now()
		require.NoError(t, task.Transition(TaskStatusRunning, now, nil, ""))
		require.NoError(t, task.Transition(TaskStatusCompleted, now, nil, ""))

		for _, next := range []TaskStatus{TaskStatusQueued, TaskStatusRunning, TaskStatusFailed, TaskStatusCompleted} {
			err := task.Transition(next, now, nil, "")
			assert.True(t, errors.Is(err, ErrInvalidTransition), "completed -> %s", next)
		}
		assert.Equal(t, TaskStatusCompleted, task.Status)
	})

	t.Run("queued cannot skip running", func(t *testing.T) {
		t.Parallel()

		task, err := NewTask(uuid.New(), uuid.New(), "dedupe", nil, 5)
		require.NoError(t, err)

		err = task.Transition(TaskStatusCompleted, time.Now(), nil, "")
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, TaskStatusQueued, task.Status)
		assert.Nil(t, task.FinishedAt)
	})
}

func TestTask_Clone(t *testing.T) {
	t.Parallel()

	task, err := NewTask(uuid.New(), uuid.New(), "dedupe", nil, 5)
	require.NoError(t, err)
	require.NoError(t, task.Transition(TaskStatusRunning, time.Now(), nil, ""))

	clone := task.Clone()
	*clone.StartedAt = clone.StartedAt.Add(time.Hour)

	assert.NotEqual(t, *task.StartedAt, *clone.StartedAt)
}

func TestParseAgentType(t *testing.T) {
	t.Parallel()

	for _, at := range AgentTypes {
		got, err := ParseAgentType(string(at))
		require.NoError(t, err)
		assert.Equal(t, at, got)
	}

	_, err := ParseAgentType("astronaut")
	assert.ErrorIs(t, err, ErrUnknownAgentType)
}
