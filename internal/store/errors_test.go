package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNotFoundError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"generic not found", ErrNotFound, true},
		{"agent not found", ErrAgentNotFound, true},
		{"task not found", ErrTaskNotFound, true},
		{"wrapped task not found", fmt.Errorf("get: %w", ErrTaskNotFound), true},
		{"duplicate", ErrDuplicate, false},
		{"unrelated", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsNotFoundError(tt.err))
		})
	}
}

func TestIsDuplicateError(t *testing.T) {
	t.Parallel()

	assert.True(t, IsDuplicateError(ErrDuplicate))
	assert.True(t, IsDuplicateError(fmt.Errorf("insert: %w", ErrDuplicate)))
	assert.False(t, IsDuplicateError(ErrNotFound))
}

func TestStoreError(t *testing.T) {
	t.Parallel()

	t.Run("with wrapped error", func(t *testing.T) {
		t.Parallel()
		err := NewStoreError("task", "insert", "failed to insert task", ErrDuplicate)

		assert.Equal(t,
			"insert operation on task failed: failed to insert task: entity already exists",
			err.Error())
		assert.True(t, errors.Is(err, ErrDuplicate))

		var storeErr *StoreError
		assert.True(t, errors.As(fmt.Errorf("outer: %w", err), &storeErr))
		assert.Equal(t, "task", storeErr.Entity)
	})

	t.Run("without wrapped error", func(t *testing.T) {
		t.Parallel()
		err := NewStoreError("agent", "upsert", "empty id", nil)

		assert.Equal(t, "upsert operation on agent failed: empty id", err.Error())
		assert.Nil(t, err.Unwrap())
	})
}
