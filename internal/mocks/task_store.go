package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/workforce-api/internal/domain"
	"github.com/phrazzld/workforce-api/internal/store"
)

// MockTaskStore implements store.TaskStore for testing.
type MockTaskStore struct {
	InsertTaskFn   func(ctx context.Context, task *domain.Task) error
	UpdateTaskFn   func(ctx context.Context, task *domain.Task) error
	GetTaskFn      func(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	ListTasksFn    func(ctx context.Context, filter store.TaskFilter) ([]domain.Task, error)
	FailOrphanedFn func(ctx context.Context, errMsg string, at time.Time) (int64, error)

	CountTasksByStatusFn func(ctx context.Context) (map[domain.TaskStatus]int, error)

	mu    sync.Mutex
	tasks map[uuid.UUID]domain.Task
	calls map[string]int
}

// Ensure MockTaskStore implements store.TaskStore
var _ store.TaskStore = (*MockTaskStore)(nil)

// NewMockTaskStore creates a MockTaskStore backed by an in-memory map.
func NewMockTaskStore() *MockTaskStore {
	return &MockTaskStore{
		tasks: make(map[uuid.UUID]domain.Task),
		calls: make(map[string]int),
	}
}

func (m *MockTaskStore) track(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[method]++
}

// Calls returns how many times method was invoked.
func (m *MockTaskStore) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// Task returns the stored copy of a task.
func (m *MockTaskStore) Task(id uuid.UUID) (domain.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	return t, ok
}

// Len returns the number of stored tasks.
func (m *MockTaskStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Seed stores tasks directly, bypassing call tracking.
func (m *MockTaskStore) Seed(tasks ...domain.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tasks == nil {
		m.tasks = make(map[uuid.UUID]domain.Task)
	}
	for _, t := range tasks {
		m.tasks[t.ID] = t.Clone()
	}
}

// InsertTask implements store.TaskStore
func (m *MockTaskStore) InsertTask(ctx context.Context, task *domain.Task) error {
	m.track("InsertTask")
	if m.InsertTaskFn != nil {
		return m.InsertTaskFn(ctx, task)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tasks == nil {
		m.tasks = make(map[uuid.UUID]domain.Task)
	}
	if _, exists := m.tasks[task.ID]; exists {
		return store.ErrDuplicate
	}
	m.tasks[task.ID] = task.Clone()
	return nil
}

// UpdateTask implements store.TaskStore
func (m *MockTaskStore) UpdateTask(ctx context.Context, task *domain.Task) error {
	m.track("UpdateTask")
	if m.UpdateTaskFn != nil {
		return m.UpdateTaskFn(ctx, task)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tasks[task.ID]; !exists {
		return store.ErrTaskNotFound
	}
	m.tasks[task.ID] = task.Clone()
	return nil
}

// GetTask implements store.TaskStore
func (m *MockTaskStore) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	m.track("GetTask")
	if m.GetTaskFn != nil {
		return m.GetTaskFn(ctx, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	c := t.Clone()
	return &c, nil
}

// ListTasks implements store.TaskStore
func (m *MockTaskStore) ListTasks(ctx context.Context, filter store.TaskFilter) ([]domain.Task, error) {
	m.track("ListTasks")
	if m.ListTasksFn != nil {
		return m.ListTasksFn(ctx, filter)
	}

	m.mu.Lock()
	out := make([]domain.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		if filter.AgentID == uuid.Nil || t.AgentID == filter.AgentID {
			out = append(out, t.Clone())
		}
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit >= 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// CountTasksByStatus implements store.TaskStore
func (m *MockTaskStore) CountTasksByStatus(ctx context.Context) (map[domain.TaskStatus]int, error) {
	m.track("CountTasksByStatus")
	if m.CountTasksByStatusFn != nil {
		return m.CountTasksByStatusFn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[domain.TaskStatus]int)
	for _, t := range m.tasks {
		counts[t.Status]++
	}
	return counts, nil
}

// FailOrphaned implements store.TaskStore
func (m *MockTaskStore) FailOrphaned(ctx context.Context, errMsg string, at time.Time) (int64, error) {
	m.track("FailOrphaned")
	if m.FailOrphanedFn != nil {
		return m.FailOrphanedFn(ctx, errMsg, at)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, t := range m.tasks {
		if t.Status.IsTerminal() {
			continue
		}
		if t.StartedAt == nil {
			started := at
			t.StartedAt = &started
		}
		finished := at
		msg := errMsg
		t.Status = domain.TaskStatusFailed
		t.FinishedAt = &finished
		t.Error = &msg
		m.tasks[id] = t
		n++
	}
	return n, nil
}
