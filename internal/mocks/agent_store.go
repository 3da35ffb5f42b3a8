package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/workforce-api/internal/domain"
	"github.com/phrazzld/workforce-api/internal/store"
)

// MockAgentStore implements store.AgentStore for testing.
type MockAgentStore struct {
	UpsertAgentFn         func(ctx context.Context, agent *domain.Agent) error
	UpdateAgentStatusFn   func(ctx context.Context, id uuid.UUID, status domain.AgentStatus) error
	UpdateAgentCountersFn func(ctx context.Context, id uuid.UUID, completed, failed int) error
	ListAgentsFn          func(ctx context.Context, excludeIDs []uuid.UUID, limit int) ([]domain.Agent, error)
	TerminateOrphanedFn   func(ctx context.Context, liveIDs []uuid.UUID) (int64, error)

	mu     sync.Mutex
	agents map[uuid.UUID]domain.Agent

	// Calls counts invocations per method name.
	calls map[string]int
}

// Ensure MockAgentStore implements store.AgentStore
var _ store.AgentStore = (*MockAgentStore)(nil)

// NewMockAgentStore creates a MockAgentStore backed by an in-memory map.
func NewMockAgentStore() *MockAgentStore {
	return &MockAgentStore{
		agents: make(map[uuid.UUID]domain.Agent),
		calls:  make(map[string]int),
	}
}

func (m *MockAgentStore) track(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[method]++
}

// Calls returns how many times method was invoked.
func (m *MockAgentStore) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// Agent returns the stored copy of an agent.
func (m *MockAgentStore) Agent(id uuid.UUID) (domain.Agent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	return a, ok
}

// Seed stores agents directly, bypassing call tracking.
func (m *MockAgentStore) Seed(agents ...domain.Agent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.agents == nil {
		m.agents = make(map[uuid.UUID]domain.Agent)
	}
	for _, a := range agents {
		m.agents[a.ID] = a
	}
}

// UpsertAgent implements store.AgentStore
func (m *MockAgentStore) UpsertAgent(ctx context.Context, agent *domain.Agent) error {
	m.track("UpsertAgent")
	if m.UpsertAgentFn != nil {
		return m.UpsertAgentFn(ctx, agent)
	}
	m.Seed(*agent)
	return nil
}

// UpdateAgentStatus implements store.AgentStore
func (m *MockAgentStore) UpdateAgentStatus(ctx context.Context, id uuid.UUID, status domain.AgentStatus) error {
	m.track("UpdateAgentStatus")
	if m.UpdateAgentStatusFn != nil {
		return m.UpdateAgentStatusFn(ctx, id, status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	if !ok {
		return store.ErrAgentNotFound
	}
	a.Status = status
	m.agents[id] = a
	return nil
}

// UpdateAgentCounters implements store.AgentStore
func (m *MockAgentStore) UpdateAgentCounters(ctx context.Context, id uuid.UUID, completed, failed int) error {
	m.track("UpdateAgentCounters")
	if m.UpdateAgentCountersFn != nil {
		return m.UpdateAgentCountersFn(ctx, id, completed, failed)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	if !ok {
		return store.ErrAgentNotFound
	}
	a.TasksCompleted = max(a.TasksCompleted, completed)
	a.TasksFailed = max(a.TasksFailed, failed)
	m.agents[id] = a
	return nil
}

// ListAgents implements store.AgentStore
func (m *MockAgentStore) ListAgents(ctx context.Context, excludeIDs []uuid.UUID, limit int) ([]domain.Agent, error) {
	m.track("ListAgents")
	if m.ListAgentsFn != nil {
		return m.ListAgentsFn(ctx, excludeIDs, limit)
	}

	excluded := make(map[uuid.UUID]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = struct{}{}
	}

	m.mu.Lock()
	out := make([]domain.Agent, 0, len(m.agents))
	for id, a := range m.agents {
		if _, skip := excluded[id]; !skip {
			out = append(out, a)
		}
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// TerminateOrphaned implements store.AgentStore
func (m *MockAgentStore) TerminateOrphaned(ctx context.Context, liveIDs []uuid.UUID) (int64, error) {
	m.track("TerminateOrphaned")
	if m.TerminateOrphanedFn != nil {
		return m.TerminateOrphanedFn(ctx, liveIDs)
	}

	live := make(map[uuid.UUID]struct{}, len(liveIDs))
	for _, id := range liveIDs {
		live[id] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, a := range m.agents {
		if _, ok := live[id]; ok || a.Status == domain.AgentStatusTerminated {
			continue
		}
		a.Status = domain.AgentStatusTerminated
		m.agents[id] = a
		n++
	}
	return n, nil
}
