package agent

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/workforce-api/internal/domain"
	"github.com/phrazzld/workforce-api/internal/platform/logger"
	"github.com/phrazzld/workforce-api/internal/store"
)

// DefaultHistoryLimit is the number of non-live agents List reports when
// no limit is configured.
const DefaultHistoryLimit = 50

// RegistryConfig holds configuration for the Registry.
type RegistryConfig struct {
	// HistoryLimit bounds how many terminated agents List reads back from
	// storage. Zero disables history; negative selects DefaultHistoryLimit.
	HistoryLimit int
}

// DefaultRegistryConfig returns a RegistryConfig with reasonable defaults.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{HistoryLimit: DefaultHistoryLimit}
}

// Registry owns the live agent set and mirrors agent metadata to storage.
// Storage failures never fail a registry operation; they are logged.
type Registry struct {
	mu   sync.RWMutex
	live map[uuid.UUID]*Instance

	store        store.AgentStore
	historyLimit int
	logger       *slog.Logger
	now          func() time.Time
}

// NewRegistry creates a Registry backed by agentStore.
func NewRegistry(agentStore store.AgentStore, log *slog.Logger, cfg RegistryConfig) *Registry {
	if agentStore == nil {
		panic("agentStore cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.HistoryLimit < 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}

	return &Registry{
		live:         make(map[uuid.UUID]*Instance),
		store:        agentStore,
		historyLimit: cfg.HistoryLimit,
		logger:       log.With(slog.String("component", "agent_registry")),
		now:          time.Now,
	}
}

// Register adds inst to the live set and persists its metadata.
func (r *Registry) Register(ctx context.Context, inst *Instance) {
	r.mu.Lock()
	r.live[inst.ID()] = inst
	r.mu.Unlock()

	log := logger.FromContextOrDefault(ctx, r.logger)
	log.Info("agent registered",
		slog.String("agent_id", inst.ID().String()),
		slog.String("agent_type", string(inst.Type())))

	rec := inst.record()
	if err := r.store.UpsertAgent(ctx, &rec); err != nil {
		log.Error("failed to persist agent",
			slog.String("agent_id", inst.ID().String()),
			slog.String("error", err.Error()))
	}
}

// Get returns the live instance for id, or nil.
func (r *Registry) Get(id uuid.UUID) *Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.live[id]
}

// LiveIDs returns the ids of all live agents.
func (r *Registry) LiveIDs() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(r.live))
	for id := range r.live {
		ids = append(ids, id)
	}
	return ids
}

// Terminate removes a live agent and persists its terminated status.
// Returns false, with no mutation, if id is not live.
func (r *Registry) Terminate(ctx context.Context, id uuid.UUID) bool {
	r.mu.Lock()
	inst, ok := r.live[id]
	if ok {
		delete(r.live, id)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}

	inst.markTerminated()

	log := logger.FromContextOrDefault(ctx, r.logger)
	log.Info("agent terminated", slog.String("agent_id", id.String()))

	if err := r.store.UpdateAgentStatus(ctx, id, domain.AgentStatusTerminated); err != nil {
		log.Error("failed to persist agent termination",
			slog.String("agent_id", id.String()),
			slog.String("error", err.Error()))
	}
	return true
}

// List returns the live agents, oldest first, followed by up to the
// configured number of non-live agents from storage, newest first.
func (r *Registry) List(ctx context.Context) []domain.Agent {
	now := r.now()

	r.mu.RLock()
	instances := make([]*Instance, 0, len(r.live))
	for _, inst := range r.live {
		instances = append(instances, inst)
	}
	r.mu.RUnlock()

	sort.Slice(instances, func(i, j int) bool {
		if instances[i].CreatedAt().Equal(instances[j].CreatedAt()) {
			return instances[i].ID().String() < instances[j].ID().String()
		}
		return instances[i].CreatedAt().Before(instances[j].CreatedAt())
	})

	agents := make([]domain.Agent, 0, len(instances))
	liveIDs := make([]uuid.UUID, 0, len(instances))
	for _, inst := range instances {
		agents = append(agents, inst.Snapshot(now))
		liveIDs = append(liveIDs, inst.ID())
	}

	if r.historyLimit == 0 {
		return agents
	}

	history, err := r.store.ListAgents(ctx, liveIDs, r.historyLimit)
	if err != nil {
		logger.FromContextOrDefault(ctx, r.logger).Error("failed to load agent history",
			slog.String("error", err.Error()))
		return agents
	}

	for _, a := range history {
		a.UptimeSeconds = 0
		a.CurrentTask = nil
		if a.Config == nil {
			a.Config = map[string]any{}
		}
		agents = append(agents, a)
	}
	return agents
}

// SyncCounters persists the current counters of inst. Writes for one agent
// are serialized and each reads the counters under the lock, so the stored
// values only move forward even when completions race.
func (r *Registry) SyncCounters(ctx context.Context, inst *Instance) {
	inst.syncMu.Lock()
	defer inst.syncMu.Unlock()

	counters := inst.Counters()
	if err := r.store.UpdateAgentCounters(ctx, inst.ID(), counters.Completed, counters.Failed); err != nil {
		logger.FromContextOrDefault(ctx, r.logger).Error("failed to persist agent counters",
			slog.String("agent_id", inst.ID().String()),
			slog.Int("tasks_completed", counters.Completed),
			slog.Int("tasks_failed", counters.Failed),
			slog.String("error", err.Error()))
	}
}

// Reconcile marks agents persisted by a previous process as terminated.
// It should run before any agent is registered.
func (r *Registry) Reconcile(ctx context.Context) (int64, error) {
	n, err := r.store.TerminateOrphaned(ctx, r.LiveIDs())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.FromContextOrDefault(ctx, r.logger).Info("terminated orphaned agents",
			slog.Int64("count", n))
	}
	return n, nil
}
