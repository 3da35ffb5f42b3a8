package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/workforce-api/internal/domain"
)

// AgentStore defines the persistence operations for agent metadata.
// The live agent set is owned by the registry; the store only mirrors it
// so terminated agents remain visible after they leave the live set.
type AgentStore interface {
	// UpsertAgent inserts the agent or, if the id already exists, overwrites
	// its metadata. Calling it twice with the same agent is a no-op.
	UpsertAgent(ctx context.Context, agent *domain.Agent) error

	// UpdateAgentStatus changes the persisted status of an agent.
	// Returns ErrAgentNotFound if no row matches.
	UpdateAgentStatus(ctx context.Context, id uuid.UUID, status domain.AgentStatus) error

	// UpdateAgentCounters raises the persisted completed/failed counters to
	// the given values. A counter is never lowered, so a stale write that
	// lands late leaves the newer value in place.
	// Returns ErrAgentNotFound if no row matches.
	UpdateAgentCounters(ctx context.Context, id uuid.UUID, completed, failed int) error

	// ListAgents returns up to limit agents ordered by created_at descending,
	// skipping any id in excludeIDs.
	ListAgents(ctx context.Context, excludeIDs []uuid.UUID, limit int) ([]domain.Agent, error)

	// TerminateOrphaned marks every non-terminated agent whose id is not in
	// liveIDs as terminated and returns the number of rows changed.
	TerminateOrphaned(ctx context.Context, liveIDs []uuid.UUID) (int64, error)
}
