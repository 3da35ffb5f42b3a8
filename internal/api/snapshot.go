package api

import (
	"context"

	"github.com/phrazzld/workforce-api/internal/agent"
	"github.com/phrazzld/workforce-api/internal/domain"
	"github.com/phrazzld/workforce-api/internal/events"
	"github.com/phrazzld/workforce-api/internal/task"
)

// SnapshotSource supplies the state sent to new WebSocket subscribers.
type SnapshotSource struct {
	registry *agent.Registry
	queue    *task.Queue
	metrics  task.MetricsSource
}

var _ events.SnapshotSource = (*SnapshotSource)(nil)

// NewSnapshotSource creates a SnapshotSource.
func NewSnapshotSource(registry *agent.Registry, queue *task.Queue, metrics task.MetricsSource) *SnapshotSource {
	return &SnapshotSource{registry: registry, queue: queue, metrics: metrics}
}

// Agents implements events.SnapshotSource.
func (s *SnapshotSource) Agents(ctx context.Context) []domain.Agent {
	return s.registry.List(ctx)
}

// RecentTasks implements events.SnapshotSource.
func (s *SnapshotSource) RecentTasks(ctx context.Context, limit int) []domain.Task {
	return s.queue.List(ctx, task.ListFilter{Limit: limit})
}

// Metrics implements events.SnapshotSource.
func (s *SnapshotSource) Metrics(ctx context.Context) domain.Metrics {
	return s.metrics.Snapshot(ctx)
}
