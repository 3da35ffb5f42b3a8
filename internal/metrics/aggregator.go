package metrics

import (
	"context"
	"math"

	"github.com/phrazzld/workforce-api/internal/domain"
)

// AgentLister lists live and historical agents.
type AgentLister interface {
	List(ctx context.Context) []domain.Agent
}

// TaskCounter reports task counts and completion throughput.
type TaskCounter interface {
	StatusCounts(ctx context.Context) domain.TaskCounts
	Throughput() domain.Throughput
}

// Aggregator computes metrics snapshots on demand.
type Aggregator struct {
	agents AgentLister
	tasks  TaskCounter
}

// NewAggregator creates an Aggregator.
func NewAggregator(agents AgentLister, tasks TaskCounter) *Aggregator {
	return &Aggregator{agents: agents, tasks: tasks}
}

// Snapshot returns the current platform metrics.
func (a *Aggregator) Snapshot(ctx context.Context) domain.Metrics {
	var agents domain.AgentCounts
	for _, ag := range a.agents.List(ctx) {
		agents.Total++
		switch ag.Status {
		case domain.AgentStatusRunning:
			agents.Running++
		case domain.AgentStatusIdle:
			agents.Idle++
		case domain.AgentStatusTerminated:
			agents.Terminated++
		}
	}

	tasks := a.tasks.StatusCounts(ctx)
	tasks.SuccessRate = SuccessRate(tasks.Completed, tasks.Total)

	return domain.Metrics{
		Agents:     agents,
		Tasks:      tasks,
		Throughput: a.tasks.Throughput(),
	}
}

// SuccessRate returns completed/total as a percentage rounded to one
// decimal place, or 0 when total is 0.
func SuccessRate(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(completed)/float64(total)*1000) / 10
}
