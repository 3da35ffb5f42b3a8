package metrics

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/phrazzld/workforce-api/internal/domain"
	"github.com/phrazzld/workforce-api/internal/events"
)

// Publisher delivers messages to subscribers.
type Publisher interface {
	Publish(ctx context.Context, msg events.Message)
	SubscriberCount() int
}

// Snapshotter produces metrics snapshots.
type Snapshotter interface {
	Snapshot(ctx context.Context) domain.Metrics
}

// Heartbeat publishes metrics_update on a cron schedule while anyone is
// subscribed, so throughput windows visibly age between completions.
type Heartbeat struct {
	cron      *cron.Cron
	source    Snapshotter
	publisher Publisher
	logger    *slog.Logger
}

// NewHeartbeat creates a Heartbeat for schedule, which accepts standard cron
// expressions and descriptors such as "@every 30s". An empty schedule
// returns a Heartbeat whose Start and Stop do nothing.
func NewHeartbeat(schedule string, source Snapshotter, publisher Publisher, logger *slog.Logger) (*Heartbeat, error) {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Heartbeat{
		source:    source,
		publisher: publisher,
		logger:    logger.With(slog.String("component", "metrics_heartbeat")),
	}
	if schedule == "" {
		return h, nil
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { h.Tick(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid metrics schedule %q: %w", schedule, err)
	}
	h.cron = c
	return h, nil
}

// Start begins running the schedule in the background.
func (h *Heartbeat) Start() {
	if h.cron == nil {
		h.logger.Info("metrics heartbeat disabled")
		return
	}
	h.cron.Start()
}

// Stop halts the schedule and waits for a running tick, or until ctx ends.
func (h *Heartbeat) Stop(ctx context.Context) {
	if h.cron == nil {
		return
	}
	select {
	case <-h.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Tick publishes one metrics_update if there are subscribers.
// It reports whether a message was published.
func (h *Heartbeat) Tick(ctx context.Context) bool {
	if h.publisher.SubscriberCount() == 0 {
		return false
	}
	h.publisher.Publish(ctx, events.NewMetricsUpdate(h.source.Snapshot(ctx)))
	return true
}
