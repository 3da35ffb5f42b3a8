package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/workforce-api/internal/agent"
	"github.com/phrazzld/workforce-api/internal/api"
	"github.com/phrazzld/workforce-api/internal/capability"
	"github.com/phrazzld/workforce-api/internal/config"
	"github.com/phrazzld/workforce-api/internal/events"
	"github.com/phrazzld/workforce-api/internal/metrics"
	"github.com/phrazzld/workforce-api/internal/platform/gemini"
	"github.com/phrazzld/workforce-api/internal/platform/postgres"
	"github.com/phrazzld/workforce-api/internal/store"
	"github.com/phrazzld/workforce-api/internal/task"
)

// application holds the shared dependencies so they can be wired once and
// shut down in order.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	agentStore store.AgentStore
	taskStore  store.TaskStore

	factory     *agent.Factory
	registry    *agent.Registry
	queue       *task.Queue
	pool        *task.WorkerPool
	dispatcher  *task.Dispatcher
	aggregator  *metrics.Aggregator
	broadcaster *events.Broadcaster
	heartbeat   *metrics.Heartbeat
}

// newApplication wires every component. Rows left running by a previous
// process are reconciled before the worker pool starts.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	app.agentStore = postgres.NewPostgresAgentStore(db, logger)
	app.taskStore = postgres.NewPostgresTaskStore(db, logger)

	deps := capability.Dependencies{ModelName: cfg.LLM.ModelName}
	if cfg.LLM.GeminiAPIKey != "" {
		generator, err := gemini.NewGeminiGenerator(ctx, logger, cfg.LLM)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize LLM generator: %w", err)
		}
		deps.Generator = generator
		logger.Info("LLM generator initialized", slog.String("model", cfg.LLM.ModelName))
	} else {
		logger.Warn("no Gemini API key configured, software_engineer output will be placeholders")
	}
	app.factory = agent.NewFactory(cfg.Agents.AllowedTypes, deps)

	app.registry = agent.NewRegistry(app.agentStore, logger, agent.RegistryConfig{
		HistoryLimit: cfg.Agents.HistoryLimit,
	})
	app.queue = task.NewQueue(app.taskStore, logger)

	if n, err := app.registry.Reconcile(ctx); err != nil {
		logger.Error("failed to reconcile agents", slog.String("error", err.Error()))
	} else if n > 0 {
		logger.Info("terminated agents left by a previous run", slog.Int64("count", n))
	}
	if n, err := app.queue.FailOrphaned(ctx); err != nil {
		logger.Error("failed to fail orphaned tasks", slog.String("error", err.Error()))
	} else if n > 0 {
		logger.Info("failed tasks interrupted by restart", slog.Int64("count", n))
	}

	app.aggregator = metrics.NewAggregator(app.registry, app.queue)
	app.broadcaster = events.NewBroadcaster(
		api.NewSnapshotSource(app.registry, app.queue, app.aggregator),
		logger,
		events.Config{InitTaskLimit: cfg.Events.InitTaskLimit},
	)

	app.pool = task.NewWorkerPool(task.WorkerPoolConfig{
		WorkerCount: cfg.Task.WorkerCount,
		QueueSize:   cfg.Task.QueueSize,
	}, logger)
	app.pool.Start()

	app.dispatcher = task.NewDispatcher(app.registry, app.queue, app.pool, app.broadcaster, app.aggregator, logger)

	var err error
	app.heartbeat, err = metrics.NewHeartbeat(cfg.Events.MetricsSchedule, app.aggregator, app.broadcaster, logger)
	if err != nil {
		app.pool.Stop()
		return nil, fmt.Errorf("failed to create metrics heartbeat: %w", err)
	}
	app.heartbeat.Start()

	logger.Info("application initialized",
		slog.Int("worker_count", cfg.Task.WorkerCount),
		slog.Any("allowed_agent_types", cfg.Agents.AllowedTypes))
	return app, nil
}

// Run serves HTTP until ctx is canceled, then shuts everything down.
func (app *application) Run(ctx context.Context) error {
	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup stops background work and closes the database. Tasks already
// handed to the pool are drained first so their final state is persisted.
func (app *application) cleanup() {
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	app.heartbeat.Stop(stopCtx)

	app.dispatcher.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database connection", slog.String("error", err.Error()))
	}

	app.logger.Info("application shutdown completed")
}
