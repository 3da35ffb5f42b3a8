package task

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"

	"github.com/phrazzld/workforce-api/internal/agent"
	"github.com/phrazzld/workforce-api/internal/domain"
	"github.com/phrazzld/workforce-api/internal/events"
	"github.com/phrazzld/workforce-api/internal/platform/logger"
)

// Publisher delivers state-change notifications.
type Publisher interface {
	Publish(ctx context.Context, msg events.Message)
}

// MetricsSource computes platform metrics.
type MetricsSource interface {
	Snapshot(ctx context.Context) domain.Metrics
}

// SubmitRequest describes a task to run on a live agent.
type SubmitRequest struct {
	AgentID  uuid.UUID
	TaskType string
	Payload  map[string]any
	Priority int
}

// Handle tracks one submitted task.
type Handle struct {
	taskID uuid.UUID
	queue  *Queue
	done   chan struct{}
}

// TaskID returns the id of the submitted task.
func (h *Handle) TaskID() uuid.UUID { return h.taskID }

// Done is closed once the task's job has finished.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the task finishes or ctx ends, then returns the task.
func (h *Handle) Wait(ctx context.Context) (domain.Task, error) {
	select {
	case <-h.done:
	case <-ctx.Done():
		return domain.Task{}, ctx.Err()
	}

	t, err := h.queue.Get(ctx, h.taskID)
	if err != nil {
		return domain.Task{}, err
	}
	return *t, nil
}

// Dispatcher admits task submissions and runs them on the worker pool.
type Dispatcher struct {
	registry  *agent.Registry
	queue     *Queue
	pool      *WorkerPool
	publisher Publisher
	metrics   MetricsSource
	logger    *slog.Logger

	// submitMu makes the capacity check and the pool submission atomic with
	// respect to other submissions. Storage is never called while it is held.
	submitMu sync.Mutex
}

// NewDispatcher creates a Dispatcher. The pool must be started separately.
func NewDispatcher(
	registry *agent.Registry,
	queue *Queue,
	pool *WorkerPool,
	publisher Publisher,
	metrics MetricsSource,
	log *slog.Logger,
) *Dispatcher {
	if registry == nil || queue == nil || pool == nil || publisher == nil || metrics == nil {
		panic("dispatcher dependencies cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		registry:  registry,
		queue:     queue,
		pool:      pool,
		publisher: publisher,
		metrics:   metrics,
		logger:    log.With(slog.String("component", "dispatcher")),
	}
}

// Submit creates a queued task for req and schedules it.
// Returns domain.ErrUnknownAgent if the agent is not live, ErrQueueFull if
// the backlog is at capacity and ErrPoolStopped after shutdown; in each of
// these cases no task is created. The task is written to storage when its
// job starts.
func (d *Dispatcher) Submit(ctx context.Context, req SubmitRequest) (*Handle, error) {
	inst := d.registry.Get(req.AgentID)
	if inst == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownAgent, req.AgentID)
	}

	t, err := domain.NewTask(uuid.New(), req.AgentID, req.TaskType, req.Payload, req.Priority)
	if err != nil {
		return nil, err
	}

	h := &Handle{taskID: t.ID, queue: d.queue, done: make(chan struct{})}
	taskID, taskType, payload := t.ID, t.Type, t.Payload
	reqLogger := logger.FromContextOrDefault(ctx, d.logger)

	job := func(jobCtx context.Context) {
		defer close(h.done)
		jobCtx = logger.WithLogger(jobCtx, reqLogger)
		d.queue.Persist(jobCtx, taskID)
		d.execute(jobCtx, inst, taskID, taskType, payload)
	}

	if err := d.schedule(ctx, t, job); err != nil {
		return nil, err
	}

	reqLogger.Info("task submitted",
		slog.String("task_id", taskID.String()),
		slog.String("agent_id", req.AgentID.String()),
		slog.String("task_type", taskType))
	return h, nil
}

// schedule tracks t and hands job to the pool under submitMu. A task the
// pool refuses is forgotten again.
func (d *Dispatcher) schedule(ctx context.Context, t *domain.Task, job Job) error {
	d.submitMu.Lock()
	defer d.submitMu.Unlock()

	free, err := d.pool.Available()
	if err != nil {
		return err
	}
	if free <= 0 {
		return ErrQueueFull
	}

	d.queue.Track(ctx, t)
	if err := d.pool.Submit(job); err != nil {
		// Stop may have run since Available.
		d.queue.Forget(t.ID)
		return err
	}
	return nil
}

// execute runs one task through running to a terminal status.
func (d *Dispatcher) execute(
	ctx context.Context,
	inst *agent.Instance,
	taskID uuid.UUID,
	taskType string,
	payload map[string]any,
) {
	log := logger.FromContextOrDefault(ctx, d.logger).With(
		slog.String("task_id", taskID.String()),
		slog.String("agent_id", inst.ID().String()),
		slog.String("task_type", taskType),
	)
	ctx = logger.WithLogger(ctx, log)

	running, err := d.queue.UpdateStatus(ctx, taskID, domain.TaskStatusRunning, nil, "")
	if err != nil || running == nil {
		log.Error("failed to start task", slog.Any("error", err))
		return
	}
	inst.BeginTask(taskID)
	d.publisher.Publish(ctx, events.NewTaskUpdate(*running))

	log.Info("processing task")
	result, execErr := d.invoke(context.WithoutCancel(ctx), inst, taskType, payload)

	var final *domain.Task
	if execErr != nil {
		log.Warn("task failed", slog.String("error", execErr.Error()))
		final, err = d.queue.UpdateStatus(ctx, taskID, domain.TaskStatusFailed, nil, execErr.Error())
		inst.RecordFailed(taskID)
	} else {
		log.Info("task completed")
		final, err = d.queue.UpdateStatus(ctx, taskID, domain.TaskStatusCompleted, result, "")
		inst.RecordCompleted(taskID)
	}
	if err != nil {
		log.Error("failed to finish task", slog.String("error", err.Error()))
	}

	d.registry.SyncCounters(ctx, inst)

	if final != nil {
		d.publisher.Publish(ctx, events.NewTaskUpdate(*final))
	}
	d.publisher.Publish(ctx, events.NewMetricsUpdate(d.metrics.Snapshot(ctx)))
	d.publisher.Publish(ctx, events.NewAgentsUpdate(d.registry.List(ctx)))
}

// invoke calls the capability, converting a panic into an error wrapping
// domain.ErrCapabilityFault.
func (d *Dispatcher) invoke(
	ctx context.Context,
	inst *agent.Instance,
	taskType string,
	payload map[string]any,
) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.FromContextOrDefault(ctx, d.logger).Error("capability panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			result = nil
			err = fmt.Errorf("%w: %v", domain.ErrCapabilityFault, r)
		}
	}()

	result, err = inst.Capability().Execute(ctx, taskType, payload)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Stop waits for all accepted tasks to finish. Later submissions fail with
// ErrPoolStopped.
func (d *Dispatcher) Stop() {
	d.pool.Stop()
}
