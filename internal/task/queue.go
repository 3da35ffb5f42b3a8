package task

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/workforce-api/internal/domain"
	"github.com/phrazzld/workforce-api/internal/platform/logger"
	"github.com/phrazzld/workforce-api/internal/store"
)

// List bounds.
const (
	DefaultListLimit = 50
	MaxListLimit     = 1000
)

// OrphanedTaskError is recorded on tasks a previous process left unfinished.
const OrphanedTaskError = "interrupted by restart"

// completionBufferSize bounds how many completion timestamps are kept for
// throughput.
const completionBufferSize = 1000

// maxUnsavedTerminal bounds how many finished tasks whose final write
// failed are kept in memory. The oldest is dropped beyond this.
const maxUnsavedTerminal = 1000

// Throughput windows.
const (
	minuteWindow     = 60 * time.Second
	fiveMinuteWindow = 300 * time.Second
)

// ListFilter narrows a task listing.
type ListFilter struct {
	// AgentID restricts the listing to one agent when not uuid.Nil.
	AgentID uuid.UUID

	// Limit bounds the result. Zero or negative selects DefaultListLimit;
	// values above MaxListLimit are clamped.
	Limit int
}

func (f ListFilter) limit() int {
	switch {
	case f.Limit <= 0:
		return DefaultListLimit
	case f.Limit > MaxListLimit:
		return MaxListLimit
	default:
		return f.Limit
	}
}

// entry is an in-memory task record. stored is the status the TaskStore
// currently holds for it, or empty when no row has been written.
type entry struct {
	task   domain.Task
	stored domain.TaskStatus
}

// Queue owns task records and their status transitions.
// Unfinished tasks are kept in memory and mirrored to the TaskStore; a
// finished task leaves memory once its final state is stored. Storage
// failures are logged and never fail an operation.
type Queue struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*entry

	// unsaved lists finished tasks still in memory because their final
	// write failed, oldest first.
	unsaved []uuid.UUID

	// completions is a ring of completion timestamps; next is the slot the
	// next timestamp is written to.
	completions []time.Time
	next        int

	store  store.TaskStore
	logger *slog.Logger
	now    func() time.Time
}

// NewQueue creates a Queue backed by taskStore.
func NewQueue(taskStore store.TaskStore, log *slog.Logger) *Queue {
	if taskStore == nil {
		panic("taskStore cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Queue{
		tasks:       make(map[uuid.UUID]*entry),
		completions: make([]time.Time, 0, completionBufferSize),
		store:       taskStore,
		logger:      log.With(slog.String("component", "task_queue")),
		now:         time.Now,
	}
}

// Track records t with status queued in memory only.
func (q *Queue) Track(ctx context.Context, t *domain.Task) {
	rec := t.Clone()
	rec.Status = domain.TaskStatusQueued
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = q.now().UTC()
	}

	q.mu.Lock()
	q.tasks[rec.ID] = &entry{task: rec}
	q.mu.Unlock()

	logger.FromContextOrDefault(ctx, q.logger).Debug("task enqueued",
		slog.String("task_id", rec.ID.String()),
		slog.String("agent_id", rec.AgentID.String()),
		slog.String("task_type", rec.Type))
}

// Persist writes the current state of a tracked task to storage. The store
// is called without holding the queue lock.
func (q *Queue) Persist(ctx context.Context, id uuid.UUID) {
	q.mu.RLock()
	e, ok := q.tasks[id]
	var (
		rec    domain.Task
		stored domain.TaskStatus
	)
	if ok {
		rec, stored = e.task.Clone(), e.stored
	}
	q.mu.RUnlock()

	if !ok || stored == rec.Status {
		return
	}
	q.write(ctx, &rec, stored != "")
}

// Enqueue tracks t and persists it. The dispatcher splits the two steps so
// that storage is written outside its admission lock.
func (q *Queue) Enqueue(ctx context.Context, t *domain.Task) {
	q.Track(ctx, t)
	q.Persist(ctx, t.ID)
}

// Forget drops a tracked task that was never scheduled.
func (q *Queue) Forget(id uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.tasks, id)
}

// write stores rec, inserting or updating depending on whether a row
// exists, then records the stored status. Finished tasks leave memory once
// stored.
func (q *Queue) write(ctx context.Context, rec *domain.Task, exists bool) {
	var err error
	if exists {
		err = q.store.UpdateTask(ctx, rec)
	} else {
		err = q.store.InsertTask(ctx, rec)
	}

	if err != nil {
		logger.FromContextOrDefault(ctx, q.logger).Error("failed to persist task",
			slog.String("task_id", rec.ID.String()),
			slog.String("status", string(rec.Status)),
			slog.String("error", err.Error()))
		if rec.Status.IsTerminal() {
			q.keepUnsaved(ctx, rec.ID)
		}
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.tasks[rec.ID]
	if !ok {
		return
	}
	e.stored = rec.Status
	if rec.Status.IsTerminal() && e.task.Status == rec.Status {
		delete(q.tasks, rec.ID)
	}
}

// keepUnsaved retains a finished task whose final write failed, dropping
// the oldest such task once maxUnsavedTerminal is exceeded.
func (q *Queue) keepUnsaved(ctx context.Context, id uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.unsaved = append(q.unsaved, id)
	for len(q.unsaved) > maxUnsavedTerminal {
		dropped := q.unsaved[0]
		q.unsaved = q.unsaved[1:]
		delete(q.tasks, dropped)
		logger.FromContextOrDefault(ctx, q.logger).Warn("dropped unsaved finished task",
			slog.String("task_id", dropped.String()))
	}
}

// Get returns the task with id. Finished tasks and tasks created by a
// previous process are read from storage. Returns store.ErrTaskNotFound if
// neither has it.
func (q *Queue) Get(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	q.mu.RLock()
	e, ok := q.tasks[id]
	var c domain.Task
	if ok {
		c = e.task.Clone()
	}
	q.mu.RUnlock()

	if ok {
		return &c, nil
	}

	persisted, err := q.store.GetTask(ctx, id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.FromContextOrDefault(ctx, q.logger).Error("failed to load task",
				slog.String("task_id", id.String()),
				slog.String("error", err.Error()))
		}
		return nil, err
	}
	return persisted, nil
}

// List returns tasks newest first. In-memory records take precedence over
// persisted copies of the same task.
func (q *Queue) List(ctx context.Context, filter ListFilter) []domain.Task {
	limit := filter.limit()

	q.mu.RLock()
	merged := make(map[uuid.UUID]domain.Task, len(q.tasks))
	for id, e := range q.tasks {
		if filter.AgentID == uuid.Nil || e.task.AgentID == filter.AgentID {
			merged[id] = e.task.Clone()
		}
	}
	q.mu.RUnlock()

	persisted, err := q.store.ListTasks(ctx, store.TaskFilter{AgentID: filter.AgentID, Limit: limit})
	if err != nil {
		logger.FromContextOrDefault(ctx, q.logger).Error("failed to list persisted tasks",
			slog.String("error", err.Error()))
	}
	for _, t := range persisted {
		if _, ok := merged[t.ID]; !ok {
			merged[t.ID] = t
		}
	}

	out := make([]domain.Task, 0, len(merged))
	for _, t := range merged {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() > out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// UpdateStatus moves task id to status. result is recorded when entering
// completed and errMsg when entering failed. Returns the updated task, or
// nil without error if id is not in memory. A transition the state machine
// does not allow returns domain.ErrInvalidTransition and changes nothing.
func (q *Queue) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.TaskStatus,
	result any,
	errMsg string,
) (*domain.Task, error) {
	now := q.now()

	q.mu.Lock()
	e, ok := q.tasks[id]
	if !ok {
		q.mu.Unlock()
		return nil, nil
	}
	if err := e.task.Transition(status, now.UTC(), result, errMsg); err != nil {
		q.mu.Unlock()
		return nil, err
	}
	if status == domain.TaskStatusCompleted {
		q.recordCompletion(now)
	}
	updated := e.task.Clone()
	exists := e.stored != ""
	q.mu.Unlock()

	q.write(ctx, &updated, exists)
	return &updated, nil
}

// recordCompletion appends at to the completion ring. Caller holds mu.
func (q *Queue) recordCompletion(at time.Time) {
	if len(q.completions) < completionBufferSize {
		q.completions = append(q.completions, at)
		return
	}
	q.completions[q.next] = at
	q.next = (q.next + 1) % completionBufferSize
}

// Throughput counts completions within the trailing minute and five
// minutes.
func (q *Queue) Throughput() domain.Throughput {
	now := q.now()

	q.mu.RLock()
	defer q.mu.RUnlock()

	var tp domain.Throughput
	for _, at := range q.completions {
		age := now.Sub(at)
		if age < minuteWindow {
			tp.PerMinute++
		}
		if age < fiveMinuteWindow {
			tp.PerFiveMinute++
		}
	}
	return tp
}

// StatusCounts counts tasks by status across storage and memory. In-memory
// records replace the stored status of the same task. If storage cannot be
// read only in-memory tasks are counted. SuccessRate is left zero.
func (q *Queue) StatusCounts(ctx context.Context) domain.TaskCounts {
	byStatus, err := q.store.CountTasksByStatus(ctx)
	fromStore := err == nil
	if err != nil {
		logger.FromContextOrDefault(ctx, q.logger).Error("failed to count persisted tasks",
			slog.String("error", err.Error()))
		byStatus = nil
	}
	if byStatus == nil {
		byStatus = make(map[domain.TaskStatus]int)
	}

	q.mu.RLock()
	for _, e := range q.tasks {
		if fromStore && e.stored != "" {
			byStatus[e.stored]--
		}
		byStatus[e.task.Status]++
	}
	q.mu.RUnlock()

	var counts domain.TaskCounts
	for status, n := range byStatus {
		if n < 0 {
			n = 0
		}
		switch status {
		case domain.TaskStatusQueued:
			counts.Queued = n
		case domain.TaskStatusRunning:
			counts.Running = n
		case domain.TaskStatusCompleted:
			counts.Completed = n
		case domain.TaskStatusFailed:
			counts.Failed = n
		default:
			continue
		}
		counts.Total += n
	}
	return counts
}

// FailOrphaned fails every persisted task a previous process left queued or
// running. It should run before any task is enqueued.
func (q *Queue) FailOrphaned(ctx context.Context) (int64, error) {
	n, err := q.store.FailOrphaned(ctx, OrphanedTaskError, q.now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.FromContextOrDefault(ctx, q.logger).Warn("failed orphaned tasks",
			slog.Int64("count", n))
	}
	return n, nil
}
