package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/workforce-api/internal/agent"
	"github.com/phrazzld/workforce-api/internal/capability"
	"github.com/phrazzld/workforce-api/internal/domain"
	"github.com/phrazzld/workforce-api/internal/events"
	"github.com/phrazzld/workforce-api/internal/mocks"
	"github.com/phrazzld/workforce-api/internal/platform/logger"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []events.Message
}

func (p *recordingPublisher) Publish(ctx context.Context, msg events.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
}

// taskStatuses returns the statuses carried by task_update messages for id,
// in publish order.
func (p *recordingPublisher) taskStatuses(id uuid.UUID) []domain.TaskStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.TaskStatus
	for _, m := range p.msgs {
		if u, ok := m.(events.TaskUpdateMessage); ok && u.Task.ID == id {
			out = append(out, u.Task.Status)
		}
	}
	return out
}

func (p *recordingPublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.msgs))
	for i, m := range p.msgs {
		out[i] = m.Kind()
	}
	return out
}

type staticMetrics struct{}

func (staticMetrics) Snapshot(ctx context.Context) domain.Metrics { return domain.Metrics{} }

type dispatchFixture struct {
	agentStore *mocks.MockAgentStore
	taskStore  *mocks.MockTaskStore
	registry   *agent.Registry
	queue      *Queue
	pool       *WorkerPool
	publisher  *recordingPublisher
	dispatcher *Dispatcher
}

func newDispatchFixture(t *testing.T, cfg WorkerPoolConfig, start bool) *dispatchFixture {
	t.Helper()
	log := logger.NewDiscardLogger()

	f := &dispatchFixture{
		agentStore: mocks.NewMockAgentStore(),
		taskStore:  mocks.NewMockTaskStore(),
		publisher:  &recordingPublisher{},
	}
	f.registry = agent.NewRegistry(f.agentStore, log, agent.DefaultRegistryConfig())
	f.queue = NewQueue(f.taskStore, log)
	f.pool = NewWorkerPool(cfg, log)
	f.dispatcher = NewDispatcher(f.registry, f.queue, f.pool, f.publisher, staticMetrics{}, log)
	if start {
		f.pool.Start()
	}
	t.Cleanup(f.dispatcher.Stop)
	return f
}

func (f *dispatchFixture) deploy(name string, c capability.Capability) *agent.Instance {
	inst := agent.NewInstance(testID(name), "agent "+name, domain.AgentTypeDataEntry, "", nil, c, time.Now())
	f.registry.Register(context.Background(), inst)
	return inst
}

func waitTask(t *testing.T, h *Handle) domain.Task {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	task, err := h.Wait(ctx)
	require.NoError(t, err)
	return task
}

func TestDispatcherSubmitCompletes(t *testing.T) {
	t.Parallel()

	f := newDispatchFixture(t, WorkerPoolConfig{WorkerCount: 2, QueueSize: 10}, true)
	inst := f.deploy("a1", &mocks.MockCapability{
		Ops:    []string{"extract_fields"},
		Result: map[string]any{"fields": 3},
	})

	h, err := f.dispatcher.Submit(context.Background(), SubmitRequest{
		AgentID:  testID("a1"),
		TaskType: "extract_fields",
		Payload:  map[string]any{"text": "x"},
		Priority: 9,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, h.TaskID())

	task := waitTask(t, h)
	assert.Equal(t, domain.TaskStatusCompleted, task.Status)
	assert.Equal(t, 9, task.Priority)
	assert.Equal(t, map[string]any{"fields": 3}, task.Result)
	assert.Nil(t, task.Error)
	require.NotNil(t, task.StartedAt)
	require.NotNil(t, task.FinishedAt)

	snap := inst.Snapshot(time.Now())
	assert.Equal(t, 1, snap.TasksCompleted)
	assert.Equal(t, 0, snap.TasksFailed)
	assert.Nil(t, snap.CurrentTask)

	persisted, ok := f.agentStore.Agent(testID("a1"))
	require.True(t, ok)
	assert.Equal(t, 1, persisted.TasksCompleted)

	assert.Equal(t,
		[]domain.TaskStatus{domain.TaskStatusRunning, domain.TaskStatusCompleted},
		f.publisher.taskStatuses(h.TaskID()))
	assert.Equal(t,
		[]string{events.TypeTaskUpdate, events.TypeTaskUpdate, events.TypeMetricsUpdate, events.TypeAgentsUpdate},
		f.publisher.kinds())
}

func TestDispatcherUnknownAgent(t *testing.T) {
	t.Parallel()

	f := newDispatchFixture(t, DefaultWorkerPoolConfig(), true)

	h, err := f.dispatcher.Submit(context.Background(), SubmitRequest{AgentID: testID("zz"), TaskType: "noop"})
	assert.ErrorIs(t, err, domain.ErrUnknownAgent)
	assert.Nil(t, h)
	assert.Equal(t, 0, f.taskStore.Len())
	assert.Empty(t, f.queue.List(context.Background(), ListFilter{}))
}

func TestDispatcherQueueFull(t *testing.T) {
	t.Parallel()

	// Pool never started, so the single backlog slot stays occupied
	f := newDispatchFixture(t, WorkerPoolConfig{WorkerCount: 1, QueueSize: 1}, false)
	f.deploy("a1", &mocks.MockCapability{Ops: []string{"noop"}})
	ctx := context.Background()

	_, err := f.dispatcher.Submit(ctx, SubmitRequest{AgentID: testID("a1"), TaskType: "noop"})
	require.NoError(t, err)

	h, err := f.dispatcher.Submit(ctx, SubmitRequest{AgentID: testID("a1"), TaskType: "noop"})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Nil(t, h)
	// The accepted task is written when its job starts
	assert.Equal(t, 0, f.taskStore.Len())
	assert.Len(t, f.queue.List(ctx, ListFilter{}), 1)
}

func TestDispatcherSubmitAfterStop(t *testing.T) {
	t.Parallel()

	f := newDispatchFixture(t, DefaultWorkerPoolConfig(), true)
	f.deploy("a1", &mocks.MockCapability{Ops: []string{"noop"}})
	f.dispatcher.Stop()

	_, err := f.dispatcher.Submit(context.Background(), SubmitRequest{AgentID: testID("a1"), TaskType: "noop"})
	assert.ErrorIs(t, err, ErrPoolStopped)
	assert.Equal(t, 0, f.taskStore.Len())
}

func TestDispatcherInvalidPriority(t *testing.T) {
	t.Parallel()

	f := newDispatchFixture(t, DefaultWorkerPoolConfig(), true)
	f.deploy("a1", &mocks.MockCapability{Ops: []string{"noop"}})

	_, err := f.dispatcher.Submit(context.Background(), SubmitRequest{AgentID: testID("a1"), TaskType: "noop", Priority: 11})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 0, f.taskStore.Len())
}

func TestDispatcherCapabilityFault(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		exec     *mocks.MockCapability
		taskType string
		wantText string
	}{
		{
			name: "returned error",
			exec: &mocks.MockCapability{
				ExecuteFn: func(ctx context.Context, taskType string, payload map[string]any) (any, error) {
					return nil, errors.New("upstream rejected record")
				},
			},
			taskType: "validate_records",
			wantText: "upstream rejected record",
		},
		{
			name:     "unknown task type",
			exec:     &mocks.MockCapability{Ops: []string{"noop"}},
			taskType: "launch_rocket",
			wantText: "unknown task type: launch_rocket",
		},
		{
			name: "panic",
			exec: &mocks.MockCapability{
				ExecuteFn: func(ctx context.Context, taskType string, payload map[string]any) (any, error) {
					panic("nil map write")
				},
			},
			taskType: "noop",
			wantText: "capability fault: nil map write",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newDispatchFixture(t, DefaultWorkerPoolConfig(), true)
			inst := f.deploy("a1", tc.exec)
			before := inst.Snapshot(time.Now())

			h, err := f.dispatcher.Submit(context.Background(), SubmitRequest{AgentID: testID("a1"), TaskType: tc.taskType})
			require.NoError(t, err)

			task := waitTask(t, h)
			assert.Equal(t, domain.TaskStatusFailed, task.Status)
			require.NotNil(t, task.Error)
			assert.Equal(t, tc.wantText, *task.Error)
			assert.Nil(t, task.Result)

			after := inst.Snapshot(time.Now())
			assert.Equal(t, before.TasksFailed+1, after.TasksFailed)
			assert.Equal(t, before.TasksCompleted, after.TasksCompleted)

			persisted, _ := f.agentStore.Agent(testID("a1"))
			assert.Equal(t, 1, persisted.TasksFailed)
		})
	}
}

func TestDispatcherConcurrentSubmissions(t *testing.T) {
	t.Parallel()

	const n = 40
	f := newDispatchFixture(t, WorkerPoolConfig{WorkerCount: 4, QueueSize: n}, true)

	// Counter writes overwrite the stored row and older snapshots take
	// longer, so any out-of-order write would leave a stale total behind.
	f.agentStore.UpdateAgentCountersFn = func(ctx context.Context, id uuid.UUID, completed, failed int) error {
		time.Sleep(time.Duration(n-(completed+failed)) * 50 * time.Microsecond)
		a, ok := f.agentStore.Agent(id)
		if !ok {
			return errors.New("agent not found")
		}
		a.TasksCompleted = completed
		a.TasksFailed = failed
		f.agentStore.Seed(a)
		return nil
	}

	var calls int
	var mu sync.Mutex
	inst := f.deploy("a1", &mocks.MockCapability{
		ExecuteFn: func(ctx context.Context, taskType string, payload map[string]any) (any, error) {
			mu.Lock()
			calls++
			odd := calls%2 == 1
			mu.Unlock()
			if odd {
				return nil, errors.New("odd call")
			}
			return "ok", nil
		},
	})

	handles := make([]*Handle, n)
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = f.dispatcher.Submit(context.Background(), SubmitRequest{
				AgentID:  testID("a1"),
				TaskType: "noop",
				Payload:  map[string]any{"n": i},
			})
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i], fmt.Sprintf("submission %d", i))
		task := waitTask(t, handles[i])
		assert.True(t, task.Status.IsTerminal())
		statuses := f.publisher.taskStatuses(task.ID)
		require.Len(t, statuses, 2)
		assert.Equal(t, domain.TaskStatusRunning, statuses[0])
	}

	snap := inst.Snapshot(time.Now())
	assert.Equal(t, n, snap.TasksCompleted+snap.TasksFailed)
	assert.Equal(t, n/2, snap.TasksFailed)

	persisted, ok := f.agentStore.Agent(testID("a1"))
	require.True(t, ok)
	assert.Equal(t, n, persisted.TasksCompleted+persisted.TasksFailed)
	assert.Equal(t, snap.TasksFailed, persisted.TasksFailed)

	counts := f.queue.StatusCounts(context.Background())
	assert.Equal(t, n, counts.Total)
	assert.Equal(t, n, counts.Completed+counts.Failed)
	assert.Equal(t, n, f.taskStore.Len())
}

func TestDispatcherSubmitDoesNotWaitOnStorage(t *testing.T) {
	t.Parallel()

	f := newDispatchFixture(t, WorkerPoolConfig{WorkerCount: 1, QueueSize: 10}, true)
	f.deploy("a1", &mocks.MockCapability{Ops: []string{"noop"}})

	release := make(chan struct{})
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }
	// Runs before the fixture's Stop, which would otherwise wait forever
	t.Cleanup(unblock)

	f.taskStore.InsertTaskFn = func(ctx context.Context, task *domain.Task) error {
		<-release
		f.taskStore.Seed(*task)
		return nil
	}

	const n = 5
	handles := make([]*Handle, n)
	errs := make([]error, n)
	submitted := make(chan struct{})
	go func() {
		defer close(submitted)
		for i := 0; i < n; i++ {
			handles[i], errs[i] = f.dispatcher.Submit(context.Background(), SubmitRequest{
				AgentID:  testID("a1"),
				TaskType: "noop",
			})
		}
	}()

	select {
	case <-submitted:
	case <-time.After(2 * time.Second):
		t.Fatal("submissions waited on a blocked task insert")
	}

	unblock()
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i], fmt.Sprintf("submission %d", i))
		task := waitTask(t, handles[i])
		assert.Equal(t, domain.TaskStatusCompleted, task.Status)
	}
	assert.Equal(t, n, f.taskStore.Len())
}

func TestHandleWaitHonorsContext(t *testing.T) {
	t.Parallel()

	f := newDispatchFixture(t, WorkerPoolConfig{WorkerCount: 1, QueueSize: 2}, true)
	release := make(chan struct{})
	f.deploy("a1", &mocks.MockCapability{
		ExecuteFn: func(ctx context.Context, taskType string, payload map[string]any) (any, error) {
			<-release
			return nil, nil
		},
	})

	h, err := f.dispatcher.Submit(context.Background(), SubmitRequest{AgentID: testID("a1"), TaskType: "slow"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = h.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	task := waitTask(t, h)
	assert.Equal(t, domain.TaskStatusCompleted, task.Status)
}
