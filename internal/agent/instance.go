package agent

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/workforce-api/internal/capability"
	"github.com/phrazzld/workforce-api/internal/domain"
)

// Counters is a snapshot of an agent's terminal task counts.
type Counters struct {
	Completed int
	Failed    int
}

// Instance is a live agent. All mutable state is guarded by mu.
type Instance struct {
	id          uuid.UUID
	name        string
	agentType   domain.AgentType
	description string
	config      map[string]any
	createdAt   time.Time
	capability  capability.Capability

	mu          sync.Mutex
	status      domain.AgentStatus
	completed   int
	failed      int
	currentTask *uuid.UUID

	// syncMu orders counter writes to storage for this agent.
	syncMu sync.Mutex
}

// NewInstance creates a running agent.
func NewInstance(
	id uuid.UUID,
	name string,
	agentType domain.AgentType,
	description string,
	config map[string]any,
	c capability.Capability,
	createdAt time.Time,
) *Instance {
	if config == nil {
		config = map[string]any{}
	}
	return &Instance{
		id:          id,
		name:        name,
		agentType:   agentType,
		description: description,
		config:      config,
		createdAt:   createdAt,
		capability:  c,
		status:      domain.AgentStatusRunning,
	}
}

// ID returns the agent id.
func (i *Instance) ID() uuid.UUID { return i.id }

// Type returns the agent type.
func (i *Instance) Type() domain.AgentType { return i.agentType }

// CreatedAt returns the deployment time.
func (i *Instance) CreatedAt() time.Time { return i.createdAt }

// Capability returns the operation table the agent executes tasks with.
func (i *Instance) Capability() capability.Capability { return i.capability }

// Status returns the current status.
func (i *Instance) Status() domain.AgentStatus {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.status
}

// Snapshot returns the agent view at now, with uptime rounded to 0.1s.
func (i *Instance) Snapshot(now time.Time) domain.Agent {
	i.mu.Lock()
	defer i.mu.Unlock()

	uptime := now.Sub(i.createdAt).Seconds()
	if uptime < 0 {
		uptime = 0
	}

	var current *uuid.UUID
	if i.currentTask != nil {
		v := *i.currentTask
		current = &v
	}

	return domain.Agent{
		ID:             i.id,
		Name:           i.name,
		Type:           i.agentType,
		Description:    i.description,
		Status:         i.status,
		Config:         i.config,
		CreatedAt:      i.createdAt,
		UptimeSeconds:  math.Round(uptime*10) / 10,
		TasksCompleted: i.completed,
		TasksFailed:    i.failed,
		CurrentTask:    current,
	}
}

// record returns the persisted form of the agent, which carries no uptime.
func (i *Instance) record() domain.Agent {
	a := i.Snapshot(i.createdAt)
	a.UptimeSeconds = 0
	return a
}

// BeginTask marks taskID as the agent's current task.
func (i *Instance) BeginTask(taskID uuid.UUID) {
	i.mu.Lock()
	defer i.mu.Unlock()
	id := taskID
	i.currentTask = &id
}

// RecordCompleted increments the completed counter and returns the new
// counter values.
func (i *Instance) RecordCompleted(taskID uuid.UUID) Counters {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.completed++
	i.finish(taskID)
	return Counters{Completed: i.completed, Failed: i.failed}
}

// RecordFailed increments the failed counter and returns the new counter
// values.
func (i *Instance) RecordFailed(taskID uuid.UUID) Counters {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.failed++
	i.finish(taskID)
	return Counters{Completed: i.completed, Failed: i.failed}
}

// Counters returns the current counter values.
func (i *Instance) Counters() Counters {
	i.mu.Lock()
	defer i.mu.Unlock()
	return Counters{Completed: i.completed, Failed: i.failed}
}

// finish clears the current task if it is still taskID. Another task may
// have started on the same agent in the meantime. Caller holds mu.
func (i *Instance) finish(taskID uuid.UUID) {
	if i.currentTask != nil && *i.currentTask == taskID {
		i.currentTask = nil
	}
}

func (i *Instance) markTerminated() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.status = domain.AgentStatusTerminated
	i.currentTask = nil
}
