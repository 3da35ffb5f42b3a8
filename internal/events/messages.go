package events

import "github.com/phrazzld/workforce-api/internal/domain"

// Message kinds.
const (
	TypeInit          = "init"
	TypeAgentsUpdate  = "agents_update"
	TypeTaskUpdate    = "task_update"
	TypeMetricsUpdate = "metrics_update"
	TypePing          = "ping"
	TypePong          = "pong"
)

// Message is a JSON-encodable notification sent to subscribers.
type Message interface {
	// Kind returns the value of the message's "type" field.
	Kind() string
}

// InitMessage is sent once to each new subscriber.
type InitMessage struct {
	Type    string         `json:"type"`
	Agents  []domain.Agent `json:"agents"`
	Tasks   []domain.Task  `json:"tasks"`
	Metrics domain.Metrics `json:"metrics"`
}

// Kind implements Message.
func (m InitMessage) Kind() string { return m.Type }

// AgentsUpdateMessage carries the current agent list.
type AgentsUpdateMessage struct {
	Type   string         `json:"type"`
	Agents []domain.Agent `json:"agents"`
}

// Kind implements Message.
func (m AgentsUpdateMessage) Kind() string { return m.Type }

// TaskUpdateMessage carries one task after a status change.
type TaskUpdateMessage struct {
	Type string      `json:"type"`
	Task domain.Task `json:"task"`
}

// Kind implements Message.
func (m TaskUpdateMessage) Kind() string { return m.Type }

// MetricsUpdateMessage carries a metrics snapshot.
type MetricsUpdateMessage struct {
	Type    string         `json:"type"`
	Metrics domain.Metrics `json:"metrics"`
}

// Kind implements Message.
func (m MetricsUpdateMessage) Kind() string { return m.Type }

// PongMessage answers a client ping.
type PongMessage struct {
	Type string `json:"type"`
}

// Kind implements Message.
func (m PongMessage) Kind() string { return m.Type }

// NewInit creates an init message. Nil slices are sent as empty arrays.
func NewInit(agents []domain.Agent, tasks []domain.Task, metrics domain.Metrics) InitMessage {
	if agents == nil {
		agents = []domain.Agent{}
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return InitMessage{Type: TypeInit, Agents: agents, Tasks: tasks, Metrics: metrics}
}

// NewAgentsUpdate creates an agents_update message.
func NewAgentsUpdate(agents []domain.Agent) AgentsUpdateMessage {
	if agents == nil {
		agents = []domain.Agent{}
	}
	return AgentsUpdateMessage{Type: TypeAgentsUpdate, Agents: agents}
}

// NewTaskUpdate creates a task_update message.
func NewTaskUpdate(task domain.Task) TaskUpdateMessage {
	return TaskUpdateMessage{Type: TypeTaskUpdate, Task: task}
}

// NewMetricsUpdate creates a metrics_update message.
func NewMetricsUpdate(metrics domain.Metrics) MetricsUpdateMessage {
	return MetricsUpdateMessage{Type: TypeMetricsUpdate, Metrics: metrics}
}

// NewPong creates a pong message.
func NewPong() PongMessage {
	return PongMessage{Type: TypePong}
}
