package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/workforce-api/internal/agent"
	"github.com/phrazzld/workforce-api/internal/api/middleware"
	"github.com/phrazzld/workforce-api/internal/api/shared"
	"github.com/phrazzld/workforce-api/internal/capability"
	"github.com/phrazzld/workforce-api/internal/domain"
	"github.com/phrazzld/workforce-api/internal/events"
	"github.com/phrazzld/workforce-api/internal/metrics"
	"github.com/phrazzld/workforce-api/internal/mocks"
	"github.com/phrazzld/workforce-api/internal/platform/logger"
	"github.com/phrazzld/workforce-api/internal/task"
)

type testServer struct {
	router      chi.Router
	registry    *agent.Registry
	queue       *task.Queue
	broadcaster *events.Broadcaster
	agentStore  *mocks.MockAgentStore
	taskStore   *mocks.MockTaskStore
}

func newTestServer(t *testing.T, allowedTypes ...string) *testServer {
	t.Helper()
	if len(allowedTypes) == 0 {
		allowedTypes = []string{"data_entry", "customer_support", "software_engineer"}
	}
	log := logger.NewDiscardLogger()

	s := &testServer{
		agentStore: mocks.NewMockAgentStore(),
		taskStore:  mocks.NewMockTaskStore(),
	}
	s.registry = agent.NewRegistry(s.agentStore, log, agent.DefaultRegistryConfig())
	s.queue = task.NewQueue(s.taskStore, log)
	agg := metrics.NewAggregator(s.registry, s.queue)
	s.broadcaster = events.NewBroadcaster(NewSnapshotSource(s.registry, s.queue, agg), log, events.Config{})

	pool := task.NewWorkerPool(task.WorkerPoolConfig{WorkerCount: 2, QueueSize: 10}, log)
	pool.Start()
	dispatcher := task.NewDispatcher(s.registry, s.queue, pool, s.broadcaster, agg, log)
	t.Cleanup(dispatcher.Stop)

	factory := agent.NewFactory(allowedTypes, capability.Dependencies{})

	s.router = chi.NewRouter()
	s.router.Use(middleware.NewTraceMiddleware(log))
	RegisterRoutes(s.router,
		NewAgentHandler(factory, s.registry, s.broadcaster, log),
		NewTaskHandler(dispatcher, s.queue, log),
		NewMetricsHandler(agg),
		NewWSHandler(s.broadcaster, WSConfig{}, log),
	)
	return s
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) deploy(t *testing.T, agentType string) DeployAgentResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/agents/deploy", DeployAgentRequest{Name: "worker", AgentType: agentType})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp DeployAgentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) shared.ErrorResponse {
	t.Helper()
	var resp shared.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestDeployAgent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantError  string
	}{
		{
			name:       "success",
			body:       DeployAgentRequest{Name: "intake", AgentType: "data_entry"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "unknown type",
			body:       DeployAgentRequest{Name: "x", AgentType: "astronaut"},
			wantStatus: http.StatusBadRequest,
			wantError:  "Unknown agent type",
		},
		{
			name:       "disabled type",
			body:       DeployAgentRequest{Name: "x", AgentType: "software_engineer"},
			wantStatus: http.StatusForbidden,
			wantError:  "Agent type is not enabled",
		},
		{
			name:       "missing name",
			body:       map[string]any{"agent_type": "data_entry"},
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid name: required field",
		},
		{
			name:       "empty body",
			body:       nil,
			wantStatus: http.StatusBadRequest,
			wantError:  "Request body is required",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := newTestServer(t, "data_entry", "customer_support")
			rec := s.do(t, http.MethodPost, "/agents/deploy", tc.body)
			require.Equal(t, tc.wantStatus, rec.Code, rec.Body.String())

			if tc.wantError != "" {
				resp := decodeError(t, rec)
				assert.Equal(t, tc.wantError, resp.Error)
				assert.NotEmpty(t, resp.TraceID)
				return
			}

			var resp DeployAgentResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.ID)
			assert.Equal(t, "intake", resp.Name)
			assert.Equal(t, "data_entry", resp.Type)
			assert.Equal(t, "running", resp.Status)
			assert.NotNil(t, s.registry.Get(resp.ID))
		})
	}
}

func TestAgentLifecycle(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	deployed := s.deploy(t, "customer_support")

	rec := s.do(t, http.MethodGet, "/agents/"+deployed.ID.String()+"/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status domain.Agent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, domain.AgentStatusRunning, status.Status)
	assert.Equal(t, capability.DefaultDescription(domain.AgentTypeCustomerSupport), status.Description)

	rec = s.do(t, http.MethodDelete, "/agents/"+deployed.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var term TerminateAgentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &term))
	assert.Equal(t, TerminateAgentResponse{Status: "terminated", AgentID: deployed.ID}, term)

	rec = s.do(t, http.MethodDelete, "/agents/"+deployed.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Agent not found", decodeError(t, rec).Error)

	rec = s.do(t, http.MethodGet, "/agents/"+deployed.ID.String()+"/status", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/agents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var agents []domain.Agent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &agents))
	require.Len(t, agents, 1)
	assert.Equal(t, deployed.ID, agents[0].ID)
	assert.Equal(t, domain.AgentStatusTerminated, agents[0].Status)
}

func TestSubmitTask(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	deployed := s.deploy(t, "data_entry")

	rec := s.do(t, http.MethodPost, "/tasks/submit", SubmitTaskRequest{
		AgentID:  deployed.ID.String(),
		TaskType: "extract_fields",
		Payload:  map[string]any{"text": "Name: Ada Lovelace\nEmail: ada@example.com"},
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var resp SubmitTaskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "queued", resp.Status)

	var got domain.Task
	require.Eventually(t, func() bool {
		rec := s.do(t, http.MethodGet, "/tasks/"+resp.TaskID.String(), nil)
		if rec.Code != http.StatusOK {
			return false
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			return false
		}
		return got.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, domain.TaskStatusCompleted, got.Status)
	assert.Equal(t, domain.DefaultTaskPriority, got.Priority)
	assert.NotNil(t, got.Result)

	rec = s.do(t, http.MethodGet, "/tasks?agent_id="+deployed.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tasks []domain.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, resp.TaskID, tasks[0].ID)

	rec = s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var m domain.Metrics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, 1, m.Tasks.Total)
	assert.Equal(t, 1, m.Tasks.Completed)
	assert.Equal(t, 100.0, m.Tasks.SuccessRate)
	assert.Equal(t, 1, m.Throughput.PerMinute)
	assert.Equal(t, 1, m.Agents.Running)
}

func TestSubmitTaskErrors(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	deployed := s.deploy(t, "data_entry")

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantError  string
	}{
		{
			name:       "unknown agent",
			body:       SubmitTaskRequest{AgentID: uuid.NewString(), TaskType: "extract_fields"},
			wantStatus: http.StatusNotFound,
			wantError:  "Agent not found",
		},
		{
			name:       "malformed agent id",
			body:       SubmitTaskRequest{AgentID: "zz", TaskType: "extract_fields"},
			wantStatus: http.StatusNotFound,
			wantError:  "Agent not found",
		},
		{
			name:       "missing task type",
			body:       map[string]any{"agent_id": deployed.ID.String()},
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid task_type: required field",
		},
		{
			name:       "priority out of range",
			body:       SubmitTaskRequest{AgentID: deployed.ID.String(), TaskType: "x", Priority: 11},
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid priority: too large",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/tasks/submit", tc.body)
			require.Equal(t, tc.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tc.wantError, decodeError(t, rec).Error)
		})
	}

	assert.Equal(t, 0, s.taskStore.Len())
}

func TestGetTaskNotFound(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	for _, id := range []string{"does-not-exist", uuid.NewString()} {
		rec := s.do(t, http.MethodGet, "/tasks/"+id, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, id)
		assert.Equal(t, "Task not found", decodeError(t, rec).Error)
	}
}

func TestAgentRoutesMalformedID(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	s.deploy(t, "data_entry")

	rec := s.do(t, http.MethodDelete, "/agents/not-a-uuid", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Agent not found", decodeError(t, rec).Error)

	rec = s.do(t, http.MethodGet, "/agents/not-a-uuid/status", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Agent not found", decodeError(t, rec).Error)

	assert.Equal(t, 0, s.agentStore.Calls("UpdateAgentStatus"))
}

func TestListTasksMalformedAgentID(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/tasks?agent_id=zz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Equal(t, 0, s.taskStore.Calls("ListTasks"))
}

func TestListTasksInvalidLimit(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	for _, q := range []string{"limit=abc", "limit=0", "limit=-4"} {
		rec := s.do(t, http.MethodGet, "/tasks?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}

	rec := s.do(t, http.MethodGet, "/tasks?limit=5000", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
