package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/phrazzld/workforce-api/internal/api/shared"
	"github.com/phrazzld/workforce-api/internal/domain"
	"github.com/phrazzld/workforce-api/internal/platform/logger"
	"github.com/phrazzld/workforce-api/internal/task"
)

// TaskHandler handles task submission and lookup requests.
type TaskHandler struct {
	dispatcher *task.Dispatcher
	queue      *task.Queue
	logger     *slog.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(dispatcher *task.Dispatcher, queue *task.Queue, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TaskHandler")
	}
	return &TaskHandler{
		dispatcher: dispatcher,
		queue:      queue,
		logger:     logger.With(slog.String("component", "task_handler")),
	}
}

// SubmitTask handles POST /tasks/submit. The task runs asynchronously; the
// response only acknowledges that it was queued.
func (h *TaskHandler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	var req SubmitTaskRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	agentID, err := parseAgentID(req.AgentID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	handle, err := h.dispatcher.Submit(r.Context(), task.SubmitRequest{
		AgentID:  agentID,
		TaskType: req.TaskType,
		Payload:  req.Payload,
		Priority: req.Priority,
	})
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	logger.FromContextOrDefault(r.Context(), h.logger).Debug("task accepted",
		slog.String("task_id", handle.TaskID().String()))

	shared.RespondWithJSON(w, r, http.StatusAccepted, SubmitTaskResponse{
		TaskID: handle.TaskID(),
		Status: string(domain.TaskStatusQueued),
	})
}

// GetTask handles GET /tasks/{id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseTaskID(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusNotFound, GetSafeErrorMessage(err))
		return
	}

	t, err := h.queue.Get(r.Context(), id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, t)
}

// ListTasks handles GET /tasks?agent_id=&limit=.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", task.DefaultListLimit)
	if err != nil || limit < 1 {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid limit: must be a positive integer")
		return
	}

	filter := task.ListFilter{Limit: limit}
	if raw := r.URL.Query().Get("agent_id"); raw != "" {
		agentID, err := parseAgentID(raw)
		if err != nil {
			// A malformed id matches no task.
			shared.RespondWithJSON(w, r, http.StatusOK, []domain.Task{})
			return
		}
		filter.AgentID = agentID
	}

	shared.RespondWithJSON(w, r, http.StatusOK, h.queue.List(r.Context(), filter))
}
