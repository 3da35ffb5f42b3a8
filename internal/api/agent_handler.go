package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/phrazzld/workforce-api/internal/agent"
	"github.com/phrazzld/workforce-api/internal/api/shared"
	"github.com/phrazzld/workforce-api/internal/domain"
	"github.com/phrazzld/workforce-api/internal/events"
	"github.com/phrazzld/workforce-api/internal/platform/logger"
	"github.com/phrazzld/workforce-api/internal/task"
)

// AgentHandler handles agent lifecycle requests.
type AgentHandler struct {
	factory   *agent.Factory
	registry  *agent.Registry
	publisher task.Publisher
	logger    *slog.Logger
}

// NewAgentHandler creates a new AgentHandler.
func NewAgentHandler(
	factory *agent.Factory,
	registry *agent.Registry,
	publisher task.Publisher,
	logger *slog.Logger,
) *AgentHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for AgentHandler")
	}
	return &AgentHandler{
		factory:   factory,
		registry:  registry,
		publisher: publisher,
		logger:    logger.With(slog.String("component", "agent_handler")),
	}
}

// ListAgents handles GET /agents.
func (h *AgentHandler) ListAgents(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, h.registry.List(r.Context()))
}

// DeployAgent handles POST /agents/deploy.
func (h *AgentHandler) DeployAgent(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req DeployAgentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	inst, err := h.factory.Build(agent.DeployRequest{
		Name:        req.Name,
		AgentType:   req.AgentType,
		Config:      req.Config,
		Description: req.Description,
	})
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	h.registry.Register(r.Context(), inst)
	h.publisher.Publish(r.Context(), events.NewAgentsUpdate(h.registry.List(r.Context())))

	snap := inst.Snapshot(inst.CreatedAt())
	log.Info("agent deployed",
		slog.String("agent_id", snap.ID.String()),
		slog.String("agent_type", string(snap.Type)))

	shared.RespondWithJSON(w, r, http.StatusOK, DeployAgentResponse{
		ID:        snap.ID,
		Name:      snap.Name,
		Type:      string(snap.Type),
		Status:    string(snap.Status),
		CreatedAt: snap.CreatedAt,
	})
}

// TerminateAgent handles DELETE /agents/{id}.
func (h *AgentHandler) TerminateAgent(w http.ResponseWriter, r *http.Request) {
	id, err := parseAgentID(chi.URLParam(r, "id"))
	if err != nil || !h.registry.Terminate(r.Context(), id) {
		shared.RespondWithError(w, r, http.StatusNotFound, GetSafeErrorMessage(domain.ErrUnknownAgent))
		return
	}

	h.publisher.Publish(r.Context(), events.NewAgentsUpdate(h.registry.List(r.Context())))
	shared.RespondWithJSON(w, r, http.StatusOK, TerminateAgentResponse{
		Status:  string(domain.AgentStatusTerminated),
		AgentID: id,
	})
}

// GetAgentStatus handles GET /agents/{id}/status.
func (h *AgentHandler) GetAgentStatus(w http.ResponseWriter, r *http.Request) {
	var inst *agent.Instance
	if id, err := parseAgentID(chi.URLParam(r, "id")); err == nil {
		inst = h.registry.Get(id)
	}
	if inst == nil {
		shared.RespondWithError(w, r, http.StatusNotFound, GetSafeErrorMessage(domain.ErrUnknownAgent))
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, inst.Snapshot(time.Now()))
}
