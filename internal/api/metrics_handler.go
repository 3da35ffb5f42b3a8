package api

import (
	"net/http"
	"time"

	"github.com/phrazzld/workforce-api/internal/api/shared"
	"github.com/phrazzld/workforce-api/internal/task"
)

// MetricsHandler serves platform metrics and liveness.
type MetricsHandler struct {
	source task.MetricsSource
	now    func() time.Time
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(source task.MetricsSource) *MetricsHandler {
	return &MetricsHandler{
		source: source,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// GetMetrics handles GET /metrics.
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, h.source.Snapshot(r.Context()))
}

// Health handles GET /health.
func (h *MetricsHandler) Health(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{Status: "ok", Timestamp: h.now()})
}
