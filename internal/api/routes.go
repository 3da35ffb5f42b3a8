package api

import "github.com/go-chi/chi/v5"

// RegisterRoutes mounts every endpoint on r.
func RegisterRoutes(r chi.Router, agents *AgentHandler, tasks *TaskHandler, metrics *MetricsHandler, ws *WSHandler) {
	r.Get("/health", metrics.Health)
	r.Get("/metrics", metrics.GetMetrics)

	r.Route("/agents", func(r chi.Router) {
		r.Get("/", agents.ListAgents)
		r.Post("/deploy", agents.DeployAgent)
		r.Delete("/{id}", agents.TerminateAgent)
		r.Get("/{id}/status", agents.GetAgentStatus)
	})

	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", tasks.ListTasks)
		r.Post("/submit", tasks.SubmitTask)
		r.Get("/{id}", tasks.GetTask)
	})

	r.Get("/ws/{client_id}", ws.Subscribe)
}
