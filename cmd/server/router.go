package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/phrazzld/workforce-api/internal/api"
	apiMiddleware "github.com/phrazzld/workforce-api/internal/api/middleware"
)

// setupRouter creates the router with middleware and all routes.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))

	api.RegisterRoutes(r,
		api.NewAgentHandler(app.factory, app.registry, app.broadcaster, app.logger),
		api.NewTaskHandler(app.dispatcher, app.queue, app.logger),
		api.NewMetricsHandler(app.aggregator),
		api.NewWSHandler(app.broadcaster, api.WSConfig{
			WriteTimeout: time.Duration(app.config.Events.WriteTimeoutSeconds) * time.Second,
			ReadLimit:    app.config.Events.ReadLimitBytes,
		}, app.logger),
	)

	return r
}
