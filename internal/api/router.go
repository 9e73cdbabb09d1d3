package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"

	"github.com/cloudconsole/engine/internal/api/handlers"
	mw "github.com/cloudconsole/engine/internal/api/middleware"
	"github.com/cloudconsole/engine/internal/services"
)

type Dependencies struct {
	Service services.DeploymentService
	// HMACSecret enables bearer token auth on /api/v1 when non-empty.
	HMACSecret []byte
	Checks     []handlers.Check
	// StreamPoll is how often the log stream polls for new output.
	StreamPoll time.Duration
	RateLimit  float64
	RateBurst  int
}

// NewRouter builds the HTTP surface. ctx bounds background work owned by middleware.
func NewRouter(ctx context.Context, dep Dependencies) http.Handler {
	if dep.RateLimit <= 0 {
		dep.RateLimit = 10
	}
	if dep.RateBurst <= 0 {
		dep.RateBurst = 20
	}

	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.Recovery)
	r.Use(mw.Logging)
	r.Use(mw.CORS)
	r.Use(mw.RateLimit(ctx, dep.RateLimit, dep.RateBurst))

	hh := handlers.NewHealthHandler(dep.Checks...)
	r.Get("/healthz", hh.Liveness)
	r.Get("/readyz", hh.Readiness)

	dh := handlers.NewDeploymentsHandler(dep.Service)
	lh := handlers.NewLogsHandler(dep.Service, dep.StreamPoll)

	r.Route("/api/v1", func(api chi.Router) {
		if len(dep.HMACSecret) > 0 {
			api.Use(mw.Auth(dep.HMACSecret))
		}

		// websocket upgrades must not pass through the compressor
		api.Get("/logs/{id}/stream", lh.Stream)

		api.Group(func(rest chi.Router) {
			rest.Use(chimid.Compress(5))

			rest.Post("/deploy", dh.Deploy)
			rest.Get("/logs/{id}", lh.Get)
			rest.Get("/status/{id}", dh.Status)
			rest.Get("/deployments", dh.List)
			rest.Post("/destroy-resource", dh.DestroyResource)
			rest.Post("/destroy-deployment", dh.DestroyDeployment)
			rest.Get("/resources", dh.Resources)
		})
	})

	return r
}
