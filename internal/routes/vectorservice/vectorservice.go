// Package vectorservice exposes the embedding pipeline's operational
// surface from spec.md §6.1: health and metrics for the background
// vector worker pool.
package vectorservice

import (
	"net/http"

	"github.com/inspectra/platform-core/internal/platform/router"
	"github.com/inspectra/platform-core/internal/platform/vector"
	"github.com/inspectra/platform-core/pkg/response"
)

type Dependencies struct {
	Pipeline *vector.Pipeline
}

var deps *Dependencies

func Configure(d Dependencies) {
	deps = &d
}

func init() {
	router.Register(router.Module{
		Name:   "vector-service",
		Prefix: "/api/vector-service",
		Routes: []router.Route{
			{Method: http.MethodGet, Path: "/health", Policy: router.PolicyRequireAuth, Handler: handleHealth},
			{Method: http.MethodGet, Path: "/metrics", Policy: router.PolicyRequireAuth, Handler: handleMetrics},
		},
	})
}

// handleHealth implements `GET /api/vector-service/health`: a degraded
// pipeline (disabled, or stopped while enabled) reports as such rather
// than failing the HTTP call outright.
func handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := deps.Pipeline.Stats()
	status := "healthy"
	if !stats.Enabled {
		status = "disabled"
	} else if !stats.Running {
		status = "stopped"
	} else if stats.Paused {
		status = "paused"
	}
	response.OK(w, map[string]interface{}{"status": status, "stats": stats})
}

// handleMetrics implements `GET /api/vector-service/metrics`: the raw
// pipeline snapshot, for dashboards that want the numbers without the
// health-status derivation.
func handleMetrics(w http.ResponseWriter, r *http.Request) {
	response.OK(w, deps.Pipeline.Stats())
}
