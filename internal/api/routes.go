package api //nolint:revive // package name is intentional

import (
	"net/http"

	"github.com/blueberrycongee/llmroute/internal/metrics"
	"github.com/blueberrycongee/llmroute/internal/observability"
)

// RegisterRoutes registers all API routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health/live", h.Live)
	mux.HandleFunc("GET /health/ready", h.Ready)

	mux.HandleFunc("POST /v1/route", h.Route)
	mux.HandleFunc("GET /v1/stats", h.Stats)
	mux.HandleFunc("GET /v1/routes", h.ListRoutes)

	mux.HandleFunc("POST /v1/deployments", h.AddDeployment)
	mux.HandleFunc("GET /v1/deployments", h.ListDeployments)
	mux.HandleFunc("GET /v1/deployments/{key}", h.GetDeployment)
	mux.HandleFunc("DELETE /v1/deployments/{key}", h.RemoveDeployment)
	mux.HandleFunc("POST /v1/deployments/{key}/success", h.RecordSuccess)
	mux.HandleFunc("POST /v1/deployments/{key}/failure", h.RecordFailure)
	mux.HandleFunc("POST /v1/deployments/{key}/healthy", h.MarkHealthy)

	mux.HandleFunc("POST /v1/checkpoint", h.Checkpoint)
	mux.HandleFunc("GET /v1/config/status", h.GetConfigStatus)
	mux.HandleFunc("POST /v1/config/reload", h.ReloadConfig)
}

// Routes returns the API mux wrapped with request IDs and HTTP metrics.
// The metrics middleware sits inside the request ID one so that it sees the
// request the mux annotates with its matched pattern.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return observability.RequestIDMiddleware(metrics.Middleware(mux))
}

// RouteInfo describes an API route.
type RouteInfo struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

// ListRoutes handles GET /v1/routes.
func (h *Handler) ListRoutes(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"routes": AllRoutes()})
}

// AllRoutes returns information about all registered routes.
func AllRoutes() []RouteInfo {
	return []RouteInfo{
		{"GET", "/health/live", "Routing core liveness"},
		{"GET", "/health/ready", "Ready when at least one deployment is eligible"},
		{"POST", "/v1/route", "Pick a deployment for a model"},
		{"GET", "/v1/stats", "Router-wide counters"},
		{"GET", "/v1/routes", "This route listing"},
		{"POST", "/v1/deployments", "Register or replace a deployment"},
		{"GET", "/v1/deployments", "List deployments, optionally eligible ones of ?model="},
		{"GET", "/v1/deployments/{key}", "Get one deployment"},
		{"DELETE", "/v1/deployments/{key}", "Remove a deployment"},
		{"POST", "/v1/deployments/{key}/success", "Report a successful call"},
		{"POST", "/v1/deployments/{key}/failure", "Report a failed call"},
		{"POST", "/v1/deployments/{key}/healthy", "Reinstate a deployment"},
		{"POST", "/v1/checkpoint", "Save registry state to the snapshot store"},
		{"GET", "/v1/config/status", "Loaded config path and checksum"},
		{"POST", "/v1/config/reload", "Reload the config file"},
	}
}
