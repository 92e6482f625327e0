package api //nolint:revive // package name is intentional

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/blueberrycongee/llmroute/internal/observability"
	"github.com/blueberrycongee/llmroute/pkg/router"
	"github.com/blueberrycongee/llmroute/routers"
)

// routeRequest is the body of POST /v1/route.
type routeRequest struct {
	Model           string            `json:"model"`
	RequestID       string            `json:"request_id,omitempty"`
	EstimatedTokens uint64            `json:"estimated_tokens,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// routeResponse names the deployment chosen for a request.
type routeResponse struct {
	Deployment string `json:"deployment"`
	Model      string `json:"model"`
	Strategy   string `json:"strategy"`
	RequestID  string `json:"request_id,omitempty"`
}

// Route handles POST /v1/route.
func (h *Handler) Route(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := decodeBody(r, w, &req); err != nil {
		h.writeBadRequest(w, r, "invalid request body")
		return
	}
	req.Model = strings.TrimSpace(req.Model)
	if req.Model == "" {
		h.writeBadRequest(w, r, "model is required")
		return
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = observability.RequestIDFromContext(r.Context())
	}

	key, err := h.router.Route(r.Context(), req.Model, &router.Request{
		RequestID:       requestID,
		EstimatedTokens: req.EstimatedTokens,
		Metadata:        req.Metadata,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, routeResponse{
		Deployment: key,
		Model:      req.Model,
		Strategy:   h.router.Config().Strategy.String(),
		RequestID:  requestID,
	})
}

// Stats handles GET /v1/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	cfg := h.router.Config()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"stats":    h.router.GetStats(),
		"strategy": cfg.Strategy.String(),
		"recovery": cfg.Recovery,
	})
}

// Live handles GET /health/live.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	if !h.router.Healthy() {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /health/ready. It also requires at least one eligible deployment.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	stats := h.router.GetStats()
	if !h.router.Healthy() || stats.HealthyDeployments == 0 {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":              "not_ready",
			"total_deployments":   stats.TotalDeployments,
			"healthy_deployments": stats.HealthyDeployments,
		})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":              "ok",
		"total_deployments":   stats.TotalDeployments,
		"healthy_deployments": stats.HealthyDeployments,
	})
}

// Checkpoint handles POST /v1/checkpoint.
func (h *Handler) Checkpoint(w http.ResponseWriter, r *http.Request) {
	if err := h.router.Checkpoint(r.Context()); err != nil {
		if errors.Is(err, routers.ErrNoSnapshotStore) {
			h.writeStatusError(w, r, http.StatusServiceUnavailable, "unavailable", "snapshot store not configured")
			return
		}
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"deployments": len(h.router.ListDeploymentNames()),
	})
}

// configReloadRequest is the optional body of POST /v1/config/reload.
type configReloadRequest struct {
	ExpectedChecksum string `json:"expected_checksum,omitempty"`
}

// GetConfigStatus handles GET /v1/config/status.
func (h *Handler) GetConfigStatus(w http.ResponseWriter, r *http.Request) {
	if h.configManager == nil {
		h.writeStatusError(w, r, http.StatusServiceUnavailable, "unavailable", "config manager not available")
		return
	}
	h.writeJSON(w, http.StatusOK, h.configManager.Status())
}

// ReloadConfig handles POST /v1/config/reload.
func (h *Handler) ReloadConfig(w http.ResponseWriter, r *http.Request) {
	if h.configManager == nil {
		h.writeStatusError(w, r, http.StatusServiceUnavailable, "unavailable", "config manager not available")
		return
	}

	var req configReloadRequest
	if err := decodeBody(r, w, &req); err != nil && !errors.Is(err, io.EOF) {
		h.writeBadRequest(w, r, "invalid request body")
		return
	}

	before := h.configManager.Status()
	if req.ExpectedChecksum != "" && req.ExpectedChecksum != before.Checksum {
		h.writeStatusError(w, r, http.StatusConflict, "checksum_mismatch", "config checksum mismatch")
		return
	}

	if err := h.configManager.Reload(); err != nil {
		h.logger.ErrorContext(r.Context(), "config reload failed", "error", err)
		h.writeStatusError(w, r, http.StatusUnprocessableEntity, "invalid_config", "failed to reload config")
		return
	}
	h.writeJSON(w, http.StatusOK, h.configManager.Status())
}
