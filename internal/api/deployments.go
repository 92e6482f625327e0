package api //nolint:revive // package name is intentional

import (
	"io"
	"net/http"

	"github.com/blueberrycongee/llmroute/internal/config"
	"github.com/blueberrycongee/llmroute/pkg/router"
)

// deploymentRequest is the body of POST /v1/deployments.
type deploymentRequest struct {
	Key       string           `json:"key"`
	ModelName string           `json:"model_name"`
	Params    map[string]any   `json:"params,omitempty"`
	ModelInfo router.ModelInfo `json:"model_info"`
	RPMSeed   uint64           `json:"rpm_seed,omitempty"`
	TPMSeed   uint64           `json:"tpm_seed,omitempty"`
}

func (req deploymentRequest) toDeployment() router.Deployment {
	return router.Deployment{
		Key:        req.Key,
		ModelName:  req.ModelName,
		Params:     req.Params,
		ModelInfo:  req.ModelInfo,
		CurrentRPM: req.RPMSeed,
		CurrentTPM: req.TPMSeed,
	}
}

// successRequest is the body of POST /v1/deployments/{key}/success.
type successRequest struct {
	LatencyMs float64 `json:"latency_ms"`
	Tokens    uint64  `json:"tokens"`
}

// redact strips credentials from a deployment snapshot before it leaves the process.
func (h *Handler) redact(d router.Deployment) router.Deployment {
	d.Params = h.redactor.RedactMap(d.Params)
	return d
}

func (h *Handler) redactAll(ds []router.Deployment) []router.Deployment {
	out := make([]router.Deployment, 0, len(ds))
	for _, d := range ds {
		out = append(out, h.redact(d))
	}
	return out
}

// AddDeployment handles POST /v1/deployments.
func (h *Handler) AddDeployment(w http.ResponseWriter, r *http.Request) {
	var req deploymentRequest
	if err := decodeBody(r, w, &req); err != nil {
		h.writeBadRequest(w, r, "invalid request body")
		return
	}
	if err := config.ValidateDeployment(req.Params, req.ModelInfo); err != nil {
		h.writeBadRequest(w, r, err.Error())
		return
	}

	d := req.toDeployment()
	if err := h.router.AddDeployment(d); err != nil {
		h.writeError(w, r, err)
		return
	}

	stored, err := h.router.GetDeployment(d.RegistryKey())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, h.redact(stored))
}

// ListDeployments handles GET /v1/deployments. With ?model= it lists only the
// deployments of that model that are eligible right now.
func (h *Handler) ListDeployments(w http.ResponseWriter, r *http.Request) {
	var deployments []router.Deployment
	if model := r.URL.Query().Get("model"); model != "" {
		deployments = h.router.EligibleDeployments(model)
	} else {
		deployments = h.router.Deployments()
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"data": h.redactAll(deployments),
	})
}

// GetDeployment handles GET /v1/deployments/{key}.
func (h *Handler) GetDeployment(w http.ResponseWriter, r *http.Request) {
	d, err := h.router.GetDeployment(r.PathValue("key"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.redact(d))
}

// RemoveDeployment handles DELETE /v1/deployments/{key}.
func (h *Handler) RemoveDeployment(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if !h.router.RemoveDeployment(key) {
		h.writeStatusError(w, r, http.StatusNotFound, "deployment_not_found", "deployment not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecordSuccess handles POST /v1/deployments/{key}/success.
func (h *Handler) RecordSuccess(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if _, err := h.router.GetDeployment(key); err != nil {
		h.writeError(w, r, err)
		return
	}

	var req successRequest
	if err := decodeBody(r, w, &req); err != nil && err != io.EOF {
		h.writeBadRequest(w, r, "invalid request body")
		return
	}
	if req.LatencyMs < 0 {
		h.writeBadRequest(w, r, "latency_ms cannot be negative")
		return
	}

	h.router.RecordSuccess(key, req.LatencyMs, req.Tokens)
	h.writeCurrent(w, r, key)
}

// RecordFailure handles POST /v1/deployments/{key}/failure.
func (h *Handler) RecordFailure(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if _, err := h.router.GetDeployment(key); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.router.RecordFailure(key)
	h.writeCurrent(w, r, key)
}

// MarkHealthy handles POST /v1/deployments/{key}/healthy.
func (h *Handler) MarkHealthy(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if err := h.router.MarkHealthy(key); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeCurrent(w, r, key)
}

// writeCurrent responds with the deployment's state after an update. A
// concurrent removal surfaces as 404.
func (h *Handler) writeCurrent(w http.ResponseWriter, r *http.Request, key string) {
	d, err := h.router.GetDeployment(key)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.redact(d))
}
