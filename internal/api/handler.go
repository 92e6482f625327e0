// Package api provides the HTTP control surface of the routing service.
package api //nolint:revive // package name is intentional

import (
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/blueberrycongee/llmroute/internal/config"
	"github.com/blueberrycongee/llmroute/internal/observability"
	"github.com/blueberrycongee/llmroute/routers"
)

// maxBodyBytes caps request bodies on the control endpoints.
const maxBodyBytes = 1 << 20

// ConfigManager is the subset of config.Manager the API exposes.
type ConfigManager interface {
	Status() config.Status
	Reload() error
}

// Handler serves routing decisions and deployment management over HTTP.
type Handler struct {
	router        *routers.Router
	logger        *slog.Logger
	redactor      *observability.Redactor
	configManager ConfigManager
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithRedactor sets the redactor applied to deployment params in responses.
func WithRedactor(r *observability.Redactor) HandlerOption {
	return func(h *Handler) {
		h.redactor = r
	}
}

// WithConfigManager enables the config status and reload endpoints.
func WithConfigManager(m ConfigManager) HandlerOption {
	return func(h *Handler) {
		h.configManager = m
	}
}

// NewHandler creates a new API handler around router.
func NewHandler(router *routers.Router, logger *slog.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		router:   router,
		logger:   logger,
		redactor: observability.NewRedactor(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", "error", err)
	}
}

func decodeBody(r *http.Request, w http.ResponseWriter, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}
