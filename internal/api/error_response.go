package api //nolint:revive // package name is intentional

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/blueberrycongee/llmroute/internal/observability"
	llmerrors "github.com/blueberrycongee/llmroute/pkg/errors"
)

// ErrorResponse is the error envelope returned by every endpoint.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes the error payload.
type ErrorDetail struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Model     string `json:"model,omitempty"`
	Key       string `json:"key,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError maps err onto a status code. Router errors keep their kind and
// message; anything else is reported as an opaque internal error.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	detail := ErrorDetail{
		Message:   "internal error",
		Type:      "internal_error",
		RequestID: observability.RequestIDFromContext(r.Context()),
	}
	status := llmerrors.StatusCode(err)

	var routerErr *llmerrors.RouterError
	if errors.As(err, &routerErr) {
		detail.Message = routerErr.Message
		detail.Type = string(routerErr.Kind)
		detail.Model = routerErr.Model
		detail.Key = routerErr.Key
	}

	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path,
			"error", h.redactor.Redact(err.Error()),
		)
	}

	writeErrorDetail(w, status, detail)
}

func (h *Handler) writeBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	writeErrorDetail(w, http.StatusBadRequest, ErrorDetail{
		Message:   message,
		Type:      "invalid_request",
		RequestID: observability.RequestIDFromContext(r.Context()),
	})
}

func (h *Handler) writeStatusError(w http.ResponseWriter, r *http.Request, status int, typ, message string) {
	writeErrorDetail(w, status, ErrorDetail{
		Message:   message,
		Type:      typ,
		RequestID: observability.RequestIDFromContext(r.Context()),
	})
}

func writeErrorDetail(w http.ResponseWriter, status int, detail ErrorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: detail})
}
