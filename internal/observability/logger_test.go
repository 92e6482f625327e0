package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestLogger_RequestIDFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: slog.LevelInfo, Output: &buf, JSONFormat: true}, nil)
	ctx := ContextWithRequestID(context.Background(), "test-req-123")

	logger.InfoContext(ctx, "test message")

	if !strings.Contains(buf.String(), `"request_id":"test-req-123"`) {
		t.Errorf("expected request ID in output, got %s", buf.String())
	}
}

func TestLogger_NoRequestIDWithoutContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: slog.LevelInfo, Output: &buf, JSONFormat: true}, nil)

	logger.With("component", "router").Info("test message")

	if strings.Contains(buf.String(), "request_id") {
		t.Errorf("unexpected request ID in output, got %s", buf.String())
	}
	if !strings.Contains(buf.String(), `"component":"router"`) {
		t.Errorf("expected attrs to survive With, got %s", buf.String())
	}
}

func TestLogger_RedactsAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: slog.LevelInfo, Output: &buf}, NewRedactor())

	logger.Error("upstream failed",
		"error", errors.New("Bearer abc.def.ghi rejected"),
		"header", "Bearer xyz.uvw",
		"params", map[string]any{"api_key": "plain-secret", "region": "east"},
		"deployment", "east",
	)

	output := buf.String()
	for _, secret := range []string{"abc.def.ghi", "xyz.uvw", "plain-secret"} {
		if strings.Contains(output, secret) {
			t.Errorf("expected %q to be redacted, got %s", secret, output)
		}
	}
	if !strings.Contains(output, "Bearer [REDACTED]") {
		t.Errorf("expected redaction marker, got %s", output)
	}
	if !strings.Contains(output, "deployment=east") {
		t.Errorf("expected plain attributes to be kept, got %s", output)
	}
}

func TestLogger_RedactsMessage(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: slog.LevelInfo, Output: &buf, JSONFormat: true}, NewRedactor())

	logger.Warn("rejected sk-abcdefghijklmnopqrstuvwxyz")

	if strings.Contains(buf.String(), "sk-abcdefghijklmnopqrstuvwxyz") {
		t.Errorf("expected key in message to be redacted, got %s", buf.String())
	}
}

func TestLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: slog.LevelWarn, Output: &buf}, nil)

	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn message should be logged at warn level")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for input, want := range tests {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}
