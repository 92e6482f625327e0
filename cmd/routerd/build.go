package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/blueberrycongee/llmroute/internal/config"
	"github.com/blueberrycongee/llmroute/internal/observability"
	"github.com/blueberrycongee/llmroute/routers"
)

func newLogger(cfg config.LoggingConfig, redactor *observability.Redactor) *slog.Logger {
	return observability.NewLogger(observability.LoggerConfig{
		Level:      observability.ParseLevel(cfg.Level),
		Output:     os.Stdout,
		AddSource:  cfg.AddSource,
		JSONFormat: strings.EqualFold(cfg.Format, "json"),
	}, redactor)
}

// buildRouter creates the router, restores any stored registry state and then
// reconciles it against the configured deployments. store may be nil.
func buildRouter(ctx context.Context, cfg *config.Config, logger *slog.Logger, store routers.SnapshotStore, extra ...routers.Option) (*routers.Router, error) {
	routerCfg, err := cfg.Router.ToRouterConfig(logger)
	if err != nil {
		return nil, fmt.Errorf("router config: %w", err)
	}

	opts := []routers.Option{routers.WithLogger(logger)}
	if store != nil {
		opts = append(opts, routers.WithSnapshotStore(store))
	}
	opts = append(opts, extra...)
	r, err := routers.New(routerCfg, opts...)
	if err != nil {
		return nil, err
	}

	if store != nil {
		if _, err := r.Restore(ctx); err != nil {
			logger.Warn("snapshot restore failed, starting from config", "error", err)
		}
	}

	if _, err := r.Reconcile(cfg.RouterDeployments()); err != nil {
		return nil, fmt.Errorf("register deployments: %w", err)
	}
	return r, nil
}
