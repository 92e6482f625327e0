package main

import (
	"log/slog"
	"sync"

	"github.com/blueberrycongee/llmroute/internal/config"
	"github.com/blueberrycongee/llmroute/routers"
)

// deploymentReloader applies reloaded deployment lists to a running router.
// Router-wide settings such as the strategy are fixed at startup; a change to
// them is logged and takes effect on restart. Reloads are applied one at a
// time in call order.
type deploymentReloader struct {
	logger *slog.Logger
	router *routers.Router
	mu     sync.Mutex
}

func newDeploymentReloader(logger *slog.Logger, router *routers.Router) *deploymentReloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &deploymentReloader{
		logger: logger,
		router: router,
	}
}

func (r *deploymentReloader) Reload(cfg *config.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next, err := cfg.Router.ToRouterConfig(r.logger)
	if err == nil && next.Strategy != r.router.Config().Strategy {
		r.logger.Warn("routing strategy changed; restart to apply",
			"current", r.router.Config().Strategy.String(),
			"configured", next.Strategy.String(),
		)
	}

	result, err := r.router.Reconcile(cfg.RouterDeployments())
	if err != nil {
		r.logger.Error("failed to reconcile deployments", "error", err)
		return
	}

	r.logger.Info("deployments reloaded",
		"added", result.Added,
		"updated", len(result.Updated),
		"removed", result.Removed,
	)
}
