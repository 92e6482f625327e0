// Package main is the entry point for the llmroute routing service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blueberrycongee/llmroute/internal/api"
	"github.com/blueberrycongee/llmroute/internal/config"
	"github.com/blueberrycongee/llmroute/internal/healthcheck"
	"github.com/blueberrycongee/llmroute/internal/metrics"
	"github.com/blueberrycongee/llmroute/internal/observability"
	"github.com/blueberrycongee/llmroute/routers"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	flag.Parse()

	cfgManager, err := config.NewManager(*configPath, nil)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	defer cfgManager.Close()
	cfg := cfgManager.Get()

	redactor := observability.NewRedactor()
	logger := newLogger(cfg.Logging, redactor)
	logger.Info("starting llmroute", "version", version, "config", cfgManager.Status().Path)
	for _, w := range cfg.Warnings() {
		logger.Warn("configuration warning", "code", w.Code, "message", w.Message)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := observability.InitTracing(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("tracer shutdown error", "error", err)
		}
	}()

	redisStore, redisClient, err := newSnapshotStore(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	var store routers.SnapshotStore
	if redisStore != nil {
		store = redisStore
		defer redisClient.Close()
	}

	router, err := buildRouter(ctx, cfg, logger, store, routers.WithTracer(tp.Tracer()))
	if err != nil {
		return err
	}

	reloader := newDeploymentReloader(logger, router)
	cfgManager.OnChange(reloader.Reload)
	if err := cfgManager.Watch(ctx); err != nil {
		logger.Warn("config hot-reload disabled", "error", err)
	}

	healthcheck.NewProber(cfg.HealthCheck, router, logger).Start(ctx)

	var checkpoints *checkpointRunner
	if store != nil {
		checkpoints = startCheckpointRunner(router, cfg.Redis.CheckpointInterval, logger)
	}

	handler := api.NewHandler(router, logger,
		api.WithRedactor(redactor),
		api.WithConfigManager(cfgManager),
	)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, promhttp.Handler())
	}

	var httpHandler http.Handler = mux
	httpHandler = metrics.Middleware(httpHandler)
	httpHandler = observability.RequestIDMiddleware(httpHandler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			"port", cfg.Server.Port,
			"strategy", router.Config().Strategy.String(),
			"deployments", len(router.ListDeploymentNames()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	checkpoints.Stop()
	logger.Info("server stopped")
	return nil
}
