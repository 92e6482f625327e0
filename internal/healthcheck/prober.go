// Package healthcheck provides proactive deployment probing.
package healthcheck

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/blueberrycongee/llmroute/pkg/router"
)

const (
	defaultProbeInterval = 30 * time.Second
	defaultProbeTimeout  = 10 * time.Second

	// DefaultURLParam is the deployment param holding the probe URL.
	DefaultURLParam = "health_url"
)

// Config controls the proactive health checker behavior.
type Config struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
	URLParam string        `yaml:"url_param"`
}

// Target is the part of the router the prober drives.
type Target interface {
	Deployments() []router.Deployment
	RecordFailure(key string)
	MarkHealthy(key string) error
	RecordHealthCheck(key string) error
}

// Prober periodically GETs each deployment's health URL. A failed probe is
// recorded as a failed request, which restarts the cooldown; a passing probe
// sets the health flag of an unhealthy deployment, which rejoins rotation
// once any running cooldown ends. Every probe stamps the health check time.
type Prober struct {
	cfg     Config
	target  Target
	logger  *slog.Logger
	client  *http.Client
	started atomic.Bool
}

// NewProber creates a new health checker.
func NewProber(cfg Config, target Target, logger *slog.Logger) *Prober {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultProbeInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultProbeTimeout
	}
	if cfg.URLParam == "" {
		cfg.URLParam = DefaultURLParam
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Prober{
		cfg:    cfg,
		target: target,
		logger: logger,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Start begins the probe loop until the context is canceled.
func (p *Prober) Start(ctx context.Context) {
	if p == nil || !p.cfg.Enabled {
		return
	}
	if p.target == nil {
		p.logger.Warn("healthcheck prober missing target")
		return
	}
	if !p.started.CompareAndSwap(false, true) {
		return
	}

	go p.run(ctx)
}

func (p *Prober) run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.runOnce(ctx)

	for {
		select {
		case <-ticker.C:
			p.runOnce(ctx)
		case <-ctx.Done():
			p.logger.Info("healthcheck prober stopped")
			return
		}
	}
}

func (p *Prober) runOnce(ctx context.Context) {
	for _, d := range p.target.Deployments() {
		if ctx.Err() != nil {
			return
		}
		url, ok := d.Params[p.cfg.URLParam].(string)
		if !ok || url == "" {
			continue
		}
		key := d.RegistryKey()

		if err := p.probe(ctx, url); err != nil {
			p.target.RecordFailure(key)
			p.stamp(key)
			p.logger.Warn("healthcheck probe failed",
				"deployment", key,
				"model", d.ModelName,
				"error", err,
			)
			continue
		}

		if d.IsHealthy {
			p.stamp(key)
			continue
		}
		if err := p.target.MarkHealthy(key); err != nil {
			p.logger.Warn("healthcheck reinstate failed", "deployment", key, "error", err)
			continue
		}
		p.logger.Info("deployment reinstated by healthcheck", "deployment", key)
	}
}

func (p *Prober) stamp(key string) {
	if err := p.target.RecordHealthCheck(key); err != nil {
		p.logger.Debug("healthcheck stamp skipped", "deployment", key, "error", err)
	}
}

func (p *Prober) probe(ctx context.Context, url string) error {
	probeCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("healthcheck probe returned %d", resp.StatusCode)
	}
	return nil
}
