// Package config provides configuration management with hot-reload support.
// It uses fsnotify to watch for file changes and atomic pointer swaps for zero-downtime updates.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/blueberrycongee/llmroute/internal/healthcheck"
	"github.com/blueberrycongee/llmroute/internal/observability"
	"github.com/blueberrycongee/llmroute/pkg/router"
)

// Config represents the complete routing service configuration.
type Config struct {
	Server      ServerConfig                `yaml:"server"`
	Router      RouterConfig                `yaml:"router"`
	Deployments []DeploymentConfig          `yaml:"deployments"`
	Logging     LoggingConfig               `yaml:"logging"`
	Metrics     MetricsConfig               `yaml:"metrics"`
	Tracing     observability.TracingConfig `yaml:"tracing"`
	Redis       RedisConfig                 `yaml:"redis"`
	HealthCheck healthcheck.Config          `yaml:"health_check"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// RouterConfig contains routing strategy and health settings.
type RouterConfig struct {
	RoutingStrategy     StrategySetting    `yaml:"routing_strategy"`
	LenientStrategy     bool               `yaml:"lenient_strategy"`
	CooldownTimeSeconds float64            `yaml:"cooldown_time_seconds"`
	MaxRetries          int                `yaml:"max_retries"`
	TimeoutSeconds      float64            `yaml:"timeout_seconds"`
	RecoveryPolicy      string             `yaml:"recovery_policy"` // auto, manual
	UsageWindow         time.Duration      `yaml:"usage_window"`
	UsageLimits         router.UsageLimits `yaml:"usage_limits"`
}

// StrategySetting holds routing_strategy as written: a name, an alias or an
// integer code. It is resolved against the strategy table by Strategy.
type StrategySetting string

// UnmarshalYAML accepts any scalar so that `routing_strategy: 3` and
// `routing_strategy: least-busy` both decode.
func (s *StrategySetting) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("routing_strategy must be a scalar, got %s", nodeKind(node.Kind))
	}
	*s = StrategySetting(strings.TrimSpace(node.Value))
	return nil
}

func nodeKind(k yaml.Kind) string {
	switch k {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.AliasNode:
		return "alias"
	default:
		return "document"
	}
}

// DeploymentConfig defines one backend instance of a model.
type DeploymentConfig struct {
	Key       string          `yaml:"key"`
	ModelName string          `yaml:"model_name"`
	Params    map[string]any  `yaml:"params"`
	ModelInfo ModelInfoConfig `yaml:"model_info"`
	RPMSeed   uint64          `yaml:"rpm_seed"`
	TPMSeed   uint64          `yaml:"tpm_seed"`
}

// ModelInfoConfig holds per-token costs; any other key lands in Extra.
type ModelInfoConfig struct {
	InputCostPerToken  *float64       `yaml:"input_cost_per_token"`
	OutputCostPerToken *float64       `yaml:"output_cost_per_token"`
	Extra              map[string]any `yaml:",inline"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level     string `yaml:"level"`  // debug, info, warn, error
	Format    string `yaml:"format"` // json, text
	AddSource bool   `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// RedisConfig configures the shared snapshot store.
type RedisConfig struct {
	Enabled            bool          `yaml:"enabled"`
	Addrs              []string      `yaml:"addrs"`
	Username           string        `yaml:"username"`
	Password           string        `yaml:"password"`
	DB                 int           `yaml:"db"`
	KeyPrefix          string        `yaml:"key_prefix"`
	LockTTL            time.Duration `yaml:"lock_ttl"`
	CheckpointInterval time.Duration `yaml:"checkpoint_interval"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	defaults := router.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Router: RouterConfig{
			RoutingStrategy:     StrategySetting(defaults.Strategy.String()),
			CooldownTimeSeconds: defaults.CooldownPeriod.Seconds(),
			MaxRetries:          defaults.MaxRetries,
			TimeoutSeconds:      defaults.Timeout.Seconds(),
			RecoveryPolicy:      string(defaults.Recovery),
			UsageLimits:         defaults.UsageLimits,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Tracing: observability.DefaultTracingConfig(),
		Redis: RedisConfig{
			Addrs:              []string{"localhost:6379"},
			KeyPrefix:          "llmroute:registry",
			LockTTL:            5 * time.Second,
			CheckpointInterval: 30 * time.Second,
		},
		HealthCheck: healthcheck.Config{
			Interval: 30 * time.Second,
			Timeout:  10 * time.Second,
			URLParam: healthcheck.DefaultURLParam,
		},
	}
}

// LoadFromFile reads and parses a YAML configuration file.
// Environment variables in the format ${VAR_NAME} are expanded.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes on top of DefaultConfig and validates the result.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if err := c.Router.validate(); err != nil {
		return err
	}

	seen := make(map[string]int, len(c.Deployments))
	for i, d := range c.Deployments {
		if strings.TrimSpace(d.ModelName) == "" {
			return fmt.Errorf("deployments[%d]: model_name is required", i)
		}
		key := d.key()
		if prev, dup := seen[key]; dup {
			return fmt.Errorf("deployments[%d]: key %q already used by deployments[%d]", i, key, prev)
		}
		seen[key] = i
		if err := ValidateDeployment(d.Params, d.toDeployment().ModelInfo); err != nil {
			return fmt.Errorf("deployments[%d] %q: %w", i, key, err)
		}
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("tracing.sample_rate must be between 0 and 1")
	}

	if c.HealthCheck.Interval < 0 || c.HealthCheck.Timeout < 0 {
		return fmt.Errorf("health_check durations cannot be negative")
	}

	if c.Redis.Enabled {
		if len(c.Redis.Addrs) == 0 {
			return fmt.Errorf("redis.addrs is required when redis is enabled")
		}
		if c.Redis.LockTTL < 0 || c.Redis.CheckpointInterval < 0 {
			return fmt.Errorf("redis durations cannot be negative")
		}
	}

	return nil
}

func (r RouterConfig) validate() error {
	if !r.LenientStrategy {
		if _, err := router.ParseStrategy(string(r.RoutingStrategy)); err != nil {
			return fmt.Errorf("router.routing_strategy: %w", err)
		}
	}
	if r.CooldownTimeSeconds < 0 {
		return fmt.Errorf("router.cooldown_time_seconds cannot be negative")
	}
	if r.MaxRetries < 0 {
		return fmt.Errorf("router.max_retries cannot be negative")
	}
	if r.TimeoutSeconds < 0 {
		return fmt.Errorf("router.timeout_seconds cannot be negative")
	}
	if r.UsageWindow < 0 {
		return fmt.Errorf("router.usage_window cannot be negative")
	}
	switch router.RecoveryPolicy(r.RecoveryPolicy) {
	case "", router.RecoveryAuto, router.RecoveryManual:
	default:
		return fmt.Errorf("router.recovery_policy must be auto or manual, got %q", r.RecoveryPolicy)
	}
	return nil
}

// Strategy resolves the configured routing strategy. In lenient mode an
// unrecognized value falls back to least-busy and ok is false.
func (r RouterConfig) Strategy() (s router.Strategy, ok bool, err error) {
	if r.LenientStrategy {
		s, ok = router.ParseStrategyLenient(string(r.RoutingStrategy))
		return s, ok, nil
	}
	s, err = router.ParseStrategy(string(r.RoutingStrategy))
	if err != nil {
		return 0, false, err
	}
	return s, true, nil
}

// ToRouterConfig converts the router section into router.Config. A lenient
// fallback is reported on logger, which may be nil.
func (r RouterConfig) ToRouterConfig(logger *slog.Logger) (router.Config, error) {
	strategy, ok, err := r.Strategy()
	if err != nil {
		return router.Config{}, err
	}
	if !ok && logger != nil {
		logger.Warn("unknown routing strategy, falling back",
			"routing_strategy", string(r.RoutingStrategy),
			"strategy", strategy.String(),
		)
	}

	return router.Config{
		Strategy:       strategy,
		CooldownPeriod: seconds(r.CooldownTimeSeconds),
		MaxRetries:     r.MaxRetries,
		Timeout:        seconds(r.TimeoutSeconds),
		Recovery:       router.RecoveryPolicy(r.RecoveryPolicy),
		UsageLimits:    r.UsageLimits,
		UsageWindow:    r.UsageWindow,
	}, nil
}

// RouterDeployments converts the deployments section into registry inputs.
func (c *Config) RouterDeployments() []router.Deployment {
	out := make([]router.Deployment, 0, len(c.Deployments))
	for _, d := range c.Deployments {
		out = append(out, d.toDeployment())
	}
	return out
}

func (d DeploymentConfig) key() string {
	if d.Key != "" {
		return d.Key
	}
	return d.ModelName
}

func (d DeploymentConfig) toDeployment() router.Deployment {
	info := router.ModelInfo{
		InputCostPerToken:  d.ModelInfo.InputCostPerToken,
		OutputCostPerToken: d.ModelInfo.OutputCostPerToken,
	}
	if len(d.ModelInfo.Extra) > 0 {
		info.Extra = d.ModelInfo.Extra
	}
	return router.Deployment{
		Key:        d.Key,
		ModelName:  d.ModelName,
		Params:     d.Params,
		ModelInfo:  info,
		CurrentRPM: d.RPMSeed,
		CurrentTPM: d.TPMSeed,
	}.Clone()
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// ValidateDeployment checks the pass-through parts of a deployment: params and
// model_info extras must be flat, and per-token costs cannot be negative.
func ValidateDeployment(params map[string]any, info router.ModelInfo) error {
	if err := scalarMap(params); err != nil {
		return fmt.Errorf("params: %w", err)
	}
	if err := scalarMap(info.Extra); err != nil {
		return fmt.Errorf("model_info: %w", err)
	}
	if info.InputCostPerToken != nil && *info.InputCostPerToken < 0 {
		return errors.New("input_cost_per_token cannot be negative")
	}
	if info.OutputCostPerToken != nil && *info.OutputCostPerToken < 0 {
		return errors.New("output_cost_per_token cannot be negative")
	}
	return nil
}

// scalarMap rejects nested maps and lists; params and model extras are flat.
func scalarMap(m map[string]any) error {
	for k, v := range m {
		switch v.(type) {
		case nil, string, bool, int, int64, uint64, float64:
		default:
			return fmt.Errorf("%q must be a scalar, got %T", k, v)
		}
	}
	return nil
}

// Warning codes reported by Config.Warnings.
const (
	WarningStrategyFallback = "strategy_fallback"
	WarningNoDeployments    = "no_deployments"
	WarningNoCooldown       = "no_cooldown"
)

// Warning is a non-fatal configuration issue surfaced at startup.
type Warning struct {
	Code    string
	Message string
}

// Warnings returns configuration issues that load successfully but are likely mistakes.
func (c *Config) Warnings() []Warning {
	var warnings []Warning
	if _, ok, err := c.Router.Strategy(); err == nil && !ok {
		warnings = append(warnings, Warning{
			Code:    WarningStrategyFallback,
			Message: fmt.Sprintf("routing_strategy %q is not recognized; using least-busy", c.Router.RoutingStrategy),
		})
	}
	if len(c.Deployments) == 0 {
		warnings = append(warnings, Warning{
			Code:    WarningNoDeployments,
			Message: "no deployments configured; every route will fail until one is added",
		})
	}
	if c.Router.CooldownTimeSeconds == 0 {
		message := "cooldown_time_seconds is 0; failed deployments are never excluded"
		if router.RecoveryPolicy(c.Router.RecoveryPolicy) == router.RecoveryManual {
			message = "cooldown_time_seconds is 0; failed deployments stay excluded until marked healthy"
		}
		warnings = append(warnings, Warning{
			Code:    WarningNoCooldown,
			Message: message,
		})
	}
	return warnings
}
