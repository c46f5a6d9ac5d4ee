package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/5-logic/the-sync-frontend-sub001/cache"
	"github.com/5-logic/the-sync-frontend-sub001/health"
	"github.com/5-logic/the-sync-frontend-sub001/observe"
	"github.com/5-logic/the-sync-frontend-sub001/reconcile"
	"github.com/5-logic/the-sync-frontend-sub001/resilience"
	"github.com/5-logic/the-sync-frontend-sub001/toggle"
)

const (
	defaultConfigPath = "~/.config/thesync/config.toml"
	defaultCachePath  = "~/.local/share/thesync/cache.db"
	defaultBaseURL    = "http://localhost:4000/api"
	defaultService    = "thesync"
	defaultKeyPrefix  = "cache"
)

// Config is the full runtime configuration.
type Config struct {
	API       API
	Cache     Cache
	Toggle    Toggle
	Reconcile Reconcile
	Health    Health
	Observe   observe.Config
}

// API configures the backend client.
type API struct {
	BaseURL string
	Headers map[string]string

	// Breaker settings. Zero values take the resilience defaults.
	MaxFailures  int
	ResetTimeout time.Duration

	// Retry settings for idempotent reads.
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// Cache configures every entity cache.
type Cache struct {
	TTL     time.Duration
	MaxSize int
	Persist bool
	Path    string

	// KeyPrefix namespaces persisted entries, so mirrors of different
	// backends can share one cache file.
	KeyPrefix string
}

// Toggle configures the toggle coordinators.
type Toggle struct {
	Debounce time.Duration
	Settle   time.Duration
}

// Reconcile configures the background reconcilers.
type Reconcile struct {
	Delay    time.Duration
	Cooldown time.Duration
}

// Health configures the optional health endpoint.
type Health struct {
	// Addr is the listen address; empty disables the endpoint.
	Addr       string
	StallAfter time.Duration
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		API: API{BaseURL: defaultBaseURL},
		Cache: Cache{
			TTL:     cache.DefaultTTL,
			MaxSize: cache.DefaultMaxSize,
			Path:    mustExpand(defaultCachePath),

			KeyPrefix: defaultKeyPrefix,
		},
		Toggle: Toggle{
			Debounce: toggle.DefaultDebounceWindow,
			Settle:   toggle.DefaultSettleDelay,
		},
		Reconcile: Reconcile{
			Delay:    reconcile.DefaultDelay,
			Cooldown: resilience.DefaultCooldown,
		},
		Health: Health{StallAfter: health.DefaultStallAfter},
		Observe: observe.Config{
			ServiceName: defaultService,
			Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
		},
	}
}

type rawConfig struct {
	API struct {
		BaseURL      string            `toml:"base_url"`
		Headers      map[string]string `toml:"headers"`
		MaxFailures  int               `toml:"max_failures"`
		ResetTimeout string            `toml:"reset_timeout"`
		MaxAttempts  int               `toml:"max_attempts"`
		InitialDelay string            `toml:"initial_delay"`
		MaxDelay     string            `toml:"max_delay"`
	} `toml:"api"`
	Cache struct {
		TTL     string `toml:"ttl"`
		MaxSize *int   `toml:"max_size"`
		Persist bool   `toml:"persist"`
		Path    string `toml:"path"`

		KeyPrefix string `toml:"key_prefix"`
	} `toml:"cache"`
	Toggle struct {
		Debounce string `toml:"debounce"`
		Settle   string `toml:"settle"`
	} `toml:"toggle"`
	Reconcile struct {
		Delay    string `toml:"delay"`
		Cooldown string `toml:"cooldown"`
	} `toml:"reconcile"`
	Health struct {
		Addr       string `toml:"addr"`
		StallAfter string `toml:"stall_after"`
	} `toml:"health"`
	Observe struct {
		ServiceName string `toml:"service_name"`
		Version     string `toml:"version"`
		Tracing     struct {
			Enabled   bool    `toml:"enabled"`
			Exporter  string  `toml:"exporter"`
			SamplePct float64 `toml:"sample_pct"`
		} `toml:"tracing"`
		Metrics struct {
			Enabled  bool   `toml:"enabled"`
			Exporter string `toml:"exporter"`
		} `toml:"metrics"`
		Logging struct {
			Enabled *bool  `toml:"enabled"`
			Level   string `toml:"level"`
		} `toml:"logging"`
	} `toml:"observe"`
}

// Load locates and parses the config file, falling back to defaults when
// it is missing. An empty path means the default location.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(bytes)
}

// Parse expands, decodes, defaults and validates TOML config data.
func Parse(data []byte) (Config, error) {
	expanded, err := ExpandEnvStrict(string(data))
	if err != nil {
		return Config{}, err
	}

	var raw rawConfig
	if err := toml.Unmarshal([]byte(expanded), &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg, err := raw.resolve()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (raw rawConfig) resolve() (Config, error) {
	cfg := Default()
	d := durations{}

	cfg.API.BaseURL = orDefault(raw.API.BaseURL, cfg.API.BaseURL)
	if len(raw.API.Headers) > 0 {
		cfg.API.Headers = make(map[string]string, len(raw.API.Headers))
		for k, v := range raw.API.Headers {
			cfg.API.Headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	cfg.API.MaxFailures = raw.API.MaxFailures
	cfg.API.ResetTimeout = d.parse("api.reset_timeout", raw.API.ResetTimeout, 0)
	cfg.API.MaxAttempts = raw.API.MaxAttempts
	cfg.API.InitialDelay = d.parse("api.initial_delay", raw.API.InitialDelay, 0)
	cfg.API.MaxDelay = d.parse("api.max_delay", raw.API.MaxDelay, 0)

	cfg.Cache.TTL = d.parse("cache.ttl", raw.Cache.TTL, cfg.Cache.TTL)
	if raw.Cache.MaxSize != nil {
		cfg.Cache.MaxSize = *raw.Cache.MaxSize
	}
	cfg.Cache.Persist = raw.Cache.Persist
	cfg.Cache.Path = mustExpand(orDefault(raw.Cache.Path, defaultCachePath))
	cfg.Cache.KeyPrefix = orDefault(raw.Cache.KeyPrefix, cfg.Cache.KeyPrefix)

	cfg.Toggle.Debounce = d.parse("toggle.debounce", raw.Toggle.Debounce, cfg.Toggle.Debounce)
	cfg.Toggle.Settle = d.parse("toggle.settle", raw.Toggle.Settle, cfg.Toggle.Settle)

	cfg.Reconcile.Delay = d.parse("reconcile.delay", raw.Reconcile.Delay, cfg.Reconcile.Delay)
	cfg.Reconcile.Cooldown = d.parse("reconcile.cooldown", raw.Reconcile.Cooldown, cfg.Reconcile.Cooldown)

	cfg.Health.Addr = strings.TrimSpace(raw.Health.Addr)
	cfg.Health.StallAfter = d.parse("health.stall_after", raw.Health.StallAfter, cfg.Health.StallAfter)

	o := raw.Observe
	cfg.Observe.ServiceName = orDefault(o.ServiceName, cfg.Observe.ServiceName)
	cfg.Observe.Version = strings.TrimSpace(o.Version)
	cfg.Observe.Tracing = observe.TracingConfig{
		Enabled:   o.Tracing.Enabled,
		Exporter:  strings.TrimSpace(o.Tracing.Exporter),
		SamplePct: o.Tracing.SamplePct,
	}
	cfg.Observe.Metrics = observe.MetricsConfig{
		Enabled:  o.Metrics.Enabled,
		Exporter: strings.TrimSpace(o.Metrics.Exporter),
	}
	if o.Logging.Enabled != nil {
		cfg.Observe.Logging.Enabled = *o.Logging.Enabled
	}
	cfg.Observe.Logging.Level = orDefault(strings.ToLower(o.Logging.Level), cfg.Observe.Logging.Level)

	return cfg, d.err
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	base := c.API.BaseURL
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	if u, err := url.Parse(base); err != nil || u.Host == "" {
		return fmt.Errorf("%w: api.base_url %q", ErrInvalid, c.API.BaseURL)
	}
	if c.API.MaxFailures < 0 || c.API.MaxAttempts < 0 {
		return fmt.Errorf("%w: api.max_failures and api.max_attempts must not be negative", ErrInvalid)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("%w: cache.ttl must be positive", ErrInvalid)
	}
	if c.Cache.Persist && c.Cache.Path == "" {
		return fmt.Errorf("%w: cache.path is required when cache.persist is set", ErrInvalid)
	}
	if c.Cache.KeyPrefix == "" || strings.Contains(c.Cache.KeyPrefix, ":") {
		return fmt.Errorf("%w: cache.key_prefix %q must be non-empty and free of ':'", ErrInvalid, c.Cache.KeyPrefix)
	}

	nonNegative := []struct {
		name string
		d    time.Duration
	}{
		{"api.reset_timeout", c.API.ResetTimeout},
		{"api.initial_delay", c.API.InitialDelay},
		{"api.max_delay", c.API.MaxDelay},
		{"toggle.debounce", c.Toggle.Debounce},
		{"toggle.settle", c.Toggle.Settle},
		{"reconcile.delay", c.Reconcile.Delay},
		{"reconcile.cooldown", c.Reconcile.Cooldown},
		{"health.stall_after", c.Health.StallAfter},
	}
	for _, nn := range nonNegative {
		if nn.d < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalid, nn.name)
		}
	}

	if err := c.Observe.Validate(); err != nil {
		return fmt.Errorf("%w: observe: %w", ErrInvalid, err)
	}
	return nil
}

// CacheConfig converts the cache section for cache.New.
func (c Config) CacheConfig() cache.Config {
	return cache.Config{
		TTL:               c.Cache.TTL,
		MaxSize:           c.Cache.MaxSize,
		EnablePersistence: c.Cache.Persist,
	}
}

// Keyer returns the storage key layout for persisted cache entries.
func (c Config) Keyer() cache.Keyer {
	return &cache.DefaultKeyer{Prefix: c.Cache.KeyPrefix}
}

// BreakerConfig converts the breaker settings. IsFailure is left to the caller.
func (c Config) BreakerConfig() resilience.BreakerConfig {
	return resilience.BreakerConfig{
		MaxFailures:  c.API.MaxFailures,
		ResetTimeout: c.API.ResetTimeout,
	}
}

// RetryConfig converts the retry settings. RetryIf is left to the caller.
func (c Config) RetryConfig() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:  c.API.MaxAttempts,
		InitialDelay: c.API.InitialDelay,
		MaxDelay:     c.API.MaxDelay,
		Jitter:       true,
	}
}

// durations parses duration strings and keeps the first error.
type durations struct {
	err error
}

func (d *durations) parse(field, raw string, def time.Duration) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		if d.err == nil {
			d.err = fmt.Errorf("%w: %s: %w", ErrInvalid, field, err)
		}
		return def
	}
	return v
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
