// Package config loads bloomd's daemon configuration from the built-in
// defaults, a YAML file, and environment variables, in that order of
// increasing precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// BloomConfig holds the default sizing for filters created without an
// explicit override.
type BloomConfig struct {
	Capacity uint64  `yaml:"capacity"`
	FPRate   float64 `yaml:"fp_rate"`
	InMemory bool    `yaml:"in_memory"`
}

// VacuumConfig controls the background reclamation worker.
type VacuumConfig struct {
	// Interval is how often the vacuum worker wakes up to scan for
	// retired versions.
	Interval time.Duration `yaml:"interval"`

	// CooldownPeriod is how long a version must sit with its hot flag
	// cleared before the vacuum worker will reclaim it.
	CooldownPeriod time.Duration `yaml:"cooldown_period"`
}

// DaemonConfig holds process-level settings.
type DaemonConfig struct {
	DataDir  string `yaml:"data_dir"`
	HTTPAddr string `yaml:"http_addr"`
	LogLevel string `yaml:"log_level"`
}

// TracingConfig holds OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"` // otlp-http (or otlp), stdout
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled          bool      `yaml:"enabled"`
	Namespace        string    `yaml:"namespace"`
	HistogramBuckets []float64 `yaml:"histogram_buckets"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// ObservabilityConfig holds all observability-related settings.
type ObservabilityConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// Config is bloomd's top-level configuration.
type Config struct {
	Bloom         BloomConfig         `yaml:"bloom"`
	Vacuum        VacuumConfig        `yaml:"vacuum"`
	Daemon        DaemonConfig        `yaml:"daemon"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// DefaultConfig returns a Config populated with bloomd's built-in
// defaults, matching the original daemon's compiled-in constants.
func DefaultConfig() *Config {
	return &Config{
		Bloom: BloomConfig{
			Capacity: 100000,
			FPRate:   1e-4,
			InMemory: true,
		},
		Vacuum: VacuumConfig{
			Interval:       1 * time.Second,
			CooldownPeriod: 15 * time.Second,
		},
		Daemon: DaemonConfig{
			DataDir:  "/var/lib/bloomd",
			HTTPAddr: ":8673",
			LogLevel: "info",
		},
		Observability: ObservabilityConfig{
			Tracing: TracingConfig{
				Enabled:     false,
				Exporter:    "otlp-http",
				Endpoint:    "localhost:4318",
				ServiceName: "bloomd",
				SampleRate:  1.0,
			},
			Metrics: MetricsConfig{
				Enabled:          true,
				Namespace:        "bloomd",
				HistogramBuckets: []float64{0.1, 0.5, 1, 5, 10, 25, 50, 100, 250, 500},
			},
			Logging: LoggingConfig{
				Level:  "info",
				Format: "text",
			},
		},
	}
}

// LoadFromFile loads configuration from a YAML file, starting from
// DefaultConfig so an incomplete file still yields sane settings for
// whatever it omits.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromEnv applies BLOOMD_-prefixed environment variable overrides
// to cfg in place.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("BLOOMD_DATA_DIR"); v != "" {
		cfg.Daemon.DataDir = v
	}
	if v := os.Getenv("BLOOMD_HTTP_ADDR"); v != "" {
		cfg.Daemon.HTTPAddr = v
	}
	if v := os.Getenv("BLOOMD_LOG_LEVEL"); v != "" {
		cfg.Daemon.LogLevel = v
	}
	if v := os.Getenv("BLOOMD_BLOOM_CAPACITY"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Bloom.Capacity = n
		}
	}
	if v := os.Getenv("BLOOMD_BLOOM_FP_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Bloom.FPRate = f
		}
	}
	if v := os.Getenv("BLOOMD_BLOOM_IN_MEMORY"); v != "" {
		cfg.Bloom.InMemory = parseBool(v)
	}
	if v := os.Getenv("BLOOMD_VACUUM_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Vacuum.Interval = d
		}
	}
	if v := os.Getenv("BLOOMD_VACUUM_COOLDOWN"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Vacuum.CooldownPeriod = d
		}
	}
	if v := os.Getenv("BLOOMD_TRACING_ENABLED"); v != "" {
		cfg.Observability.Tracing.Enabled = parseBool(v)
	}
	if v := os.Getenv("BLOOMD_TRACING_ENDPOINT"); v != "" {
		cfg.Observability.Tracing.Endpoint = v
	}
	if v := os.Getenv("BLOOMD_METRICS_ENABLED"); v != "" {
		cfg.Observability.Metrics.Enabled = parseBool(v)
	}
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
