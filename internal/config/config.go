package config

import (
	"fmt"
	"time"

	"go.uber.org/zap/zapcore"
)

// BackendConfig names one objects.cache / status.dat pair
type BackendConfig struct {
	Name        string `mapstructure:"name" yaml:"name"`
	ObjectsFile string `mapstructure:"objects_file" yaml:"objects_file"`
	StatusFile  string `mapstructure:"status_file" yaml:"status_file"`
}

// CacheConfig holds snapshot cache configuration
type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled" yaml:"enabled"`
	MaxEntries      int           `mapstructure:"max_entries" yaml:"max_entries"`
	FrequencyWeight float64       `mapstructure:"frequency_weight" yaml:"frequency_weight"`
	RecencyWeight   float64       `mapstructure:"recency_weight" yaml:"recency_weight"`
	AdaptiveWindow  time.Duration `mapstructure:"adaptive_window" yaml:"adaptive_window"`
}

// ReloadConfig holds reload scheduling configuration
type ReloadConfig struct {
	Interval    time.Duration `mapstructure:"interval" yaml:"interval"`
	MinInterval time.Duration `mapstructure:"min_interval" yaml:"min_interval"`
	Workers     int           `mapstructure:"workers" yaml:"workers"`
	QueueSize   int           `mapstructure:"queue_size" yaml:"queue_size"`
}

// QueryConfig holds query defaults
type QueryConfig struct {
	DefaultLimit int    `mapstructure:"default_limit" yaml:"default_limit"`
	MaxLimit     int    `mapstructure:"max_limit" yaml:"max_limit"`
	TimeZone     string `mapstructure:"time_zone" yaml:"time_zone"`
}

// MetricsConfig holds metrics server configuration
type MetricsConfig struct {
	Enabled         bool          `mapstructure:"enabled" yaml:"enabled"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// HealthConfig holds health check thresholds
type HealthConfig struct {
	MaxStatusAge time.Duration `mapstructure:"max_status_age" yaml:"max_status_age"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Config represents the complete configuration of a reader process
type Config struct {
	Backends []BackendConfig `mapstructure:"backends" yaml:"backends"`
	Cache    CacheConfig     `mapstructure:"cache" yaml:"cache"`
	Reload   ReloadConfig    `mapstructure:"reload" yaml:"reload"`
	Query    QueryConfig     `mapstructure:"query" yaml:"query"`
	Metrics  MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Health   HealthConfig    `mapstructure:"health" yaml:"health"`
	Logging  LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// DefaultConfig returns a configuration with every default applied and no
// backends
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			Enabled:         true,
			MaxEntries:      8,
			FrequencyWeight: 0.5,
			RecencyWeight:   0.5,
			AdaptiveWindow:  5 * time.Minute,
		},
		Reload: ReloadConfig{
			Interval:    30 * time.Second,
			MinInterval: 5 * time.Second,
			Workers:     4,
			QueueSize:   16,
		},
		Query: QueryConfig{
			MaxLimit: 10000,
			TimeZone: "UTC",
		},
		Metrics: MetricsConfig{
			Enabled:         true,
			Port:            9090,
			ShutdownTimeout: 5 * time.Second,
		},
		Health: HealthConfig{
			MaxStatusAge: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Backend returns the backend with the given name
func (c *Config) Backend(name string) (BackendConfig, bool) {
	for _, b := range c.Backends {
		if b.Name == name {
			return b, true
		}
	}
	return BackendConfig{}, false
}

// Location loads the configured query time zone
func (c *Config) Location() (*time.Location, error) {
	if c.Query.TimeZone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Query.TimeZone)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if len(c.Backends) == 0 {
		return fmt.Errorf("at least one backend is required")
	}
	seen := make(map[string]bool, len(c.Backends))
	for i, b := range c.Backends {
		if b.Name == "" {
			return fmt.Errorf("backends[%d].name is required", i)
		}
		if seen[b.Name] {
			return fmt.Errorf("backend name %q is not unique", b.Name)
		}
		seen[b.Name] = true
		if b.ObjectsFile == "" {
			return fmt.Errorf("backends[%d].objects_file is required", i)
		}
	}

	if c.Cache.MaxEntries < 1 {
		return fmt.Errorf("cache.max_entries must be positive")
	}
	if c.Cache.FrequencyWeight < 0 || c.Cache.FrequencyWeight > 1 {
		return fmt.Errorf("cache.frequency_weight must be between 0 and 1")
	}
	if c.Cache.RecencyWeight < 0 || c.Cache.RecencyWeight > 1 {
		return fmt.Errorf("cache.recency_weight must be between 0 and 1")
	}

	if c.Reload.Workers < 1 {
		return fmt.Errorf("reload.workers must be positive")
	}
	if c.Reload.QueueSize < 1 {
		return fmt.Errorf("reload.queue_size must be positive")
	}
	if c.Reload.Interval < 0 || c.Reload.MinInterval < 0 {
		return fmt.Errorf("reload intervals cannot be negative")
	}

	if c.Query.DefaultLimit < 0 || c.Query.MaxLimit < 0 {
		return fmt.Errorf("query limits cannot be negative")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("query.time_zone: %w", err)
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port must be between 1 and 65535")
	}

	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be json or console")
	}
	return nil
}
