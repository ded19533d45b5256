package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. STATUSDAT_LOGGING_LEVEL
const EnvPrefix = "STATUSDAT"

// Override adjusts a loaded configuration before validation
type Override func(*Config)

// Load reads the YAML file at configPath, applies environment overrides and
// then overrides, and validates the result. An empty configPath uses
// defaults and the environment only.
func Load(configPath string, overrides ...Override) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvironmentOverrides(cfg)
	for _, override := range overrides {
		override(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every scalar default with viper so that AutomaticEnv
// can override keys the file does not mention
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.max_entries", d.Cache.MaxEntries)
	v.SetDefault("cache.frequency_weight", d.Cache.FrequencyWeight)
	v.SetDefault("cache.recency_weight", d.Cache.RecencyWeight)
	v.SetDefault("cache.adaptive_window", d.Cache.AdaptiveWindow)

	v.SetDefault("reload.interval", d.Reload.Interval)
	v.SetDefault("reload.min_interval", d.Reload.MinInterval)
	v.SetDefault("reload.workers", d.Reload.Workers)
	v.SetDefault("reload.queue_size", d.Reload.QueueSize)

	v.SetDefault("query.default_limit", d.Query.DefaultLimit)
	v.SetDefault("query.max_limit", d.Query.MaxLimit)
	v.SetDefault("query.time_zone", d.Query.TimeZone)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.port", d.Metrics.Port)
	v.SetDefault("metrics.shutdown_timeout", d.Metrics.ShutdownTimeout)

	v.SetDefault("health.max_status_age", d.Health.MaxStatusAge)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// applyEnvironmentOverrides handles the backend list, which viper cannot map
// from flat variables. STATUSDAT_OBJECTS_FILE and STATUSDAT_STATUS_FILE
// describe a backend named "default" (or STATUSDAT_BACKEND).
func applyEnvironmentOverrides(cfg *Config) {
	objects := os.Getenv(EnvPrefix + "_OBJECTS_FILE")
	status := os.Getenv(EnvPrefix + "_STATUS_FILE")
	if objects == "" && status == "" {
		return
	}

	name := os.Getenv(EnvPrefix + "_BACKEND")
	if name == "" {
		name = "default"
	}

	for i := range cfg.Backends {
		if cfg.Backends[i].Name != name {
			continue
		}
		if objects != "" {
			cfg.Backends[i].ObjectsFile = objects
		}
		if status != "" {
			cfg.Backends[i].StatusFile = status
		}
		return
	}
	cfg.Backends = append(cfg.Backends, BackendConfig{Name: name, ObjectsFile: objects, StatusFile: status})
}
