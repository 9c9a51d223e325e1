// Package config loads Stokvel host configuration from a YAML file with
// STOKVEL_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xraph/stokvel/types"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverBolt     = "bolt"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("stokvel: invalid config")

// Config is the top-level host configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Token    TokenConfig    `yaml:"token"`
	Log      LogConfig      `yaml:"log"`
	Executor ExecutorConfig `yaml:"executor"`
	Metrics  MetricsConfig  `yaml:"metrics"`

	// HookTimeout bounds each plugin hook call.
	HookTimeout time.Duration `yaml:"hookTimeout"`
}

// StoreConfig selects and addresses the persistence backend.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	// DSN is the connection string for postgres and mongo.
	DSN string `yaml:"dsn"`
	// Path is the database file for sqlite and bolt.
	Path string `yaml:"path"`
	// Database is the mongo database name.
	Database string `yaml:"database"`
}

// TokenConfig configures genesis.
type TokenConfig struct {
	// Creator receives the whole supply when the token is deployed. Empty
	// means the host does not deploy on its own.
	Creator string `yaml:"creator"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ExecutorConfig configures the sequential executor.
type ExecutorConfig struct {
	QueueSize int `yaml:"queueSize"`
	// RateLimit is operations per second per caller; 0 disables throttling.
	RateLimit float64 `yaml:"rateLimit"`
	RateBurst int     `yaml:"rateBurst"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// DefaultConfig returns a Config with sensible defaults: an in-memory store,
// info-level text logs and no throttling.
func DefaultConfig() Config {
	return Config{
		Store: StoreConfig{
			Driver:   DriverMemory,
			Database: "stokvel",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Executor: ExecutorConfig{
			QueueSize: 1024,
		},
		Metrics: MetricsConfig{
			Namespace: "stokvel",
		},
		HookTimeout: 5 * time.Second,
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("stokvel: read config: %w", err)
		}
		if err := Parse(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	ApplyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML data into cfg. Keys absent from data keep their
// current value.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("stokvel: parse config: %w", err)
	}
	return nil
}

// ApplyEnvOverrides overwrites cfg with any STOKVEL_* variables that are set.
// Malformed numeric or boolean values are ignored.
func ApplyEnvOverrides(cfg *Config) {
	if v := env("STOKVEL_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = strings.ToLower(v)
	}
	if v := env("STOKVEL_STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}
	if v := env("STOKVEL_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := env("STOKVEL_STORE_DATABASE"); v != "" {
		cfg.Store.Database = v
	}
	if v := env("STOKVEL_CREATOR"); v != "" {
		cfg.Token.Creator = v
	}
	if v := env("STOKVEL_LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := env("STOKVEL_LOG_FORMAT"); v != "" {
		cfg.Log.Format = strings.ToLower(v)
	}
	cfg.Executor.QueueSize = positiveIntEnv("STOKVEL_QUEUE_SIZE", cfg.Executor.QueueSize)
	cfg.Executor.RateLimit = positiveFloatEnv("STOKVEL_RATE_LIMIT", cfg.Executor.RateLimit)
	cfg.Executor.RateBurst = positiveIntEnv("STOKVEL_RATE_BURST", cfg.Executor.RateBurst)
	if v := env("STOKVEL_METRICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if v := env("STOKVEL_METRICS_NAMESPACE"); v != "" {
		cfg.Metrics.Namespace = v
	}
	if v := env("STOKVEL_HOOK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.HookTimeout = d
		}
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite, DriverBolt:
		if c.Store.Path == "" {
			return fmt.Errorf("%w: store.path is required for %s", ErrInvalidConfig, c.Store.Driver)
		}
	case DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("%w: store.dsn is required for postgres", ErrInvalidConfig)
		}
	case DriverMongo:
		if c.Store.DSN == "" || c.Store.Database == "" {
			return fmt.Errorf("%w: store.dsn and store.database are required for mongo", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store driver %q", ErrInvalidConfig, c.Store.Driver)
	}

	if _, _, err := c.Token.CreatorAddress(); err != nil {
		return err
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("%w: log.format must be text or json, got %q", ErrInvalidConfig, c.Log.Format)
	}
	if c.Executor.RateLimit > 0 && c.Executor.RateBurst <= 0 {
		return fmt.Errorf("%w: executor.rateBurst must be positive when rateLimit is set", ErrInvalidConfig)
	}
	return nil
}

// CreatorAddress parses Creator. ok is false when no creator is configured.
func (t TokenConfig) CreatorAddress() (addr types.Address, ok bool, err error) {
	if t.Creator == "" {
		return types.ZeroAddress, false, nil
	}
	addr, err = types.ParseAddress(t.Creator)
	if err != nil {
		return types.ZeroAddress, false, fmt.Errorf("%w: token.creator: %w", ErrInvalidConfig, err)
	}
	if types.IsZeroAddress(addr) {
		return types.ZeroAddress, false, fmt.Errorf("%w: token.creator is the zero address", ErrInvalidConfig)
	}
	return addr, true, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func positiveIntEnv(key string, fallback int) int {
	raw := env(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func positiveFloatEnv(key string, fallback float64) float64 {
	raw := env(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
