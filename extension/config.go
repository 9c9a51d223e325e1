package extension

import "time"

// Config holds the Stokvel extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.stokvel" or "stokvel" keys).
type Config struct {
	// Creator is the hex address that receives the whole supply. When set and
	// the store holds no deployment, the extension deploys on Start.
	Creator string `json:"creator" mapstructure:"creator" yaml:"creator"`

	// DisableAutoDeploy keeps Start from deploying even if Creator is set.
	DisableAutoDeploy bool `json:"disable_auto_deploy" mapstructure:"disable_auto_deploy" yaml:"disable_auto_deploy"`

	// QueueSize is how many operations may wait for the executor (default: 1024).
	QueueSize int `json:"queue_size" mapstructure:"queue_size" yaml:"queue_size"`

	// RateLimit is the per-caller operations-per-second budget. Zero disables
	// throttling.
	RateLimit float64 `json:"rate_limit" mapstructure:"rate_limit" yaml:"rate_limit"`

	// RateBurst is the per-caller burst (default: 10).
	RateBurst int `json:"rate_burst" mapstructure:"rate_burst" yaml:"rate_burst"`

	// HookTimeout bounds each plugin hook call (default: 5s).
	HookTimeout time.Duration `json:"hook_timeout" mapstructure:"hook_timeout" yaml:"hook_timeout"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		QueueSize:   1024,
		RateBurst:   10,
		HookTimeout: 5 * time.Second,
	}
}
