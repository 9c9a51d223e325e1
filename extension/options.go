package extension

import (
	"time"

	"github.com/xraph/stokvel"
	"github.com/xraph/stokvel/plugin"
	"github.com/xraph/stokvel/store"
)

// Option configures the Stokvel Forge extension.
type Option func(*Extension)

// WithStore sets the store for the ledger. Defaults to an in-memory store.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithLedgerOption passes a stokvel.Option through to the underlying ledger.
func WithLedgerOption(opt stokvel.Option) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, opt)
	}
}

// WithPlugin registers a ledger plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, stokvel.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithCreator sets the genesis creator address.
func WithCreator(hex string) Option {
	return func(e *Extension) { e.config.Creator = hex }
}

// WithDisableAutoDeploy keeps Start from deploying the token.
func WithDisableAutoDeploy() Option {
	return func(e *Extension) { e.config.DisableAutoDeploy = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithQueueSize sets the executor queue size.
func WithQueueSize(n int) Option {
	return func(e *Extension) { e.config.QueueSize = n }
}

// WithRateLimit throttles each caller to rps operations per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(e *Extension) {
		e.config.RateLimit = rps
		e.config.RateBurst = burst
	}
}

// WithHookTimeout bounds each plugin hook call.
func WithHookTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.HookTimeout = d }
}
