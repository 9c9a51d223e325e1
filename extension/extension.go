// Package extension provides the Forge extension adapter for Stokvel.
//
// It implements the forge.Extension interface to integrate the Stokvel
// ledger into a Forge application with DI registration and lifecycle
// management. Both the *stokvel.Ledger and the *host.Executor that
// serializes its mutations are provided to the container.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.stokvel" or "stokvel" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/stokvel"
	"github.com/xraph/stokvel/host"
	"github.com/xraph/stokvel/store"
	"github.com/xraph/stokvel/store/memory"
	"github.com/xraph/stokvel/types"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "stokvel"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Fixed-supply Stokvel token ledger"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the Stokvel ledger as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *stokvel.Ledger
	executor   *host.Executor
	store      store.Store
	ledgerOpts []stokvel.Option
}

// New creates a new Stokvel Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Ledger instance.
// This is nil until Register is called.
func (e *Extension) Engine() *stokvel.Ledger { return e.engine }

// Executor returns the executor that serializes ledger mutations.
// This is nil until Register is called.
func (e *Extension) Executor() *host.Executor { return e.executor }

// Register implements [forge.Extension]. It loads configuration,
// initializes the ledger and executor, and registers them in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}
	if _, err := e.creator(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	e.engine = stokvel.New(e.store, e.buildLedgerOpts()...)
	e.executor = host.NewExecutor(e.engine,
		host.WithQueueSize(e.config.QueueSize),
		host.WithRateLimit(e.config.RateLimit, e.config.RateBurst),
	)

	if err := vessel.Provide(fapp.Container(), func() (*stokvel.Ledger, error) {
		return e.engine, nil
	}); err != nil {
		return err
	}
	return vessel.Provide(fapp.Container(), func() (*host.Executor, error) {
		return e.executor, nil
	})
}

// Start implements [forge.Extension]. It loads committed state, starts the
// executor and, when a creator is configured, deploys the token if the
// store holds no deployment yet.
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("stokvel: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}
	if err := e.executor.Start(ctx); err != nil {
		return errors.Join(err, e.engine.Stop())
	}

	if err := e.autoDeploy(ctx); err != nil {
		return e.abortStart(err)
	}

	e.MarkStarted()
	return nil
}

// abortStart stops the executor and ledger after a failed Start so the
// store is not left open.
func (e *Extension) abortStart(err error) error {
	_ = e.executor.Stop() //nolint:errcheck // Stop never fails
	return errors.Join(err, e.engine.Stop())
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.executor != nil {
		_ = e.executor.Stop() //nolint:errcheck // Stop never fails
	}
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("stokvel: store not initialized")
	}
	return e.store.Ping(ctx)
}

func (e *Extension) autoDeploy(ctx context.Context) error {
	if e.config.DisableAutoDeploy || e.engine.Deployed() {
		return nil
	}
	creator, err := e.creator()
	if err != nil || types.IsZeroAddress(creator) {
		return err
	}

	rcpt, err := e.executor.Submit(ctx, host.Deploy(creator))
	if err != nil {
		return fmt.Errorf("stokvel: deploy: %w", err)
	}
	e.Logger().Info("stokvel: token deployed",
		forge.F("creator", creator.Hex()),
		forge.F("operation_id", rcpt.OperationID.String()),
	)
	return nil
}

// creator parses the configured creator. It returns the zero address when
// none is configured.
func (e *Extension) creator() (types.Address, error) {
	if e.config.Creator == "" {
		return types.ZeroAddress, nil
	}
	addr, err := types.ParseAddress(e.config.Creator)
	if err != nil {
		return types.ZeroAddress, fmt.Errorf("stokvel: creator: %w", err)
	}
	return addr, nil
}

// buildLedgerOpts constructs stokvel.Option values from the resolved config.
func (e *Extension) buildLedgerOpts() []stokvel.Option {
	opts := make([]stokvel.Option, 0, len(e.ledgerOpts)+1)

	if e.config.HookTimeout > 0 {
		opts = append(opts, stokvel.WithHookTimeout(e.config.HookTimeout))
	}

	// Append any pass-through ledger options.
	opts = append(opts, e.ledgerOpts...)

	return opts
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("stokvel: configuration is required but not found in config files; " +
				"ensure 'extensions.stokvel' or 'stokvel' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("stokvel: configuration loaded",
		forge.F("creator", e.config.Creator),
		forge.F("disable_auto_deploy", e.config.DisableAutoDeploy),
		forge.F("queue_size", e.config.QueueSize),
		forge.F("rate_limit", e.config.RateLimit),
		forge.F("hook_timeout", e.config.HookTimeout),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.stokvel", "stokvel"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("stokvel: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("stokvel: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.QueueSize == 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaults.RateBurst
	}
	if cfg.HookTimeout == 0 {
		cfg.HookTimeout = defaults.HookTimeout
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableAutoDeploy {
		yamlConfig.DisableAutoDeploy = true
	}
	if yamlConfig.Creator == "" {
		yamlConfig.Creator = programmaticConfig.Creator
	}
	if yamlConfig.QueueSize == 0 {
		yamlConfig.QueueSize = programmaticConfig.QueueSize
	}
	if yamlConfig.RateLimit == 0 {
		yamlConfig.RateLimit = programmaticConfig.RateLimit
	}
	if yamlConfig.RateBurst == 0 {
		yamlConfig.RateBurst = programmaticConfig.RateBurst
	}
	if yamlConfig.HookTimeout == 0 {
		yamlConfig.HookTimeout = programmaticConfig.HookTimeout
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
