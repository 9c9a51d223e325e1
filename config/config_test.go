package config_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/stokvel/config"
	"github.com/xraph/stokvel/types"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stokvel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)

	_, ok, err := cfg.Token.CreatorAddress()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadFileKeepsUnsetDefaults(t *testing.T) {
	path := writeFile(t, `
store:
  driver: sqlite
  path: /var/lib/stokvel/stokvel.db
token:
  creator: "0x00000000000000000000000000000000000000C0"
executor:
  rateLimit: 5
  rateBurst: 10
hookTimeout: 2s
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, config.DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "/var/lib/stokvel/stokvel.db", cfg.Store.Path)
	assert.Equal(t, 5.0, cfg.Executor.RateLimit)
	assert.Equal(t, 10, cfg.Executor.RateBurst)
	assert.Equal(t, 1024, cfg.Executor.QueueSize)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 2*time.Second, cfg.HookTimeout)

	creator, ok, err := cfg.Token.CreatorAddress()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, types.MustParseAddress("0x00000000000000000000000000000000000000c0"), creator)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "store:\n  driver: sqlite\n  path: a.db\n")
	t.Setenv("STOKVEL_STORE_DRIVER", "BOLT")
	t.Setenv("STOKVEL_STORE_PATH", "b.bolt")
	t.Setenv("STOKVEL_LOG_FORMAT", "json")
	t.Setenv("STOKVEL_QUEUE_SIZE", "not-a-number")
	t.Setenv("STOKVEL_METRICS_ENABLED", "true")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, config.DriverBolt, cfg.Store.Driver)
	assert.Equal(t, "b.bolt", cfg.Store.Path)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 1024, cfg.Executor.QueueSize)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *config.Config)
		errMsg string
	}{
		{"unknown driver", func(c *config.Config) { c.Store.Driver = "redis" }, "unknown store driver"},
		{"sqlite without path", func(c *config.Config) { c.Store.Driver = config.DriverSQLite }, "store.path"},
		{"postgres without dsn", func(c *config.Config) { c.Store.Driver = config.DriverPostgres }, "store.dsn"},
		{"bad creator", func(c *config.Config) { c.Token.Creator = "0x123" }, "token.creator"},
		{"zero creator", func(c *config.Config) { c.Token.Creator = types.ZeroAddress.Hex() }, "zero address"},
		{"bad level", func(c *config.Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *config.Config) { c.Log.Format = "xml" }, "log.format"},
		{"rate without burst", func(c *config.Config) { c.Executor.RateLimit = 1 }, "rateBurst"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, config.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := config.NewLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "caller", "0xc0")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.HasPrefix(out, "{"))
	assert.Contains(t, out, `"caller":"0xc0"`)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	for _, c := range []config.StoreConfig{
		{Driver: config.DriverMemory},
		{Driver: config.DriverSQLite, Path: filepath.Join(dir, "stokvel.db")},
		{Driver: config.DriverBolt, Path: filepath.Join(dir, "stokvel.bolt")},
	} {
		t.Run(c.Driver, func(t *testing.T) {
			s, err := config.OpenStore(ctx, c)
			require.NoError(t, err)
			require.NoError(t, s.Migrate(ctx))
			require.NoError(t, s.Ping(ctx))
			require.NoError(t, s.Close())
		})
	}

	_, err := config.OpenStore(ctx, config.StoreConfig{Driver: "redis"})
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}
