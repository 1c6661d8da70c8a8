package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chainflow/internal/engine"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chainflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func engineFlagSet(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	defaults := Defaults()
	flags.String("db", defaults.DB, "")
	flags.Int("max-ticks", defaults.MaxTicks, "")
	flags.Duration("tick-interval", defaults.TickInterval, "")
	flags.String("log-level", defaults.LogLevel, "")
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
	assert.Equal(t, engine.DefaultTickInterval, cfg.TickInterval)
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, "log_level: debug\ntick_interval: 50ms\ndb: /tmp/chains.db\nmax_ticks: 5\n")

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, Config{
		LogLevel:     "debug",
		TickInterval: 50 * time.Millisecond,
		DB:           "/tmp/chains.db",
		MaxTicks:     5,
	}, cfg)
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "db: from-file.db\nmax_ticks: 5\n")

	cfg, err := LoadConfig(path, engineFlagSet(t, "--max-ticks", "9", "--tick-interval", "2ms"))
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.MaxTicks)
	assert.Equal(t, 2*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, "from-file.db", cfg.DB, "unchanged flags keep the file value")
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("CHAINFLOW_MAX_TICKS", "7")
	t.Setenv("CHAINFLOW_DB", "env.db")

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxTicks)
	assert.Equal(t, "env.db", cfg.DB)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.ErrorContains(t, err, "reading config")

	_, err = LoadConfig(writeConfig(t, "log_level: loud\n"), nil)
	assert.ErrorContains(t, err, `invalid log_level "loud"`)

	_, err = LoadConfig(writeConfig(t, "max_ticks: -1\n"), nil)
	assert.ErrorContains(t, err, "max_ticks must be non-negative")
}

func TestParseLogLevel(t *testing.T) {
	for _, s := range []string{"debug", "INFO", "warn", "error"} {
		_, err := parseLogLevel(s)
		assert.NoError(t, err, s)
	}
	_, err := parseLogLevel("verbose")
	assert.Error(t, err)
}
