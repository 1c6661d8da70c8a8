package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/chainflow/internal/engine"
)

// Config holds settings read from the config file, CHAINFLOW_* environment
// variables and command flags, in increasing order of precedence.
type Config struct {
	LogLevel     string        `mapstructure:"log_level"`
	TickInterval time.Duration `mapstructure:"tick_interval"`
	DB           string        `mapstructure:"db"`
	MaxTicks     int           `mapstructure:"max_ticks"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		LogLevel:     "warn",
		TickInterval: engine.DefaultTickInterval,
	}
}

// flagKeys maps command flags onto config keys.
var flagKeys = map[string]string{
	"db":            "db",
	"max-ticks":     "max_ticks",
	"tick-interval": "tick_interval",
	"log-level":     "log_level",
}

// LoadConfig reads the configuration. An explicit path must exist;
// otherwise chainflow.yaml in the working directory is used when present.
func LoadConfig(path string, flags *pflag.FlagSet) (Config, error) {
	defaults := Defaults()
	v := viper.New()
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("tick_interval", defaults.TickInterval)
	v.SetDefault("db", defaults.DB)
	v.SetDefault("max_ticks", defaults.MaxTicks)

	v.SetEnvPrefix("chainflow")
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, err
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("chainflow")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.MaxTicks < 0 {
		return Config{}, fmt.Errorf("max_ticks must be non-negative, got %d", cfg.MaxTicks)
	}
	if _, err := parseLogLevel(cfg.LogLevel); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("invalid log_level %q", s)
	}
	return level, nil
}

// configureLogging installs the default slog logger. --verbose forces
// debug level.
func configureLogging(w io.Writer, cfg Config, verbose bool) {
	level, _ := parseLogLevel(cfg.LogLevel)
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
