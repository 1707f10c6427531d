package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap/zapcore"

	"github.com/AnyUserName/imgopt/internal/metric"
)

const appName = "imgopt"

// Config is the top-level configuration. Every field has a safe default so
// a missing config file is not an error.
type Config struct {
	Concurrency   int      `koanf:"concurrency"` // 0 = runtime.NumCPU()
	Formats       []string `koanf:"formats"`     // empty = every available format
	Metric        string   `koanf:"metric"`
	MaxSteps      int      `koanf:"max_steps"`       // bisection probes per format
	MaxInputBytes int64    `koanf:"max_input_bytes"` // 0 = no limit
	LogLevel      string   `koanf:"log_level"`       // "debug", "info", "warn", "error"

	Cache CacheConfig `koanf:"cache"`
}

// CacheConfig controls the result cache.
type CacheConfig struct {
	Enabled    bool   `koanf:"enabled"`
	MaxEntries int    `koanf:"max_entries"` // 0 = unbounded
	MaxBytes   int64  `koanf:"max_bytes"`   // in-memory tier only; 0 = unbounded
	Persistent bool   `koanf:"persistent"`  // add the SQLite tier
	Path       string `koanf:"path"`        // empty = $XDG_CACHE_HOME/imgopt/cache.db
}

// Default returns a Config populated with production defaults.
func Default() Config {
	return Config{
		Metric:        string(metric.Default),
		MaxSteps:      12,
		MaxInputBytes: 256 << 20,
		LogLevel:      "info",
		Cache: CacheConfig{
			Enabled:    true,
			MaxEntries: 512,
			MaxBytes:   256 << 20,
		},
	}
}

// DefaultPaths lists config files in load order; later files win.
func DefaultPaths() []string {
	return []string{
		filepath.Join(xdg.ConfigHome, appName, "config.toml"),
		appName + ".toml",
	}
}

// Load reads the given TOML files over the defaults, skipping files that do
// not exist. With no paths, DefaultPaths is used.
func Load(paths ...string) (Config, error) {
	if len(paths) == 0 {
		paths = DefaultPaths()
	}

	k := koanf.New(".")
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg.Cache.Path = expandPath(cfg.Cache.Path)

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate returns an error if the configuration is inconsistent.
func Validate(c Config) error {
	var errs []error
	if c.Concurrency < 0 {
		errs = append(errs, errors.New("config: concurrency must not be negative"))
	}
	if _, err := metric.Parse(c.Metric); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}
	if c.MaxSteps < 1 || c.MaxSteps > 64 {
		errs = append(errs, errors.New("config: max_steps must be between 1 and 64"))
	}
	if c.MaxInputBytes < 0 {
		errs = append(errs, errors.New("config: max_input_bytes must not be negative"))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("config: log_level: %w", err))
	}
	if c.Cache.MaxEntries < 0 || c.Cache.MaxBytes < 0 {
		errs = append(errs, errors.New("config: cache limits must not be negative"))
	}
	return errors.Join(errs...)
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
