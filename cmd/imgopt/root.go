package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/AnyUserName/imgopt"
	"github.com/AnyUserName/imgopt/internal/cache"
	"github.com/AnyUserName/imgopt/internal/config"
	"github.com/AnyUserName/imgopt/internal/metrics"
)

var (
	verbose     bool
	configPath  string
	showMetrics bool

	cfg      config.Config
	logger   = zap.NewNop()
	recorder *metrics.Recorder
)

var rootCmd = &cobra.Command{
	Use:   "imgopt",
	Short: "Constrained image re-encoding optimizer",
	Long: `imgopt re-encodes an image into the smallest AVIF, WebP, JPEG or PNG
that fits a byte budget and/or stays within a perceptual difference bound.

Each candidate format is searched independently by bisecting its quality
parameter; the smallest output that satisfies every bound wins. When no
format can satisfy the bounds, the closest candidate is still produced and
the verdict explains why.`,
	Version:            imgopt.Version(),
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/imgopt/config.toml, then ./imgopt.toml)")
	rootCmd.PersistentFlags().BoolVar(&showMetrics, "metrics", false, "print Prometheus metrics to stderr on exit")
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"imgopt %s (contract v%d, %s/%s, %s)\n",
		imgopt.Version(), imgopt.ContractVersion, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))
}

func setup(_ *cobra.Command, _ []string) error {
	var paths []string
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		paths = []string{configPath}
	}
	var err error
	if cfg, err = config.Load(paths...); err != nil {
		return err
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	if logger, err = newLogger(level); err != nil {
		return err
	}
	if showMetrics {
		recorder = metrics.New()
	}
	return nil
}

func teardown(cmd *cobra.Command, _ []string) error {
	defer func() { _ = logger.Sync() }()
	if showMetrics {
		return recorder.WriteText(cmd.ErrOrStderr())
	}
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Encoding = "console"
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.Sampling = nil
	zc.DisableStacktrace = true
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}

// newOptimizer builds an optimizer from the loaded config.
func newOptimizer() (*imgopt.Optimizer, error) {
	store, err := openCache()
	if err != nil {
		return nil, err
	}
	return imgopt.New(
		imgopt.WithLogger(logger),
		imgopt.WithCache(store),
		imgopt.WithMetrics(recorder),
		imgopt.WithMaxSteps(cfg.MaxSteps),
		imgopt.WithMaxInputBytes(cfg.MaxInputBytes),
	), nil
}

func openCache() (cache.Store, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	mem := cache.NewMemory(cfg.Cache.MaxEntries, cfg.Cache.MaxBytes)
	if !cfg.Cache.Persistent {
		return mem, nil
	}

	path := cfg.Cache.Path
	if path == "" {
		var err error
		if path, err = cache.DefaultPath(); err != nil {
			return nil, fmt.Errorf("cache path: %w", err)
		}
	}
	db, err := cache.OpenSQLite(path, cfg.Cache.MaxEntries)
	if err != nil {
		return nil, err
	}
	logger.Debug("persistent cache opened", zap.String("path", path), zap.Int("entries", db.Len()))
	return &cache.Tiered{Front: mem, Back: db}, nil
}
