// Package batch optimizes every image under a directory with one shared
// optimizer and records the outcome in a report.
package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/AnyUserName/imgopt"
	"github.com/AnyUserName/imgopt/internal/hasher"
	"github.com/AnyUserName/imgopt/internal/report"
)

// Config holds all parameters for a batch run.
type Config struct {
	InputDir  string
	OutputDir string
	// Workers is the number of images optimized at once; 0 = NumCPU.
	Workers int
	// Template carries the constraint applied to every image. Its input
	// fields are ignored.
	Template imgopt.Request
	// NoRegressSize skips outputs that are not smaller than the original.
	NoRegressSize bool
}

// Runner orchestrates a batch run.
type Runner struct {
	cfg    Config
	opt    *imgopt.Optimizer
	logger *zap.Logger
}

// New creates a configured runner.
func New(cfg Config, opt *imgopt.Optimizer, logger *zap.Logger) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, opt: opt, logger: logger}
}

type itemResult struct {
	key   string
	asset report.Asset
}

// Run optimizes every image and returns the report. Per-image failures are
// recorded in the report; Run fails only when nothing could be processed.
func (r *Runner) Run() (*report.Report, error) {
	sources, err := ScanImages(r.cfg.InputDir, r.cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no images found in %s", r.cfg.InputDir)
	}
	r.logger.Info("found images", zap.Int("count", len(sources)), zap.Int("workers", r.cfg.Workers))

	results := make([]itemResult, len(sources))
	var wg sync.WaitGroup
	sem := make(chan struct{}, r.cfg.Workers)

	for i, src := range sources {
		wg.Add(1)
		go func(idx int, s Source) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx] = itemResult{key: s.Key, asset: r.process(s)}
		}(i, src)
	}
	wg.Wait()

	t := r.cfg.Template
	formats := t.Formats
	if len(formats) == 0 {
		formats = r.opt.Formats()
	}
	rep := report.New(report.Constraint{
		MaxBytes: t.MaxBytes,
		MaxDiff:  t.MaxDiff,
		Metric:   t.Metric,
		Formats:  formats,
	})
	rep.BuildInfo = &report.BuildInfo{
		Workers:     r.cfg.Workers,
		Concurrency: t.Concurrency,
		Version:     imgopt.Version(),
	}

	var failed int
	for _, res := range results {
		rep.Assets[res.key] = res.asset
		if res.asset.Error != "" {
			failed++
		}
	}
	rep.ComputeStats()

	if failed == len(sources) {
		return rep, fmt.Errorf("all %d images failed to process", failed)
	}
	if failed > 0 {
		r.logger.Warn("some images had errors", zap.Int("failed", failed), zap.Int("total", len(sources)))
	}
	return rep, nil
}

func (r *Runner) process(s Source) report.Asset {
	asset := report.Asset{
		Original: report.OriginalInfo{Path: s.RelPath, Format: s.Format, Size: s.Size},
	}
	log := r.logger.With(zap.String("key", s.Key))

	req, err := imgopt.RequestFromFile(s.AbsPath)
	if err != nil {
		asset.Error = err.Error()
		return asset
	}
	t := r.cfg.Template
	req.MaxBytes, req.MaxDiff, req.Metric = t.MaxBytes, t.MaxDiff, t.Metric
	req.Formats, req.Concurrency, req.CacheEnabled = t.Formats, t.Concurrency, t.CacheEnabled

	res, err := r.opt.Optimize(req)
	if err != nil {
		log.Warn("optimize failed", zap.Error(err))
		asset.Error = res.ErrorMessage
		return asset
	}
	asset.Passed, asset.Cached, asset.Reason = res.Passed, res.Cached, res.Reason

	if r.cfg.NoRegressSize && res.Size >= s.Size {
		log.Debug("skip: output not smaller than original",
			zap.Int64("output", res.Size), zap.Int64("original", s.Size))
		asset.Skipped = true
		return asset
	}

	hash := hasher.Sum(res.Output).Hex(16)
	keyDir := filepath.Dir(filepath.FromSlash(s.Key))
	fileName := fmt.Sprintf("%s.%s.%s", filepath.Base(filepath.FromSlash(s.Key)), hash, res.Extension())
	relPath := filepath.ToSlash(filepath.Join(keyDir, fileName))

	outPath := filepath.Join(r.cfg.OutputDir, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		asset.Error = fmt.Sprintf("create %s: %v", filepath.Dir(relPath), err)
		return asset
	}
	if err := res.Save(outPath); err != nil {
		asset.Error = err.Error()
		return asset
	}

	out := &report.Output{
		Format:  res.Format,
		Quality: res.Quality,
		Size:    res.Size,
		Hash:    hash,
		Path:    relPath,
	}
	if res.HasDiff {
		d := res.DiffValue
		out.Diff = &d
	}
	asset.Output = out
	log.Debug("optimized",
		zap.String("format", res.Format),
		zap.Int64("size", res.Size),
		zap.Bool("passed", res.Passed))
	return asset
}
