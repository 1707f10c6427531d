package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/AnyUserName/imgopt"
	"github.com/AnyUserName/imgopt/internal/encoder"
	"github.com/AnyUserName/imgopt/internal/profile"
)

// constraintFlags are shared by every command that optimizes images.
// Explicit flags override the profile, which overrides the loaded config.
type constraintFlags struct {
	profile     string
	maxBytes    string
	maxDiff     float64
	metric      string
	formats     []string
	concurrency int
	noCache     bool
}

func (f *constraintFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.profile, "profile", "p", "", "constraint preset: "+strings.Join(profile.Names(), ", "))
	fs.StringVar(&f.maxBytes, "max-bytes", "", `output size bound, e.g. 50000, "48KiB" or "1.5MB"`)
	fs.Float64Var(&f.maxDiff, "max-diff", 0, "perceptual difference bound (0 = lossless)")
	fs.StringVar(&f.metric, "metric", "", "difference metric: none, dssim, ssimulacra2 (default from config)")
	fs.StringSliceVar(&f.formats, "formats", nil, "candidate formats in preference order (default: all available)")
	fs.IntVarP(&f.concurrency, "concurrency", "c", 0, "parallel format searches per image (0 = config or NumCPU)")
	fs.BoolVar(&f.noCache, "no-cache", false, "bypass the result cache")
}

// request builds the constraint part of a Request.
func (f *constraintFlags) request(cmd *cobra.Command) (imgopt.Request, error) {
	req := imgopt.Request{
		Metric:       cfg.Metric,
		Formats:      cfg.Formats,
		Concurrency:  cfg.Concurrency,
		CacheEnabled: cfg.Cache.Enabled && !f.noCache,
	}
	if f.profile != "" {
		p, err := profile.Get(f.profile)
		if err != nil {
			return req, err
		}
		req.Formats = p.Available(encoder.NewRegistry().Available())
		req.Metric, req.MaxBytes, req.MaxDiff = p.Metric, p.MaxBytes, p.MaxDiff
	}

	fs := cmd.Flags()
	if f.maxBytes != "" {
		n, err := humanize.ParseBytes(f.maxBytes)
		if err != nil {
			return req, fmt.Errorf("--max-bytes: %w", err)
		}
		if n == 0 || n > 1<<62 {
			return req, fmt.Errorf("--max-bytes: must be positive, got %q", f.maxBytes)
		}
		req.MaxBytes = int64(n)
	}
	if fs.Changed("max-diff") {
		req.MaxDiff = imgopt.Diff(f.maxDiff)
	}
	if fs.Changed("metric") {
		req.Metric = f.metric
	}
	if fs.Changed("formats") {
		req.Formats = f.formats
	}
	if fs.Changed("concurrency") {
		req.Concurrency = f.concurrency
	}
	return req, nil
}

func describeConstraint(req imgopt.Request) string {
	s := ""
	if req.MaxBytes > 0 {
		s += "max_bytes=" + humanize.IBytes(uint64(req.MaxBytes))
	}
	if req.MaxDiff != nil {
		if s != "" {
			s += " "
		}
		s += fmt.Sprintf("max_diff=%g", *req.MaxDiff)
	}
	if s == "" {
		return "none (default quality)"
	}
	return s
}
