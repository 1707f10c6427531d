package imgopt

import (
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/AnyUserName/imgopt/internal/cache"
	"github.com/AnyUserName/imgopt/internal/decoder"
	"github.com/AnyUserName/imgopt/internal/encoder"
	apperrors "github.com/AnyUserName/imgopt/internal/errors"
	"github.com/AnyUserName/imgopt/internal/metrics"
	"github.com/AnyUserName/imgopt/internal/search"
	"github.com/AnyUserName/imgopt/internal/selector"
)

// Default in-memory cache limits.
const (
	DefaultCacheEntries = 512
	DefaultCacheBytes   = 256 << 20
)

// Optimizer serves Requests. It is safe for concurrent use; the result cache
// is the only state shared between requests.
type Optimizer struct {
	logger        *zap.Logger
	cache         cache.Store
	metrics       *metrics.Recorder
	registry      *encoder.Registry
	maxSteps      int
	maxInputBytes int64

	flight singleflight.Group
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *Optimizer) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithCache replaces the default in-memory result cache. A nil store
// disables caching regardless of Request.CacheEnabled.
func WithCache(s cache.Store) Option {
	return func(o *Optimizer) { o.cache = s }
}

// WithMetrics records request, probe and cache observations on r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(o *Optimizer) { o.metrics = r }
}

// WithRegistry replaces the built-in encoders.
func WithRegistry(r *encoder.Registry) Option {
	return func(o *Optimizer) {
		if r != nil {
			o.registry = r
		}
	}
}

// WithMaxSteps bounds the bisection probes per format.
func WithMaxSteps(n int) Option {
	return func(o *Optimizer) { o.maxSteps = n }
}

// WithMaxInputBytes rejects inputs larger than n bytes; 0 disables the check.
func WithMaxInputBytes(n int64) Option {
	return func(o *Optimizer) { o.maxInputBytes = n }
}

// New creates an Optimizer with every built-in encoder available in this
// build and a bounded in-memory result cache.
func New(opts ...Option) *Optimizer {
	o := &Optimizer{
		logger:   zap.NewNop(),
		cache:    cache.NewMemory(DefaultCacheEntries, DefaultCacheBytes),
		maxSteps: search.DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = encoder.NewRegistry()
	}
	return o
}

// Formats lists the output formats available in this build, in default
// preference order.
func (o *Optimizer) Formats() []string { return o.registry.Available() }

// Close releases the result cache.
func (o *Optimizer) Close() error {
	if o.cache == nil {
		return nil
	}
	return o.cache.Close()
}

// Optimize runs one request. The returned Result is never nil. On a hard
// failure the error is also returned and Result.ErrorMessage holds its text;
// an unattainable constraint is not an error (see Result.Passed).
func (o *Optimizer) Optimize(req Request) (*Result, error) {
	start := time.Now()

	kind, err := req.validate()
	if err != nil {
		return o.reject(err)
	}
	encs, err := o.registry.Resolve(req.Formats)
	if err != nil {
		return o.reject(err)
	}
	data, err := req.readInput(o.maxInputBytes)
	if err != nil {
		return o.reject(err)
	}

	cons := search.Constraint{MaxBytes: req.MaxBytes, Metric: kind}
	if req.MaxDiff != nil {
		cons.MaxDiff, cons.HasMaxDiff = *req.MaxDiff, true
	}
	concurrency := req.Concurrency
	if concurrency < 0 {
		concurrency = 1
	}

	if !req.CacheEnabled || o.cache == nil {
		o.metrics.ObserveCache(metrics.CacheDisabled)
		res, err := o.compute(data, encs, cons, concurrency)
		withExtension(res, encs)
		o.finish(res, err, start, "")
		return res, err
	}

	fp := cache.NewFingerprint(data, cache.Params{
		Formats:  formatNames(encs),
		Metric:   string(kind),
		MaxBytes: req.MaxBytes,
		MaxDiff:  req.MaxDiff,
	})
	if res := o.lookup(fp); res != nil {
		withExtension(res, encs)
		o.finish(res, nil, start, fp)
		return res, nil
	}

	v, err, _ := o.flight.Do(string(fp), func() (any, error) {
		res, err := o.compute(data, encs, cons, concurrency)
		if err == nil {
			o.store(fp, res)
		}
		return res, err
	})
	// Callers collapsed onto one computation each get their own buffer.
	res := v.(*Result).clone()
	withExtension(res, encs)
	o.finish(res, err, start, fp)
	return res, err
}

func (o *Optimizer) compute(data []byte, encs []encoder.Encoder, cons search.Constraint, concurrency int) (*Result, error) {
	src, err := decoder.Decode(data)
	if err != nil {
		return failure(err), err
	}
	o.logger.Debug("decoded input",
		zap.String("container", src.Format),
		zap.Int("width", src.Width),
		zap.Int("height", src.Height),
		zap.String("layout", string(src.Layout)))

	sel := &selector.Selector{
		Controller: &search.Controller{
			MaxSteps: o.maxSteps,
			Logger:   o.logger,
			Recorder: o.metrics,
		},
		Concurrency: concurrency,
		Logger:      o.logger,
	}
	out := sel.Select(encs, src.Pixels, cons)
	res := assemble(out)
	if out.Err != nil {
		return res, out.Err
	}
	return res, nil
}

func (o *Optimizer) lookup(fp cache.Fingerprint) *Result {
	e, ok, err := o.cache.Get(fp)
	switch {
	case err != nil:
		o.metrics.ObserveCache(metrics.CacheError)
		o.logger.Warn("cache lookup failed",
			zap.String("fingerprint", fp.Short()),
			zap.Error(apperrors.New(apperrors.CategoryCache, "get", err)))
		return nil
	case !ok:
		o.metrics.ObserveCache(metrics.CacheMiss)
		return nil
	}
	o.metrics.ObserveCache(metrics.CacheHit)
	return fromEntry(e)
}

func (o *Optimizer) store(fp cache.Fingerprint, res *Result) {
	if err := o.cache.Put(fp, res.toEntry()); err != nil {
		o.logger.Warn("cache store failed",
			zap.String("fingerprint", fp.Short()),
			zap.Error(apperrors.New(apperrors.CategoryCache, "put", err)))
	}
}

func (o *Optimizer) reject(err error) (*Result, error) {
	o.metrics.ObserveRequest(metrics.OutcomeRejected)
	o.logger.Debug("request rejected", zap.Error(err))
	return failure(err), err
}

func (o *Optimizer) finish(res *Result, err error, start time.Time, fp cache.Fingerprint) {
	outcome := metrics.OutcomeFailed
	switch {
	case err != nil:
		outcome = metrics.OutcomeError
	case res.Passed:
		outcome = metrics.OutcomePassed
	}
	o.metrics.ObserveRequest(outcome)

	fields := []zap.Field{
		zap.String("outcome", outcome),
		zap.String("format", res.Format),
		zap.Int("quality", res.Quality),
		zap.Int64("size", res.Size),
		zap.Bool("cached", res.Cached),
		zap.Duration("elapsed", time.Since(start)),
	}
	if res.HasDiff {
		fields = append(fields, zap.Float64("diff", res.DiffValue))
	}
	if fp != "" {
		fields = append(fields, zap.String("fingerprint", fp.Short()))
	}
	if err != nil {
		o.logger.Info("optimization failed", append(fields, zap.Error(err))...)
		return
	}
	o.logger.Debug("optimization finished", fields...)
}

// withExtension takes the file extension from the encoder that produced res.
func withExtension(res *Result, encs []encoder.Encoder) {
	for _, e := range encs {
		if e.Format() == res.Format {
			res.ext = e.Extension()
			return
		}
	}
}

func formatNames(encs []encoder.Encoder) []string {
	names := make([]string, len(encs))
	for i, e := range encs {
		names[i] = e.Format()
	}
	return names
}
