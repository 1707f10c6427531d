// Package search drives one encoder through a bounded bisection over its
// quality range to satisfy a size and/or perceptual-difference bound.
package search

import (
	"fmt"
	"image"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/AnyUserName/imgopt/internal/encoder"
	"github.com/AnyUserName/imgopt/internal/metric"
)

// DefaultMaxSteps bounds the number of bisection probes per format.
// The two extreme probes are not counted.
const DefaultMaxSteps = 12

// Constraint is the per-request bound set the search tries to satisfy.
type Constraint struct {
	// MaxBytes is the size bound; 0 means unset.
	MaxBytes int64
	// MaxDiff is the diff bound, only meaningful when HasMaxDiff is set.
	MaxDiff    float64
	HasMaxDiff bool
	Metric     metric.Kind
}

// SizeSet reports whether a byte bound is active.
func (c Constraint) SizeSet() bool { return c.MaxBytes > 0 }

// DiffSet reports whether a diff bound is active.
func (c Constraint) DiffSet() bool { return c.HasMaxDiff }

// Candidate is one successful probe.
type Candidate struct {
	Format  string
	Quality int // native encoder parameter
	Index   int // fidelity index, higher is better
	Data    []byte
	Size    int64
	Diff    float64
	HasDiff bool

	MeetsSize bool
	MeetsDiff bool
}

// Satisfies reports whether every set bound holds.
func (c *Candidate) Satisfies() bool { return c.MeetsSize && c.MeetsDiff }

// Outcome is the per-format result of a search.
type Outcome struct {
	Format string
	// Best is the selected candidate: the winner when Satisfied, otherwise the
	// best-effort fallback. Nil only when every probe failed.
	Best      *Candidate
	Satisfied bool
	Probes    int
	Failures  int
	// Err is the last encode error; set when Best is nil.
	Err error
	// Reason explains why the format could not satisfy the constraint.
	Reason string
}

// Recorder receives probe and timing observations. A nil Recorder is ignored.
type Recorder interface {
	ObserveProbe(format, result string)
	ObserveSearch(format string, d time.Duration)
}

// Controller runs searches. The zero value is usable.
type Controller struct {
	MaxSteps int
	Logger   *zap.Logger
	Recorder Recorder
}

// Run searches enc for the candidate that best satisfies cons on src.
// Probes are strictly sequential.
func (c *Controller) Run(enc encoder.Encoder, src image.Image, cons Constraint) Outcome {
	start := time.Now()
	r := &run{
		enc:    enc,
		src:    src,
		cons:   cons,
		seen:   map[int]bool{},
		logger: c.logger().With(zap.String("format", enc.Format())),
		rec:    c.Recorder,
	}

	n := enc.QualityRange().Steps()
	switch {
	case !cons.SizeSet() && !cons.DiffSet():
		r.probe(encoder.Index(enc, enc.DefaultQuality()))
	case n <= 0:
		r.probe(0)
	case cons.DiffSet():
		r.diffMode(n, c.maxSteps())
	default:
		r.sizeMode(n, c.maxSteps())
	}

	out := r.outcome()
	if c.Recorder != nil {
		c.Recorder.ObserveSearch(enc.Format(), time.Since(start))
	}
	r.logger.Debug("search finished",
		zap.Bool("satisfied", out.Satisfied),
		zap.Int("probes", out.Probes),
		zap.Int("failures", out.Failures))
	return out
}

func (c *Controller) maxSteps() int {
	if c.MaxSteps <= 0 {
		return DefaultMaxSteps
	}
	return c.MaxSteps
}

func (c *Controller) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

type run struct {
	enc    encoder.Encoder
	src    image.Image
	cons   Constraint
	logger *zap.Logger
	rec    Recorder

	seen     map[int]bool
	probes   []*Candidate
	failures int
	lastErr  error
}

// diffMode looks for the lowest fidelity that still meets the diff bound.
// When even the highest fidelity misses it, the closest candidate is the
// most faithful one that fits max_bytes, so the byte bound drives the rest.
func (r *run) diffMode(n, maxSteps int) {
	lo := r.probe(0)
	if lo != nil && (lo.Satisfies() || !lo.MeetsSize) {
		// Either the cheapest setting already wins, or nothing can fit.
		return
	}
	hi := r.probe(n)
	if hi != nil && !hi.MeetsDiff {
		if r.cons.SizeSet() && !hi.MeetsSize {
			r.bisect(0, n, maxSteps, func(c *Candidate) bool { return !c.MeetsSize })
		}
		return
	}
	r.bisect(0, n, maxSteps, func(c *Candidate) bool { return c.MeetsDiff })
}

// sizeMode looks for the highest fidelity that still fits the byte bound.
func (r *run) sizeMode(n, maxSteps int) {
	lo := r.probe(0)
	if lo != nil && !lo.MeetsSize {
		return
	}
	hi := r.probe(n)
	if hi != nil && hi.MeetsSize {
		return
	}
	r.bisect(0, n, maxSteps, func(c *Candidate) bool { return !c.MeetsSize })
}

// bisect narrows [low, high] until it spans one step. When lowerHalf holds
// for the midpoint probe, high moves down to it; otherwise, or when the probe
// failed, low moves up.
func (r *run) bisect(low, high, maxSteps int, lowerHalf func(*Candidate) bool) {
	for step := 0; high-low > 1 && step < maxSteps; step++ {
		mid := low + (high-low)/2
		c := r.probe(mid)
		if c != nil && lowerHalf(c) {
			high = mid
		} else {
			low = mid
		}
	}
}

// probe encodes at fidelity index t and scores the result. Failed probes
// are logged and excluded.
func (r *run) probe(t int) *Candidate {
	if r.seen[t] {
		for _, c := range r.probes {
			if c.Index == t {
				return c
			}
		}
		return nil
	}
	r.seen[t] = true

	q := encoder.Param(r.enc, t)
	format := r.enc.Format()
	data, err := r.enc.Encode(r.src, q)
	if err != nil {
		r.fail(q, err)
		return nil
	}

	c := &Candidate{
		Format:  format,
		Quality: q,
		Index:   t,
		Data:    data,
		Size:    int64(len(data)),
	}
	c.MeetsSize = !r.cons.SizeSet() || c.Size <= r.cons.MaxBytes

	if r.cons.Metric.Active() {
		back, err := r.enc.Decode(data)
		if err != nil {
			r.fail(q, err)
			return nil
		}
		c.Diff = metric.Score(r.src, back, r.cons.Metric)
		c.HasDiff = true
		if math.IsInf(c.Diff, 1) {
			r.logger.Warn("round-trip dimensions differ",
				zap.Int("quality", q),
				zap.Stringer("source", r.src.Bounds()),
				zap.Stringer("decoded", back.Bounds()))
		}
	}
	c.MeetsDiff = !r.cons.DiffSet() || (c.HasDiff && c.Diff <= r.cons.MaxDiff)

	r.probes = append(r.probes, c)
	if r.rec != nil {
		result := "miss"
		if c.Satisfies() {
			result = "satisfied"
		}
		r.rec.ObserveProbe(format, result)
	}
	r.logger.Debug("probe",
		zap.Int("quality", q),
		zap.Int64("size", c.Size),
		zap.Float64("diff", c.Diff),
		zap.Bool("meets_size", c.MeetsSize),
		zap.Bool("meets_diff", c.MeetsDiff))
	return c
}

func (r *run) fail(q int, err error) {
	r.failures++
	r.lastErr = err
	if r.rec != nil {
		r.rec.ObserveProbe(r.enc.Format(), "error")
	}
	r.logger.Warn("probe failed", zap.Int("quality", q), zap.Error(err))
}

func (r *run) outcome() Outcome {
	out := Outcome{
		Format:   r.enc.Format(),
		Probes:   len(r.probes) + r.failures,
		Failures: r.failures,
	}
	if len(r.probes) == 0 {
		out.Err = r.lastErr
		out.Reason = fmt.Sprintf("%s: all %d encode attempts failed", out.Format, r.failures)
		if r.lastErr != nil {
			out.Reason += ": " + r.lastErr.Error()
		}
		return out
	}

	if best := r.bestSatisfying(); best != nil {
		out.Best = best
		out.Satisfied = true
		return out
	}
	out.Best = r.bestEffort()
	out.Reason = r.reason(out.Best)
	return out
}

func (r *run) bestSatisfying() *Candidate {
	var best *Candidate
	for _, c := range r.probes {
		if !c.Satisfies() {
			continue
		}
		if best == nil || r.preferSatisfying(c, best) {
			best = c
		}
	}
	return best
}

// preferSatisfying orders satisfying probes. With a diff bound the smallest
// output wins; under a byte bound alone the most faithful one does.
func (r *run) preferSatisfying(a, b *Candidate) bool {
	if r.cons.DiffSet() {
		if a.Size != b.Size {
			return a.Size < b.Size
		}
		if a.Diff != b.Diff {
			return a.Diff < b.Diff
		}
		return a.Index < b.Index
	}
	if a.Diff != b.Diff {
		return a.Diff < b.Diff
	}
	return a.Index > b.Index
}

// bestEffort picks the lowest-diff probe within the byte bound, falling back
// to the smallest probe overall.
func (r *run) bestEffort() *Candidate {
	var best *Candidate
	for _, c := range r.probes {
		if !c.MeetsSize {
			continue
		}
		if best == nil || c.Diff < best.Diff ||
			(c.Diff == best.Diff && (c.Size < best.Size || (c.Size == best.Size && c.Index < best.Index))) {
			best = c
		}
	}
	if best != nil {
		return best
	}
	for _, c := range r.probes {
		if best == nil || c.Size < best.Size || (c.Size == best.Size && c.Index < best.Index) {
			best = c
		}
	}
	return best
}

func (r *run) reason(c *Candidate) string {
	switch {
	case !c.MeetsSize:
		return fmt.Sprintf("%s: smallest output %d bytes exceeds max_bytes %d", c.Format, c.Size, r.cons.MaxBytes)
	case !c.MeetsDiff:
		return fmt.Sprintf("%s: best diff %.6g exceeds max_diff %.6g within the size bound", c.Format, c.Diff, r.cons.MaxDiff)
	}
	return fmt.Sprintf("%s: constraint not satisfied", c.Format)
}
