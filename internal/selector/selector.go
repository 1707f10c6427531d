// Package selector fans the constraint search out across candidate formats
// and picks the winner once every format has finished.
package selector

import (
	"fmt"
	"image"
	"runtime"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/AnyUserName/imgopt/internal/encoder"
	apperrors "github.com/AnyUserName/imgopt/internal/errors"
	"github.com/AnyUserName/imgopt/internal/search"
)

// Selection is the cross-format result.
type Selection struct {
	// Winner is the chosen candidate, or nil on hard failure.
	Winner *search.Candidate
	// Passed is true iff Winner satisfies every set bound.
	Passed bool
	// Outcomes holds one entry per requested format, in request order.
	Outcomes []search.Outcome
	// Reason explains a best-effort pick; empty when Passed.
	Reason string
	// Err is set when no format produced any output.
	Err error
}

// Selector runs one search per format on a bounded pool.
type Selector struct {
	Controller  *search.Controller
	Concurrency int
	Logger      *zap.Logger
}

func (s *Selector) workers(n int) int {
	w := s.Concurrency
	if w <= 0 {
		w = runtime.NumCPU()
	}
	return max(1, min(w, n))
}

// Select searches every encoder in encs against src and returns the winner.
// The pick depends only on the collected outcomes, never on completion order.
func (s *Selector) Select(encs []encoder.Encoder, src image.Image, cons search.Constraint) Selection {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctrl := s.Controller
	if ctrl == nil {
		ctrl = &search.Controller{Logger: logger}
	}

	outcomes := make([]search.Outcome, len(encs))
	var g errgroup.Group
	g.SetLimit(s.workers(len(encs)))
	for i, enc := range encs {
		g.Go(func() error {
			outcomes[i] = ctrl.Run(enc, src, cons)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures live in the outcomes

	sel := pick(outcomes)
	if sel.Winner != nil {
		logger.Debug("format selected",
			zap.String("format", sel.Winner.Format),
			zap.Int("quality", sel.Winner.Quality),
			zap.Int64("size", sel.Winner.Size),
			zap.Bool("passed", sel.Passed))
	} else {
		logger.Warn("no format produced output", zap.Error(sel.Err))
	}
	return sel
}

func pick(outcomes []search.Outcome) Selection {
	sel := Selection{Outcomes: outcomes}

	// Satisfied formats: smallest output, earlier request position on ties.
	for i := range outcomes {
		o := &outcomes[i]
		if o.Satisfied && (sel.Winner == nil || o.Best.Size < sel.Winner.Size) {
			sel.Winner = o.Best
		}
	}
	if sel.Winner != nil {
		sel.Passed = true
		return sel
	}

	var reasons []string
	for i := range outcomes {
		o := &outcomes[i]
		if o.Reason != "" {
			reasons = append(reasons, o.Reason)
		}
		if o.Best != nil && (sel.Winner == nil || o.Best.Size < sel.Winner.Size) {
			sel.Winner = o.Best
		}
	}
	sel.Reason = strings.Join(reasons, "; ")
	if sel.Winner == nil {
		sel.Err = apperrors.New(apperrors.CategoryEncode, "select",
			fmt.Errorf("%w: %s", apperrors.ErrNoOutput, sel.Reason))
		return sel
	}
	sel.Reason = fmt.Sprintf("no format satisfied the constraints; returning closest %s candidate (%s)",
		sel.Winner.Format, sel.Reason)
	return sel
}
