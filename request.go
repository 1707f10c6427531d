package imgopt

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"

	apperrors "github.com/AnyUserName/imgopt/internal/errors"
	"github.com/AnyUserName/imgopt/internal/metric"
)

// Request describes one optimization. Exactly one of Input or Reader must be
// set. At least one of MaxBytes or MaxDiff should be; with neither, every
// format is encoded once at its default quality.
type Request struct {
	// Version is the contract version; 0 means ContractVersion.
	Version int

	Input  []byte
	Reader io.Reader

	// MaxBytes is the output size bound; 0 means unset.
	MaxBytes int64
	// MaxDiff is the perceptual difference bound; nil means unset.
	MaxDiff *float64
	// Metric is "none", "dssim" or "ssimulacra2"; empty means dssim.
	Metric string
	// Formats lists candidate formats in preference order; empty means all
	// formats available in this build.
	Formats []string
	// Concurrency caps parallel format searches; 0 means runtime.NumCPU().
	Concurrency int

	CacheEnabled bool
}

// RequestFromFile returns a Request whose Input is the content of path.
func RequestFromFile(path string) (Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Request{}, apperrors.New(apperrors.CategoryInput, "read", err)
	}
	return Request{Input: data}, nil
}

// Diff returns a pointer to d, for Request.MaxDiff literals.
func Diff(d float64) *float64 { return &d }

func invalid(format string, args ...any) error {
	return apperrors.New(apperrors.CategoryInput, "validate",
		fmt.Errorf("%w: "+format, append([]any{apperrors.ErrInvalidRequest}, args...)...))
}

// validate checks everything that does not need the input bytes and returns
// the parsed metric.
func (r *Request) validate() (metric.Kind, error) {
	if r.Version != 0 && r.Version != ContractVersion {
		return "", invalid("unsupported contract version %d (want %d)", r.Version, ContractVersion)
	}
	if r.Input != nil && r.Reader != nil {
		return "", invalid("both Input and Reader are set")
	}
	if r.MaxBytes < 0 {
		return "", invalid("max_bytes must be positive, got %d", r.MaxBytes)
	}
	if r.MaxDiff != nil && (math.IsNaN(*r.MaxDiff) || *r.MaxDiff < 0) {
		return "", invalid("max_diff must be a non-negative number, got %v", *r.MaxDiff)
	}
	kind, err := metric.Parse(r.Metric)
	if err != nil {
		return "", invalid("%v", err)
	}
	if r.MaxDiff != nil && !kind.Active() {
		return "", invalid("max_diff requires a metric other than %q", metric.None)
	}
	return kind, nil
}

// readInput returns the request bytes, enforcing limit when positive.
func (r *Request) readInput(limit int64) ([]byte, error) {
	data := r.Input
	if r.Reader != nil {
		src := r.Reader
		if limit > 0 {
			src = io.LimitReader(src, limit+1)
		}
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(src); err != nil {
			return nil, apperrors.New(apperrors.CategoryInput, "read", err)
		}
		data = buf.Bytes()
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, apperrors.New(apperrors.CategoryInput, "read",
			fmt.Errorf("%w: more than %d bytes", apperrors.ErrInputTooLarge, limit))
	}
	return data, nil
}
