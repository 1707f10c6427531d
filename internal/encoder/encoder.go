package encoder

import (
	"fmt"
	"image"

	apperrors "github.com/AnyUserName/imgopt/internal/errors"
)

// Output formats.
const (
	FormatAVIF = "avif"
	FormatWebP = "webp"
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
)

// Direction tells the search which way the native quality parameter moves
// fidelity.
type Direction int

const (
	// HigherIsBetter: raising the parameter raises fidelity and size.
	HigherIsBetter Direction = iota
	// LowerIsBetter: raising the parameter lowers fidelity (quantisers).
	LowerIsBetter
)

func (d Direction) String() string {
	if d == LowerIsBetter {
		return "lower-is-better"
	}
	return "higher-is-better"
}

// Range is the closed range of a quality parameter and its granularity.
type Range struct {
	Min, Max, Step int
}

// Steps is the number of granularity steps between Min and Max.
func (r Range) Steps() int {
	step := r.Step
	if step <= 0 {
		step = 1
	}
	return (r.Max - r.Min) / step
}

// Contains reports whether q is a valid parameter value.
func (r Range) Contains(q int) bool { return q >= r.Min && q <= r.Max }

// Encoder encodes an image to a specific format.
type Encoder interface {
	// Format returns the output format name (e.g. "jpeg", "webp", "avif", "png").
	Format() string

	// Extension returns the file extension without dot.
	Extension() string

	// Available returns true if the encoder is ready to use.
	// External encoders (avifenc) and cgo-backed ones may be missing.
	Available() bool

	// QualityRange is the valid range of the native quality parameter.
	QualityRange() Range

	// Direction is how the native parameter relates to fidelity.
	Direction() Direction

	// DefaultQuality is used when no bound drives the search.
	DefaultQuality() int

	// Encode converts the image to bytes at the given native quality.
	Encode(img image.Image, quality int) ([]byte, error)

	// Decode reads back bytes produced by Encode so they can be scored.
	Decode(data []byte) (image.Image, error)
}

// Param maps a fidelity index t in [0, Range.Steps()] to the encoder's native
// parameter. Increasing t always increases fidelity.
func Param(e Encoder, t int) int {
	r := e.QualityRange()
	step := max(r.Step, 1)
	t = min(max(t, 0), r.Steps())
	if e.Direction() == LowerIsBetter {
		return r.Max - t*step
	}
	return r.Min + t*step
}

// Index is the inverse of Param, rounding toward lower fidelity.
func Index(e Encoder, quality int) int {
	r := e.QualityRange()
	step := max(r.Step, 1)
	quality = min(max(quality, r.Min), r.Max)
	if e.Direction() == LowerIsBetter {
		return (r.Max - quality) / step
	}
	return (quality - r.Min) / step
}

// checkQuality rejects a native parameter outside e's declared range.
func checkQuality(e Encoder, q int) error {
	r := e.QualityRange()
	if r.Contains(q) {
		return nil
	}
	return apperrors.New(apperrors.CategoryEncode, "encode."+e.Format(),
		fmt.Errorf("%w: %d not in [%d, %d]", apperrors.ErrQualityRange, q, r.Min, r.Max))
}
