package errors

import (
	"errors"
	"fmt"
)

// Category classifies errors so callers can tell malformed input from
// unavailable formats from local encode failures.
type Category string

const (
	CategoryDecode      Category = "decode"
	CategoryUnsupported Category = "unsupported_format"
	CategoryEncode      Category = "encode"
	CategoryInput       Category = "input"
	CategoryStorage     Category = "storage"
	CategoryCache       Category = "cache"
)

// ProcessingError is the structured error type used throughout the module.
type ProcessingError struct {
	Category Category
	Op       string // operation name
	Err      error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Category, e.Op, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// New creates a ProcessingError.
func New(category Category, op string, err error) *ProcessingError {
	return &ProcessingError{Category: category, Op: op, Err: err}
}

// Wrap wraps an existing error with context. A nil err yields nil.
func Wrap(category Category, op string, err error) error {
	if err == nil {
		return nil
	}
	return New(category, op, err)
}

// IsCategory reports whether err belongs to the given category.
func IsCategory(err error, cat Category) bool {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Category == cat
	}
	return false
}

// Sentinel errors for common failure modes.
var (
	ErrEmptyInput        = errors.New("empty input")
	ErrTruncated         = errors.New("truncated image header")
	ErrUnrecognized      = errors.New("unrecognized image container")
	ErrCorrupt           = errors.New("corrupt image data")
	ErrUnsupportedFormat = errors.New("unsupported output format")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInputTooLarge     = errors.New("input exceeds size limit")
	ErrDestination       = errors.New("destination not writable")
	ErrNoOutput          = errors.New("result has no output")
	ErrQualityRange      = errors.New("quality outside encoder range")
)
