package encoder

import (
	"fmt"
	"strings"

	apperrors "github.com/AnyUserName/imgopt/internal/errors"
)

// Builtin returns every encoder compiled into this build in priority order.
func Builtin() []Encoder {
	return []Encoder{
		&AVIFEncoder{},
		&WebPEncoder{},
		&JPEGEncoder{},
		&PNGEncoder{},
	}
}

// Registry holds the available encoders, keyed by format.
type Registry struct {
	encoders map[string]Encoder
	known    map[string]bool
	order    []string
}

// NewRegistry creates a registry, probing each encoder for availability.
// With no arguments the builtin set is used. Registration order is the
// priority order reported by Available.
func NewRegistry(encs ...Encoder) *Registry {
	if len(encs) == 0 {
		encs = Builtin()
	}
	r := &Registry{
		encoders: make(map[string]Encoder),
		known:    make(map[string]bool),
	}
	for _, enc := range encs {
		f := strings.ToLower(enc.Format())
		r.known[f] = true
		if _, dup := r.encoders[f]; dup || !enc.Available() {
			continue
		}
		r.encoders[f] = enc
		r.order = append(r.order, f)
	}
	return r
}

// Available returns all available format names in priority order.
func (r *Registry) Available() []string {
	return append([]string(nil), r.order...)
}

// Resolve validates requested formats and returns their encoders in request
// order with duplicates removed. An empty request means every available
// format. Unknown or unavailable formats are an unsupported-format error.
func (r *Registry) Resolve(requested []string) ([]Encoder, error) {
	if len(requested) == 0 {
		requested = r.order
	}
	if len(requested) == 0 {
		return nil, apperrors.New(apperrors.CategoryUnsupported, "resolve",
			fmt.Errorf("%w: no encoders available", apperrors.ErrUnsupportedFormat))
	}

	var out []Encoder
	seen := map[string]bool{}
	for _, f := range requested {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "jpg" {
			f = FormatJPEG
		}
		if seen[f] {
			continue
		}
		enc, ok := r.encoders[f]
		if !ok {
			why := "unknown"
			if r.known[f] {
				why = "not available in this build"
			}
			return nil, apperrors.New(apperrors.CategoryUnsupported, "resolve",
				fmt.Errorf("%w: %q (%s)", apperrors.ErrUnsupportedFormat, f, why))
		}
		seen[f] = true
		out = append(out, enc)
	}
	return out, nil
}
