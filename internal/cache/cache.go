// Package cache stores finished optimization results keyed by a fingerprint
// of the input content and every constraint parameter.
package cache

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/AnyUserName/imgopt/internal/hasher"
)

// Entry is an immutable cached result. Stores hand out copies.
type Entry struct {
	Format  string
	Quality int
	Size    int64
	Diff    float64
	HasDiff bool
	Passed  bool
	Reason  string
	Output  []byte
}

func (e *Entry) clone() *Entry {
	c := *e
	c.Output = append([]byte(nil), e.Output...)
	return &c
}

// Store is a fingerprint-keyed result store safe for concurrent use.
// Put is idempotent: the first entry stored under a fingerprint wins.
type Store interface {
	Get(fp Fingerprint) (*Entry, bool, error)
	Put(fp Fingerprint, e *Entry) error
	Len() int
	Close() error
}

// Params are the constraint fields that take part in a fingerprint.
type Params struct {
	Formats  []string
	Metric   string
	MaxBytes int64
	MaxDiff  *float64
}

// Canonical renders p as a stable, versioned string. Every field is
// included verbatim so that requests differing in any parameter differ here.
func (p Params) Canonical() string {
	diff := "unset"
	if p.MaxDiff != nil {
		diff = strconv.FormatUint(math.Float64bits(*p.MaxDiff), 16)
	}
	return fmt.Sprintf("v2|formats=%s|metric=%s|max_bytes=%d|max_diff=%s",
		strings.Join(p.Formats, ","), p.Metric, p.MaxBytes, diff)
}

// Fingerprint is a cache key.
type Fingerprint string

// NewFingerprint derives the key for content under params.
func NewFingerprint(content []byte, p Params) Fingerprint {
	return Fingerprint(hasher.Sum(content).String() + "|" + p.Canonical())
}

// Short is the content part of the key, for logs.
func (f Fingerprint) Short() string {
	s := string(f)
	if i := strings.IndexByte(s, '|'); i >= 0 {
		return s[:i]
	}
	return s
}
