// Package profile holds named constraint presets for common targets.
package profile

import (
	"fmt"
	"slices"
	"strings"
)

// Profile is a named constraint preset. Unset fields leave the request's
// own values alone.
type Profile struct {
	Name     string
	Formats  []string // candidate formats in priority order
	Metric   string
	MaxBytes int64
	MaxDiff  *float64
}

func diff(d float64) *float64 { return &d }

// Built-in profiles.
var profiles = map[string]Profile{
	"web": {
		Name:    "web",
		Formats: []string{"avif", "webp", "jpeg"},
		Metric:  "dssim",
		MaxDiff: diff(0.015),
	},
	"web-hq": {
		Name:    "web-hq",
		Formats: []string{"avif", "webp", "jpeg", "png"},
		Metric:  "ssimulacra2",
		MaxDiff: diff(0.1),
	},
	"thumbnail": {
		Name:     "thumbnail",
		Formats:  []string{"webp", "jpeg"},
		Metric:   "dssim",
		MaxBytes: 16 << 10,
	},
	"lossless": {
		Name:    "lossless",
		Formats: []string{"png", "webp"},
		Metric:  "dssim",
		MaxDiff: diff(0),
	},
}

// Names lists the built-in profiles in sorted order.
func Names() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Get returns a profile by name.
func Get(name string) (Profile, error) {
	p, ok := profiles[strings.ToLower(name)]
	if !ok {
		return Profile{}, fmt.Errorf("unknown profile %q (want one of %s)", name, strings.Join(Names(), ", "))
	}
	p.Formats = slices.Clone(p.Formats)
	if p.MaxDiff != nil {
		p.MaxDiff = diff(*p.MaxDiff)
	}
	return p, nil
}

// Available drops formats the current build cannot produce, keeping order.
// A profile whose formats are all unavailable falls back to available.
func (p Profile) Available(available []string) []string {
	var out []string
	for _, f := range p.Formats {
		if slices.Contains(available, f) {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return slices.Clone(available)
	}
	return out
}
