// Package metric scores the perceptual distance between a reference image and
// a re-encoded candidate. All scores are distances: 0 means identical and
// larger values mean more visible difference.
package metric

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"slices"
	"strings"

	"github.com/disintegration/imaging"
)

// Kind selects a metric from the closed set supported by the optimizer.
type Kind string

const (
	None        Kind = "none"
	DSSIM       Kind = "dssim"
	SSIMULACRA2 Kind = "ssimulacra2"
)

// Default is used when a request leaves the metric empty.
const Default = DSSIM

// Kinds lists every metric in a stable order.
func Kinds() []Kind { return []Kind{None, DSSIM, SSIMULACRA2} }

// Parse resolves a metric name. The empty string maps to Default.
func Parse(name string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	if k == "" {
		return Default, nil
	}
	if slices.Contains(Kinds(), k) {
		return k, nil
	}
	names := make([]string, 0, 3)
	for _, known := range Kinds() {
		names = append(names, string(known))
	}
	return "", fmt.Errorf("unknown metric %q (want one of %s)", name, strings.Join(names, ", "))
}

// Active reports whether k requires a round-trip decode and scoring.
func (k Kind) Active() bool { return k != None && k != "" }

// ScorePixels caps the resolution metrics are computed at. Larger images
// are box-filtered down first, which bounds the summed-area tables at about
// 40 bytes per scored pixel per channel.
const ScorePixels = 2 << 20

// Score returns the distance between ref and cand under metric k.
// None short-circuits to 0 without touching the pixels. Images of different
// dimensions cannot be compared and score +Inf.
func Score(ref, cand image.Image, k Kind) float64 {
	if !k.Active() {
		return 0
	}
	if ref.Bounds().Dx() != cand.Bounds().Dx() || ref.Bounds().Dy() != cand.Bounds().Dy() {
		return math.Inf(1)
	}
	a, b := fit(flatten(ref)), fit(flatten(cand))
	switch k {
	case SSIMULACRA2:
		return ssimulacra2Distance(a, b)
	default:
		return dssim(a, b)
	}
}

var white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}

// flatten converts img to NRGBA and composites translucent pixels over white,
// so formats without an alpha channel are compared on what a viewer sees.
func flatten(img image.Image) *image.NRGBA {
	n, ok := img.(*image.NRGBA)
	if !ok || n.Rect.Min != (image.Point{}) {
		n = imaging.Clone(img)
	}
	if n.Opaque() {
		return n
	}
	bg := imaging.New(n.Rect.Dx(), n.Rect.Dy(), white)
	return imaging.Overlay(bg, n, image.Point{}, 1.0)
}

// fit downscales img to at most ScorePixels, keeping the aspect ratio.
func fit(img *image.NRGBA) *image.NRGBA {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w*h <= ScorePixels {
		return img
	}
	s := math.Sqrt(float64(ScorePixels) / float64(w*h))
	return imaging.Resize(img, max(1, int(float64(w)*s)), max(1, int(float64(h)*s)), imaging.Box)
}

// pyramid returns successive half-size versions of img, starting with img
// itself, stopping before either side drops below minSide.
func pyramid(img *image.NRGBA, levels, minSide int) []*image.NRGBA {
	out := []*image.NRGBA{img}
	cur := img
	for len(out) < levels {
		w, h := cur.Rect.Dx()/2, cur.Rect.Dy()/2
		if w < minSide || h < minSide {
			break
		}
		cur = imaging.Resize(cur, w, h, imaging.Box)
		out = append(out, cur)
	}
	return out
}
