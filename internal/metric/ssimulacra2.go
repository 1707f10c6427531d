package metric

import (
	"image"
	"math"
)

// Opsin absorbance mixing into an LMS-like space, followed by a cube root.
const opsinBias = 0.0037930732552754493

var opsin = [3][3]float64{
	{0.30, 0.622, 0.078},
	{0.23, 0.692, 0.078},
	{0.24342268924547819, 0.20476744424496821, 0.55180986650955360},
}

const (
	ssimu2Scales = 4
	ssimu2Radius = 3
	ssimu2C1     = 0.0001
	ssimu2C2     = 0.0009
)

// Per-channel weights for X, Y and B; luminance carries most of the signal.
var ssimu2ChannelWeights = [3]float64{0.5, 1.0, 0.25}

// Per-statistic weights: SSIM error, ringing/blocking artefacts, blur.
// Each is pooled with L1 and L4 norms, L4 at half weight.
var ssimu2StatWeights = [3]float64{1.0, 0.5, 0.5}

// ssimulacra2Distance returns a distance in [0,1] derived from a
// SSIMULACRA2-style comparison across four scales in an opponent colour
// space. Score100 maps it back onto the familiar 0..100 quality scale.
func ssimulacra2Distance(a, b *image.NRGBA) float64 {
	pa := pyramid(a, ssimu2Scales, 8)
	pb := pyramid(b, ssimu2Scales, 8)
	levels := min(len(pa), len(pb))

	var total, weights float64
	for s := 0; s < levels; s++ {
		xa, xb := toXYB(pa[s]), toXYB(pb[s])
		for c := 0; c < 3; c++ {
			st := compareChannel(xa[c], xb[c])
			cw := ssimu2ChannelWeights[c]
			for k := 0; k < 3; k++ {
				total += cw * ssimu2StatWeights[k] * (st[k].l1 + 0.5*st[k].l4)
				weights += cw * ssimu2StatWeights[k] * 1.5
			}
		}
	}
	d := total / weights
	return math.Min(math.Max(d, 0), 1)
}

// Score100 converts a ssimulacra2 distance to a 0..100 score where 100 is
// a perfect match.
func Score100(distance float64) float64 {
	if math.IsInf(distance, 1) {
		return 0
	}
	return 100 * (1 - math.Min(math.Max(distance, 0), 1))
}

type pooled struct{ l1, l4 float64 }

// compareChannel returns the pooled SSIM error, artefact and detail-loss maps.
func compareChannel(a, b plane) [3]pooled {
	var sum, sum4 [3]float64
	eachWindow(a, b, ssimu2Radius, ssimu2C1, ssimu2C2, func(i int, w window) {
		errSSIM := math.Max(0, 1-w.ssim)
		ratio := (1 + math.Abs(b.v[i]-w.muB)) / (1 + math.Abs(a.v[i]-w.muA))
		artefact := math.Max(0, ratio-1)
		detail := math.Max(0, 1-ratio)
		for k, v := range [3]float64{errSSIM, artefact, detail} {
			sum[k] += v
			sum4[k] += v * v * v * v
		}
	})
	n := float64(len(a.v))
	var out [3]pooled
	for k := range out {
		out[k] = pooled{l1: sum[k] / n, l4: math.Pow(sum4[k]/n, 0.25)}
	}
	return out
}

// toXYB converts img to positive X, Y and B planes.
func toXYB(img *image.NRGBA) [3]plane {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	out := [3]plane{newPlane(w, h), newPlane(w, h), newPlane(w, h)}
	cb := math.Cbrt(opsinBias)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			rgb := [3]float64{
				srgbToLinear[row[x*4]],
				srgbToLinear[row[x*4+1]],
				srgbToLinear[row[x*4+2]],
			}
			var lms [3]float64
			for k := 0; k < 3; k++ {
				v := opsin[k][0]*rgb[0] + opsin[k][1]*rgb[1] + opsin[k][2]*rgb[2] + opsinBias
				lms[k] = math.Cbrt(math.Max(v, 0)) - cb
			}
			X := (lms[0] - lms[1]) / 2
			Y := (lms[0] + lms[1]) / 2
			B := lms[2]
			i := y*w + x
			out[0].v[i] = X*14 + 0.42
			out[1].v[i] = Y + 0.01
			out[2].v[i] = (B - Y) + 0.55
		}
	}
	return out
}
