package metric

import (
	"image"
	"math"
)

// dssim scale and channel weights. Luma dominates; chroma catches colour
// shifts from subsampling.
var (
	dssimScaleWeights   = []float64{0.5, 0.3, 0.2}
	dssimChannelWeights = [3]float64{0.6, 0.2, 0.2}
)

const (
	dssimRadius = 3
	// SSIM stabilisers for a dynamic range of 100 (L*).
	dssimC1 = 1.0
	dssimC2 = 9.0
)

// dssim computes a multi-scale structural dissimilarity on CIE L*a*b*.
// The result is 1/SSIM - 1, so identical images score 0.
func dssim(a, b *image.NRGBA) float64 {
	pa := pyramid(a, len(dssimScaleWeights), 8)
	pb := pyramid(b, len(dssimScaleWeights), 8)
	levels := min(len(pa), len(pb))

	// Accumulate dissimilarity rather than similarity so identical inputs
	// stay exactly zero.
	var loss, weights float64
	for s := 0; s < levels; s++ {
		la, lb := toLab(pa[s]), toLab(pb[s])
		for c := 0; c < 3; c++ {
			w := dssimScaleWeights[s] * dssimChannelWeights[c]
			loss += w * (1 - meanSSIM(la[c], lb[c], dssimRadius, dssimC1, dssimC2))
			weights += w
		}
	}
	loss /= weights
	if loss <= 0 {
		return 0
	}
	if loss >= 1 {
		loss = 1 - 1e-9
	}
	// 1/SSIM - 1 with SSIM = 1 - loss.
	return loss / (1 - loss)
}

func meanSSIM(a, b plane, r int, c1, c2 float64) float64 {
	var sum float64
	eachWindow(a, b, r, c1, c2, func(_ int, w window) { sum += w.ssim })
	return sum / float64(len(a.v))
}

func labF(t float64) float64 {
	if t > 0.008856 {
		return math.Cbrt(t)
	}
	return 7.787*t + 16.0/116.0
}

// toLab converts img to three planes: L* in [0,100] and a*, b*.
func toLab(img *image.NRGBA) [3]plane {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	out := [3]plane{newPlane(w, h), newPlane(w, h), newPlane(w, h)}
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			r := srgbToLinear[row[x*4]]
			g := srgbToLinear[row[x*4+1]]
			bl := srgbToLinear[row[x*4+2]]
			fx := labF((0.4124*r + 0.3576*g + 0.1805*bl) / 0.95047)
			fy := labF(0.2126*r + 0.7152*g + 0.0722*bl)
			fz := labF((0.0193*r + 0.1192*g + 0.9505*bl) / 1.08883)
			i := y*w + x
			out[0].v[i] = 116*fy - 16
			out[1].v[i] = 500 * (fx - fy)
			out[2].v[i] = 200 * (fy - fz)
		}
	}
	return out
}
