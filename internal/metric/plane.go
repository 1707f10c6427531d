package metric

import "math"

// plane is a single float channel in row-major order.
type plane struct {
	w, h int
	v    []float64
}

func newPlane(w, h int) plane { return plane{w: w, h: h, v: make([]float64, w*h)} }

// srgbToLinear maps 8-bit sRGB values to linear light in [0,1].
var srgbToLinear = func() (lut [256]float64) {
	for i := range lut {
		c := float64(i) / 255
		if c <= 0.04045 {
			lut[i] = c / 12.92
		} else {
			lut[i] = math.Pow((c+0.055)/1.055, 2.4)
		}
	}
	return lut
}()

// integral holds summed-area tables for the five moments SSIM needs.
type integral struct {
	w, h                  int
	sa, sb, saa, sbb, sab []float64
}

func newIntegral(a, b plane) *integral {
	w, h := a.w, a.h
	stride := w + 1
	n := stride * (h + 1)
	in := &integral{
		w: w, h: h,
		sa: make([]float64, n), sb: make([]float64, n),
		saa: make([]float64, n), sbb: make([]float64, n), sab: make([]float64, n),
	}
	for y := 0; y < h; y++ {
		var ra, rb, raa, rbb, rab float64
		for x := 0; x < w; x++ {
			va, vb := a.v[y*w+x], b.v[y*w+x]
			ra += va
			rb += vb
			raa += va * va
			rbb += vb * vb
			rab += va * vb
			i := (y+1)*stride + x + 1
			up := y*stride + x + 1
			in.sa[i] = in.sa[up] + ra
			in.sb[i] = in.sb[up] + rb
			in.saa[i] = in.saa[up] + raa
			in.sbb[i] = in.sbb[up] + rbb
			in.sab[i] = in.sab[up] + rab
		}
	}
	return in
}

func (in *integral) box(t []float64, x0, y0, x1, y1 int) float64 {
	s := in.w + 1
	return t[y1*s+x1] - t[y0*s+x1] - t[y1*s+x0] + t[y0*s+x0]
}

// window describes local statistics around one pixel.
type window struct {
	muA, muB float64
	ssim     float64
}

// eachWindow computes windowed SSIM for every pixel of a and b using a
// (2r+1)² box clipped at the borders and calls fn with the pixel index.
func eachWindow(a, b plane, r int, c1, c2 float64, fn func(i int, win window)) {
	in := newIntegral(a, b)
	for y := 0; y < a.h; y++ {
		y0, y1 := max(0, y-r), min(a.h, y+r+1)
		for x := 0; x < a.w; x++ {
			x0, x1 := max(0, x-r), min(a.w, x+r+1)
			n := float64((x1 - x0) * (y1 - y0))
			muA := in.box(in.sa, x0, y0, x1, y1) / n
			muB := in.box(in.sb, x0, y0, x1, y1) / n
			varA := in.box(in.saa, x0, y0, x1, y1)/n - muA*muA
			varB := in.box(in.sbb, x0, y0, x1, y1)/n - muB*muB
			cov := in.box(in.sab, x0, y0, x1, y1)/n - muA*muB
			num := (2*muA*muB + c1) * (2*cov + c2)
			den := (muA*muA + muB*muB + c1) * (varA + varB + c2)
			fn(y*a.w+x, window{muA: muA, muB: muB, ssim: num / den})
		}
	}
}
