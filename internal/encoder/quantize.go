package encoder

import (
	"image"
	"image/color"
	"slices"
)

// Median-cut colour quantiser over RGBA. Boxes are split along their widest
// channel at the median until the palette is full or nothing can be split.

const maxQuantizeSamples = 1 << 17

type colorBox struct {
	px     [][4]uint8
	lo, hi [4]uint8
}

func newColorBox(px [][4]uint8) *colorBox {
	b := &colorBox{px: px, lo: [4]uint8{255, 255, 255, 255}}
	for _, p := range px {
		for c := 0; c < 4; c++ {
			b.lo[c] = min(b.lo[c], p[c])
			b.hi[c] = max(b.hi[c], p[c])
		}
	}
	return b
}

func (b *colorBox) widest() (axis, span int) {
	for c := 0; c < 4; c++ {
		if s := int(b.hi[c]) - int(b.lo[c]); s > span {
			axis, span = c, s
		}
	}
	return axis, span
}

func (b *colorBox) average() color.NRGBA {
	var sum [4]int
	for _, p := range b.px {
		for c := 0; c < 4; c++ {
			sum[c] += int(p[c])
		}
	}
	n := len(b.px)
	return color.NRGBA{
		R: uint8(sum[0] / n), G: uint8(sum[1] / n),
		B: uint8(sum[2] / n), A: uint8(sum[3] / n),
	}
}

func medianCut(img *image.NRGBA, maxColors int) color.Palette {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	stride := max(1, w*h/maxQuantizeSamples)

	px := make([][4]uint8, 0, w*h/stride+1)
	for i := 0; i < w*h; i += stride {
		x, y := i%w, i/w
		o := y*img.Stride + x*4
		px = append(px, [4]uint8{img.Pix[o], img.Pix[o+1], img.Pix[o+2], img.Pix[o+3]})
	}

	boxes := []*colorBox{newColorBox(px)}
	for len(boxes) < maxColors {
		best, bestScore := -1, 0
		for i, b := range boxes {
			if len(b.px) < 2 {
				continue
			}
			_, span := b.widest()
			if score := span * len(b.px); score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			break
		}

		b := boxes[best]
		axis, _ := b.widest()
		slices.SortStableFunc(b.px, func(p, q [4]uint8) int { return int(p[axis]) - int(q[axis]) })
		mid := len(b.px) / 2
		boxes[best] = newColorBox(b.px[:mid])
		boxes = append(boxes, newColorBox(b.px[mid:]))
	}

	pal := make(color.Palette, len(boxes))
	for i, b := range boxes {
		pal[i] = b.average()
	}
	return pal
}
