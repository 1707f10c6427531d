package encoder

import (
	"bytes"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	apperrors "github.com/AnyUserName/imgopt/internal/errors"
)

// PNGEncoder encodes images to PNG using Go's standard library.
// Quality 100 is lossless truecolour; anything lower quantises to a
// median-cut palette whose size shrinks with the quality value, with
// Floyd-Steinberg error diffusion.
type PNGEncoder struct{}

func (e *PNGEncoder) Format() string       { return FormatPNG }
func (e *PNGEncoder) Extension() string    { return "png" }
func (e *PNGEncoder) Available() bool      { return true }
func (e *PNGEncoder) QualityRange() Range  { return Range{Min: 1, Max: 100, Step: 1} }
func (e *PNGEncoder) Direction() Direction { return HigherIsBetter }
func (e *PNGEncoder) DefaultQuality() int  { return 100 }

func (e *PNGEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	if err := checkQuality(e, quality); err != nil {
		return nil, err
	}

	var out image.Image = img
	if quality < 100 {
		src := imaging.Clone(img)
		pal := medianCut(src, paletteSize(quality))
		dst := image.NewPaletted(src.Rect, pal)
		draw.FloydSteinberg.Draw(dst, dst.Rect, src, src.Rect.Min)
		out = dst
	}

	var buf bytes.Buffer
	buf.Grow(64 * 1024)

	enc := &png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, out); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "encode.png", err)
	}
	return buf.Bytes(), nil
}

func (e *PNGEncoder) Decode(data []byte) (image.Image, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "roundtrip.png", err)
	}
	return img, nil
}

// paletteSize maps quality 1..99 onto 2..256 colours.
func paletteSize(quality int) int {
	return 2 + (quality-1)*254/98
}
