package encoder

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"

	"github.com/disintegration/imaging"

	apperrors "github.com/AnyUserName/imgopt/internal/errors"
)

// JPEGEncoder encodes images to JPEG using Go's standard library.
// Translucent sources are composited over white first.
type JPEGEncoder struct{}

func (e *JPEGEncoder) Format() string       { return FormatJPEG }
func (e *JPEGEncoder) Extension() string    { return "jpg" }
func (e *JPEGEncoder) Available() bool      { return true }
func (e *JPEGEncoder) QualityRange() Range  { return Range{Min: 1, Max: 100, Step: 1} }
func (e *JPEGEncoder) Direction() Direction { return HigherIsBetter }
func (e *JPEGEncoder) DefaultQuality() int  { return 85 }

func (e *JPEGEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	if err := checkQuality(e, quality); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(64 * 1024)

	if err := jpeg.Encode(&buf, onWhite(img), &jpeg.Options{Quality: quality}); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "encode.jpeg", err)
	}
	return buf.Bytes(), nil
}

func (e *JPEGEncoder) Decode(data []byte) (image.Image, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "roundtrip.jpeg", err)
	}
	return img, nil
}

// onWhite drops the alpha channel the way a viewer would show it. The
// standard JPEG writer ignores alpha on premultiplied values, which turns
// transparent pixels black.
func onWhite(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	return imaging.Overlay(bg, img, image.Point{}, 1.0)
}
