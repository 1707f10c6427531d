// Package decoder turns raw input bytes into the canonical pixel buffer every
// other component works on.
package decoder

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/disintegration/imaging"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	apperrors "github.com/AnyUserName/imgopt/internal/errors"
)

// Layout is the channel layout of a decoded source.
type Layout string

const (
	LayoutGray Layout = "gray"
	LayoutRGB  Layout = "rgb"
	LayoutRGBA Layout = "rgba"
)

// Source is an immutable decoded image. Pixels must not be modified after
// Decode returns; encoders and metrics only read from it.
type Source struct {
	Pixels *image.NRGBA
	Width  int
	Height int
	Layout Layout
	// Format is the detected container of the input bytes.
	Format string
}

// HasAlpha reports whether any pixel is not fully opaque.
func (s *Source) HasAlpha() bool { return s.Layout == LayoutRGBA }

// MaxPixels caps the decoded pixel count. A header is checked against it
// before any pixel buffer is allocated.
const MaxPixels = 1 << 26

type codec struct {
	decode func(io.Reader) (image.Image, error)
	config func(io.Reader) (image.Config, error)
}

var codecs = map[string]codec{
	FormatJPEG: {jpeg.Decode, jpeg.DecodeConfig},
	FormatPNG:  {png.Decode, png.DecodeConfig},
	FormatGIF:  {gif.Decode, gif.DecodeConfig},
	FormatWebP: {webp.Decode, webp.DecodeConfig},
	FormatBMP:  {bmp.Decode, bmp.DecodeConfig},
	FormatTIFF: {tiff.Decode, tiff.DecodeConfig},
}

// Decode validates the container signature of data and decodes it.
// Images over MaxPixels are rejected from their header alone.
// Empty, truncated and unrecognised inputs each wrap a distinct sentinel
// from the errors package.
func Decode(data []byte) (*Source, error) {
	if len(data) == 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, "decode", apperrors.ErrEmptyInput)
	}

	sn := sniff(data)
	if sn.truncated {
		return nil, apperrors.New(apperrors.CategoryDecode, "decode.sniff", apperrors.ErrTruncated)
	}
	if sn.format == "" {
		return nil, apperrors.New(apperrors.CategoryDecode, "decode.sniff", apperrors.ErrUnrecognized)
	}

	c := codecs[sn.format]
	cfg, err := c.config(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryDecode, "decode."+sn.format, classify(err))
	}
	if px := int64(cfg.Width) * int64(cfg.Height); px > MaxPixels {
		return nil, apperrors.New(apperrors.CategoryDecode, "decode."+sn.format,
			fmt.Errorf("%w: %dx%d is over %d pixels", apperrors.ErrInputTooLarge, cfg.Width, cfg.Height, MaxPixels))
	}

	img, err := c.decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryDecode, "decode."+sn.format, classify(err))
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, "decode."+sn.format,
			fmt.Errorf("%w: zero-sized image %dx%d", apperrors.ErrCorrupt, b.Dx(), b.Dy()))
	}

	pixels := imaging.Clone(img)
	return &Source{
		Pixels: pixels,
		Width:  b.Dx(),
		Height: b.Dy(),
		Layout: detectLayout(img, pixels),
		Format: sn.format,
	}, nil
}

// classify maps codec errors onto the truncated / corrupt sentinels while
// keeping the codec message.
func classify(err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", apperrors.ErrTruncated, err)
	}
	return fmt.Errorf("%w: %v", apperrors.ErrCorrupt, err)
}

func detectLayout(orig image.Image, px *image.NRGBA) Layout {
	if !px.Opaque() {
		return LayoutRGBA
	}
	switch orig.(type) {
	case *image.Gray, *image.Gray16:
		return LayoutGray
	}
	return LayoutRGB
}
