//go:build vips

package encoder

import (
	"bytes"
	"image"
	"image/png"
	"runtime"
	"sync"

	govips "github.com/davidbyttow/govips/v2/vips"

	apperrors "github.com/AnyUserName/imgopt/internal/errors"
)

var vipsOnce sync.Once

func startVips() {
	vipsOnce.Do(func() {
		govips.LoggingSettings(nil, govips.LogLevelError)
		govips.Startup(&govips.Config{ConcurrencyLevel: runtime.NumCPU()})
	})
}

// AVIFEncoder encodes AVIF through libvips. Built with -tags vips.
type AVIFEncoder struct{}

func (e *AVIFEncoder) Format() string       { return FormatAVIF }
func (e *AVIFEncoder) Extension() string    { return "avif" }
func (e *AVIFEncoder) QualityRange() Range  { return Range{Min: 1, Max: 100, Step: 1} }
func (e *AVIFEncoder) Direction() Direction { return HigherIsBetter }
func (e *AVIFEncoder) DefaultQuality() int  { return 60 }

func (e *AVIFEncoder) Available() bool {
	startVips()
	return true
}

func (e *AVIFEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	startVips()
	if err := checkQuality(e, quality); err != nil {
		return nil, err
	}

	var src bytes.Buffer
	if err := png.Encode(&src, img); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "encode.avif", err)
	}
	ref, err := govips.NewImageFromBuffer(src.Bytes())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "encode.avif", err)
	}
	defer ref.Close()

	ep := govips.NewAvifExportParams()
	ep.Quality = quality
	ep.StripMetadata = true
	buf, _, err := ref.ExportAvif(ep)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "encode.avif", err)
	}
	return buf, nil
}

func (e *AVIFEncoder) Decode(data []byte) (image.Image, error) {
	startVips()
	ref, err := govips.NewImageFromBuffer(data)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "roundtrip.avif", err)
	}
	defer ref.Close()

	buf, _, err := ref.ExportPng(govips.NewPngExportParams())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "roundtrip.avif", err)
	}
	img, err := png.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "roundtrip.avif", err)
	}
	return img, nil
}
