//go:build cgo

package encoder

import (
	"bytes"
	"image"

	"github.com/chai2010/webp"
	xwebp "golang.org/x/image/webp"

	apperrors "github.com/AnyUserName/imgopt/internal/errors"
)

// WebPEncoder encodes lossy WebP through libwebp (cgo).
type WebPEncoder struct{}

func (e *WebPEncoder) Format() string       { return FormatWebP }
func (e *WebPEncoder) Extension() string    { return "webp" }
func (e *WebPEncoder) Available() bool      { return true }
func (e *WebPEncoder) QualityRange() Range  { return Range{Min: 0, Max: 100, Step: 1} }
func (e *WebPEncoder) Direction() Direction { return HigherIsBetter }
func (e *WebPEncoder) DefaultQuality() int  { return 80 }

func (e *WebPEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	if err := checkQuality(e, quality); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "encode.webp", err)
	}
	return buf.Bytes(), nil
}

func (e *WebPEncoder) Decode(data []byte) (image.Image, error) {
	img, err := xwebp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "roundtrip.webp", err)
	}
	return img, nil
}
