//go:build !cgo

package encoder

import (
	"bytes"
	"fmt"
	"image"

	xwebp "golang.org/x/image/webp"

	apperrors "github.com/AnyUserName/imgopt/internal/errors"
)

// WebPEncoder encodes images to WebP by shelling out to cwebp when the
// binary is built without cgo.
// Install: brew install webp / apt install webp
type WebPEncoder struct{}

func (e *WebPEncoder) Format() string       { return FormatWebP }
func (e *WebPEncoder) Extension() string    { return "webp" }
func (e *WebPEncoder) QualityRange() Range  { return Range{Min: 0, Max: 100, Step: 1} }
func (e *WebPEncoder) Direction() Direction { return HigherIsBetter }
func (e *WebPEncoder) DefaultQuality() int  { return 80 }

func (e *WebPEncoder) Available() bool {
	_, ok := cwebpTool.lookup()
	return ok
}

func (e *WebPEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	if !e.Available() {
		return nil, apperrors.New(apperrors.CategoryEncode, "encode.webp",
			fmt.Errorf("cwebp not found in PATH; install with: brew install webp"))
	}
	if err := checkQuality(e, quality); err != nil {
		return nil, err
	}

	data, err := encodeWithTool(cwebpTool, "webp", img, func(src, dst string) []string {
		return []string{
			"-q", fmt.Sprintf("%d", quality),
			"-m", "6", // compression method (0=fast, 6=best)
			"-mt",
			"-quiet",
			src,
			"-o", dst,
		}
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "encode.webp", err)
	}
	return data, nil
}

func (e *WebPEncoder) Decode(data []byte) (image.Image, error) {
	img, err := xwebp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "roundtrip.webp", err)
	}
	return img, nil
}
