//go:build !vips

package encoder

import (
	"fmt"
	"image"

	apperrors "github.com/AnyUserName/imgopt/internal/errors"
)

// AVIFEncoder encodes images to AVIF by shelling out to avifenc and reads
// them back with avifdec. The native parameter is the AV1 quantiser, where
// lower values mean higher fidelity.
// Install: brew install libavif / apt install libavif-bin
type AVIFEncoder struct{}

func (e *AVIFEncoder) Format() string       { return FormatAVIF }
func (e *AVIFEncoder) Extension() string    { return "avif" }
func (e *AVIFEncoder) QualityRange() Range  { return Range{Min: 0, Max: 63, Step: 1} }
func (e *AVIFEncoder) Direction() Direction { return LowerIsBetter }
func (e *AVIFEncoder) DefaultQuality() int  { return 28 }

func (e *AVIFEncoder) Available() bool {
	_, encOK := avifencTool.lookup()
	_, decOK := avifdecTool.lookup()
	return encOK && decOK
}

func (e *AVIFEncoder) Encode(img image.Image, quantizer int) ([]byte, error) {
	if !e.Available() {
		return nil, apperrors.New(apperrors.CategoryEncode, "encode.avif",
			fmt.Errorf("avifenc/avifdec not found in PATH; install with: brew install libavif"))
	}
	if err := checkQuality(e, quantizer); err != nil {
		return nil, err
	}
	speed := 6 // 0=slowest, 10=fastest

	data, err := encodeWithTool(avifencTool, "avif", img, func(src, dst string) []string {
		return []string{
			"--min", fmt.Sprintf("%d", quantizer),
			"--max", fmt.Sprintf("%d", quantizer),
			"--speed", fmt.Sprintf("%d", speed),
			"-j", "all",
			src,
			dst,
		}
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "encode.avif", err)
	}
	return data, nil
}

func (e *AVIFEncoder) Decode(data []byte) (image.Image, error) {
	if !e.Available() {
		return nil, apperrors.New(apperrors.CategoryEncode, "roundtrip.avif",
			fmt.Errorf("avifdec not found in PATH"))
	}
	img, err := decodeWithTool(avifdecTool, "avif", data, func(src, dst string) []string {
		return []string{src, dst}
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "roundtrip.avif", err)
	}
	return img, nil
}
