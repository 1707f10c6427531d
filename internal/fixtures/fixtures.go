// Package fixtures generates small synthetic images for tests and smoke runs.
package fixtures

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
)

// Gradient is an opaque red/green ramp over a constant blue.
func Gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / w),
				G: uint8(y * 255 / h),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

// Textured is a gradient with a deterministic high-frequency pattern, which
// makes sizes and metric scores react to quality.
func Textured(w, h int) *image.NRGBA {
	img := Gradient(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := img.PixOffset(x, y)
			img.Pix[i+2] = uint8((x*y + 3*x + 7*y) % 256)
		}
	}
	return img
}

// SolidWithBorder is a flat card with a 4px white border.
func SolidWithBorder(w, h int, base uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: base, G: base + 40, B: base + 80, A: 255}
			if x < 4 || x >= w-4 || y < 4 || y >= h-4 {
				c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// AlphaGradient fades a solid colour from transparent to opaque.
func AlphaGradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: 220, G: 60, B: 30,
				A: uint8(x * 255 / w),
			})
		}
	}
	return img
}

// PNG encodes img losslessly.
func PNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// JPEG encodes img at quality 85.
func JPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func write(path string, data []byte, err error) error {
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Generate writes the smoke-test set into dir and returns the relative
// paths written: a JPEG banner, three PNG cards, an alpha logo and a
// truncated file that must fail to decode.
func Generate(dir string) ([]string, error) {
	var written []string
	add := func(rel string, data []byte, err error) error {
		if err := write(filepath.Join(dir, filepath.FromSlash(rel)), data, err); err != nil {
			return err
		}
		written = append(written, rel)
		return nil
	}

	data, err := JPEG(Gradient(400, 225))
	if err := add("banner.jpg", data, err); err != nil {
		return nil, err
	}
	for i := 1; i <= 3; i++ {
		data, err := PNG(SolidWithBorder(200, 150, uint8(i*60)))
		if err := add(fmt.Sprintf("cards/card-%d.png", i), data, err); err != nil {
			return nil, err
		}
	}
	data, err = PNG(AlphaGradient(100, 100))
	if err := add("logo.png", data, err); err != nil {
		return nil, err
	}
	if err := add("broken.png", data[:len(data)/3], nil); err != nil {
		return nil, err
	}
	return written, nil
}
