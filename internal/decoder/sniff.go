package decoder

import "bytes"

// Container formats recognised on input.
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatGIF  = "gif"
	FormatWebP = "webp"
	FormatBMP  = "bmp"
	FormatTIFF = "tiff"
)

type signature struct {
	format string
	magic  []byte
	// offset of magic within the header; WebP's "WEBP" sits after the RIFF size.
	offset int
}

var signatures = []signature{
	{FormatJPEG, []byte{0xFF, 0xD8, 0xFF}, 0},
	{FormatPNG, []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}, 0},
	{FormatGIF, []byte("GIF87a"), 0},
	{FormatGIF, []byte("GIF89a"), 0},
	{FormatWebP, []byte("RIFF"), 0},
	{FormatBMP, []byte("BM"), 0},
	{FormatTIFF, []byte{'I', 'I', 0x2A, 0x00}, 0},
	{FormatTIFF, []byte{'M', 'M', 0x00, 0x2A}, 0},
}

// sniffResult describes what the leading bytes say about a buffer.
type sniffResult struct {
	format    string
	truncated bool
}

// Sniff returns the container format of data, or "" when no signature
// matches.
func Sniff(data []byte) string {
	return sniff(data).format
}

func sniff(data []byte) sniffResult {
	var partial bool
	for _, sig := range signatures {
		end := sig.offset + len(sig.magic)
		if len(data) >= end {
			if !bytes.Equal(data[sig.offset:end], sig.magic) {
				continue
			}
			if sig.format == FormatWebP {
				// RIFF alone is not enough: the form type must be WEBP.
				if len(data) < 12 {
					return sniffResult{format: FormatWebP, truncated: true}
				}
				if !bytes.Equal(data[8:12], []byte("WEBP")) {
					continue
				}
			}
			return sniffResult{format: sig.format}
		}
		if len(data) > sig.offset && bytes.HasPrefix(sig.magic, data[sig.offset:]) {
			partial = true
		}
	}
	return sniffResult{truncated: partial}
}
