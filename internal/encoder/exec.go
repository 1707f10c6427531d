package encoder

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
)

// Atomic counter for unique temp file names across goroutines.
var tempCounter atomic.Int64

// External binaries used by the exec-backed encoders.
var (
	cwebpTool   = &tool{name: "cwebp"}
	avifencTool = &tool{name: "avifenc"}
	avifdecTool = &tool{name: "avifdec"}
)

// tool is an external binary looked up on PATH once.
type tool struct {
	name string
	once sync.Once
	path string
}

func (t *tool) lookup() (string, bool) {
	t.once.Do(func() {
		if p, err := exec.LookPath(t.name); err == nil {
			t.path = p
		}
	})
	return t.path, t.path != ""
}

// argsFunc builds a command line from the input and output temp paths.
type argsFunc func(src, dst string) []string

// encodeWithTool writes img as PNG to a temp file, runs the tool and returns
// the bytes it wrote to dstExt.
func encodeWithTool(t *tool, dstExt string, img image.Image, args argsFunc) ([]byte, error) {
	var src bytes.Buffer
	if err := png.Encode(&src, img); err != nil {
		return nil, fmt.Errorf("encode temp png: %w", err)
	}
	return runTool(t, "png", src.Bytes(), dstExt, args)
}

// decodeWithTool writes data to a temp file, asks the tool to convert it to
// PNG and decodes the result.
func decodeWithTool(t *tool, srcExt string, data []byte, args argsFunc) (image.Image, error) {
	out, err := runTool(t, srcExt, data, "png", args)
	if err != nil {
		return nil, err
	}
	return png.Decode(bytes.NewReader(out))
}

func runTool(t *tool, srcExt string, input []byte, dstExt string, args argsFunc) ([]byte, error) {
	path, ok := t.lookup()
	if !ok {
		return nil, fmt.Errorf("%s not found in PATH", t.name)
	}

	id := tempCounter.Add(1)
	srcFile, err := os.CreateTemp("", fmt.Sprintf("imgopt_src_%d_*.%s", id, srcExt))
	if err != nil {
		return nil, fmt.Errorf("create temp: %w", err)
	}
	srcPath := srcFile.Name()
	defer os.Remove(srcPath)

	dstFile, err := os.CreateTemp("", fmt.Sprintf("imgopt_dst_%d_*.%s", id, dstExt))
	if err != nil {
		srcFile.Close()
		return nil, fmt.Errorf("create temp: %w", err)
	}
	dstPath := dstFile.Name()
	dstFile.Close()
	defer os.Remove(dstPath)

	if _, err := srcFile.Write(input); err != nil {
		srcFile.Close()
		return nil, fmt.Errorf("write temp: %w", err)
	}
	if err := srcFile.Close(); err != nil {
		return nil, fmt.Errorf("close temp: %w", err)
	}

	cmd := exec.Command(path, args(srcPath, dstPath)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", t.name, err, bytes.TrimSpace(out))
	}
	return os.ReadFile(dstPath)
}
