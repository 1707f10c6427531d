package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string, n int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, n), 0o644))
}

func TestScanImages(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	touch(t, filepath.Join(dir, "banner.JPG"), 10)
	touch(t, filepath.Join(dir, "cards", "card-1.png"), 20)
	touch(t, filepath.Join(dir, "scan.tif"), 5)
	touch(t, filepath.Join(dir, "notes.txt"), 1)
	touch(t, filepath.Join(dir, ".git", "logo.png"), 1)
	touch(t, filepath.Join(out, "banner.0011223344556677.jpg"), 1)

	sources, err := ScanImages(dir, out)
	require.NoError(t, err)
	require.Len(t, sources, 3)

	byKey := map[string]Source{}
	for _, s := range sources {
		byKey[s.Key] = s
	}
	assert.Equal(t, "jpeg", byKey["banner"].Format)
	assert.Equal(t, int64(10), byKey["banner"].Size)
	assert.Equal(t, "cards/card-1.png", byKey["cards/card-1"].RelPath)
	assert.Equal(t, "tiff", byKey["scan"].Format)
}

func TestScanImagesKeyCollision(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "logo.png"), 1)
	touch(t, filepath.Join(dir, "logo.webp"), 1)
	touch(t, filepath.Join(dir, "icon.gif"), 1)

	sources, err := ScanImages(dir)
	require.NoError(t, err)

	var keys []string
	for _, s := range sources {
		keys = append(keys, s.Key)
	}
	assert.ElementsMatch(t, []string{"icon", "logo.png", "logo.webp"}, keys)
}

func TestScanImagesMissingDir(t *testing.T) {
	_, err := ScanImages(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
