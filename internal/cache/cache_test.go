package cache

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(format string, n int) *Entry {
	return &Entry{
		Format:  format,
		Quality: 80,
		Size:    int64(n),
		Diff:    0.0125,
		HasDiff: true,
		Passed:  true,
		Output:  bytes.Repeat([]byte{0xAB}, n),
	}
}

func fp(i int) Fingerprint {
	return NewFingerprint([]byte(fmt.Sprintf("img-%d", i)), Params{Formats: []string{"jpeg"}, Metric: "dssim"})
}

func TestFingerprintCoversEveryParameter(t *testing.T) {
	content := []byte("pixels")
	d1, d2 := 0.01, 0.02
	base := Params{Formats: []string{"jpeg", "png"}, Metric: "dssim", MaxBytes: 1000, MaxDiff: &d1}

	variants := map[string]Params{
		"formats":        {Formats: []string{"png", "jpeg"}, Metric: "dssim", MaxBytes: 1000, MaxDiff: &d1},
		"metric":         {Formats: base.Formats, Metric: "ssimulacra2", MaxBytes: 1000, MaxDiff: &d1},
		"max_bytes":      {Formats: base.Formats, Metric: "dssim", MaxBytes: 1001, MaxDiff: &d1},
		"max_diff":       {Formats: base.Formats, Metric: "dssim", MaxBytes: 1000, MaxDiff: &d2},
		"max_diff unset": {Formats: base.Formats, Metric: "dssim", MaxBytes: 1000},
	}

	want := NewFingerprint(content, base)
	assert.Equal(t, want, NewFingerprint(append([]byte(nil), content...), base), "deterministic")
	assert.NotEqual(t, want, NewFingerprint([]byte("pixelz"), base), "content")
	for name, p := range variants {
		assert.NotEqual(t, want, NewFingerprint(content, p), name)
	}
	assert.Equal(t, NewFingerprint(content, base).Short(), NewFingerprint(content, variants["metric"]).Short())
	assert.Regexp(t, `^[0-9a-f]{32}-6$`, want.Short(), "128-bit content digest plus length")
}

func TestMemoryFirstWriteWins(t *testing.T) {
	m := NewMemory(0, 0)
	require.NoError(t, m.Put(fp(1), entry("jpeg", 10)))
	require.NoError(t, m.Put(fp(1), entry("png", 20)))

	got, ok, err := m.Get(fp(1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "jpeg", got.Format)
	assert.Equal(t, 1, m.Len())
}

func TestMemoryReturnsCopies(t *testing.T) {
	m := NewMemory(0, 0)
	orig := entry("jpeg", 4)
	require.NoError(t, m.Put(fp(1), orig))
	orig.Output[0] = 0

	got, _, _ := m.Get(fp(1))
	got.Output[1] = 0

	again, _, _ := m.Get(fp(1))
	assert.Equal(t, bytes.Repeat([]byte{0xAB}, 4), again.Output)
}

func TestMemoryEvictsOldestFirst(t *testing.T) {
	m := NewMemory(2, 0)
	for i := 0; i < 3; i++ {
		require.NoError(t, m.Put(fp(i), entry("jpeg", 1)))
	}
	_, ok, _ := m.Get(fp(0))
	assert.False(t, ok)
	_, ok, _ = m.Get(fp(2))
	assert.True(t, ok)

	b := NewMemory(0, 25)
	for i := 0; i < 3; i++ {
		require.NoError(t, b.Put(fp(i), entry("jpeg", 10)))
	}
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, int64(20), b.Bytes())

	require.NoError(t, b.Put(fp(9), entry("jpeg", 100)), "oversized entries are skipped")
	_, ok, _ = b.Get(fp(9))
	assert.False(t, ok)
}

func TestMemoryConcurrentPuts(t *testing.T) {
	m := NewMemory(0, 0)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = m.Put(fp(i%4), entry("jpeg", i+1))
			_, _, _ = m.Get(fp(i % 4))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 4, m.Len())
}

func TestSQLiteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "cache.db")
	s, err := OpenSQLite(path, 0)
	require.NoError(t, err)

	want := entry("webp", 4096)
	want.Reason = "closest"
	want.Passed = false
	require.NoError(t, s.Put(fp(1), want))
	require.NoError(t, s.Put(fp(1), entry("png", 8)), "second put is ignored")

	got, ok, err := s.Get(fp(1))
	require.NoError(t, err)
	require.True(t, ok)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("entry mismatch (-want +got):\n%s", diff)
	}

	_, ok, err = s.Get(fp(2))
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, s.Close())

	// Entries survive a reopen.
	s, err = OpenSQLite(path, 0)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, 1, s.Len())
	got, ok, err = s.Get(fp(1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want.Output, got.Output)
}

func TestSQLiteEviction(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "c.db"), 3)
	require.NoError(t, err)
	defer s.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Put(fp(i), entry("jpeg", 16)))
	}
	assert.Equal(t, 3, s.Len())
	_, ok, _ := s.Get(fp(0))
	assert.False(t, ok)
	_, ok, _ = s.Get(fp(4))
	assert.True(t, ok)
}

func TestTieredPromotes(t *testing.T) {
	back, err := OpenSQLite(filepath.Join(t.TempDir(), "c.db"), 0)
	require.NoError(t, err)
	front := NewMemory(0, 0)
	tier := &Tiered{Front: front, Back: back}
	defer tier.Close()

	require.NoError(t, back.Put(fp(1), entry("avif", 12)))
	assert.Equal(t, 0, front.Len())

	got, ok, err := tier.Get(fp(1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "avif", got.Format)
	assert.Equal(t, 1, front.Len(), "back hit promoted")

	require.NoError(t, tier.Put(fp(2), entry("png", 3)))
	assert.Equal(t, 2, tier.Len())
	assert.Equal(t, 2, front.Len())
}
