package imgopt

import (
	"bytes"
	"errors"
	"image"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/AnyUserName/imgopt/internal/cache"
	"github.com/AnyUserName/imgopt/internal/encoder"
	"github.com/AnyUserName/imgopt/internal/fixtures"
	"github.com/AnyUserName/imgopt/internal/metrics"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	data, err := fixtures.PNG(fixtures.Textured(w, h))
	require.NoError(t, err)
	return data
}

// pureGo restricts the optimizer to encoders that never need cgo or
// external tools.
func pureGo() Option {
	return WithRegistry(encoder.NewRegistry(&encoder.JPEGEncoder{}, &encoder.PNGEncoder{}))
}

// fixed is a fake encoder whose output is base+q bytes.
type fixed struct {
	format string
	base   int
}

func (f *fixed) Format() string               { return f.format }
func (f *fixed) Extension() string            { return f.format }
func (f *fixed) Available() bool              { return true }
func (f *fixed) QualityRange() encoder.Range  { return encoder.Range{Min: 1, Max: 100, Step: 1} }
func (f *fixed) Direction() encoder.Direction { return encoder.HigherIsBetter }
func (f *fixed) DefaultQuality() int          { return 50 }

func (f *fixed) Encode(_ image.Image, q int) ([]byte, error) {
	return bytes.Repeat([]byte{byte(q)}, f.base+q), nil
}

func (f *fixed) Decode([]byte) (image.Image, error) { return nil, errors.New("not decodable") }

func TestEmptyInputIsDecodeError(t *testing.T) {
	res, err := New(pureGo()).Optimize(Request{Input: nil, MaxBytes: 1000})
	require.Error(t, err)
	assert.True(t, IsDecodeError(err))
	assert.ErrorIs(t, err, ErrEmptyInput)
	require.NotNil(t, res)
	assert.False(t, res.Passed)
	assert.NotEmpty(t, res.ErrorMessage)
	assert.Empty(t, res.Output)
}

func TestGarbageInputIsDecodeError(t *testing.T) {
	_, err := New(pureGo()).Optimize(Request{Input: []byte("definitely not an image"), MaxBytes: 1000})
	assert.True(t, IsDecodeError(err))
	assert.ErrorIs(t, err, ErrUnrecognized)
}

func TestUnattainableBoundReturnsClosestCandidate(t *testing.T) {
	res, err := New(pureGo()).Optimize(Request{Input: testPNG(t, 48, 48), MaxBytes: 10})
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.Empty(t, res.ErrorMessage)
	assert.NotEmpty(t, res.Reason)
	require.NotEmpty(t, res.Output)
	assert.Equal(t, int64(len(res.Output)), res.Size)
	assert.Greater(t, res.Size, int64(10))
}

func TestSizeBoundSatisfied(t *testing.T) {
	input := testPNG(t, 48, 48)
	res, err := New(pureGo(), WithLogger(zaptest.NewLogger(t))).Optimize(Request{
		Input:    input,
		MaxBytes: 4000,
		Formats:  []string{"jpg"},
	})
	require.NoError(t, err)
	require.True(t, res.Passed, res.Reason)
	assert.Equal(t, "jpeg", res.Format)
	assert.Equal(t, "jpg", res.Extension())
	assert.LessOrEqual(t, res.Size, int64(4000))
	assert.Equal(t, ContractVersion, res.Version)

	_, _, err = image.Decode(bytes.NewReader(res.Output))
	assert.NoError(t, err, "output decodes")
}

func TestDiffBoundSatisfied(t *testing.T) {
	res, err := New(pureGo()).Optimize(Request{
		Input:   testPNG(t, 32, 32),
		MaxDiff: Diff(0.01),
		Metric:  "dssim",
	})
	require.NoError(t, err)
	require.True(t, res.Passed, res.Reason)
	require.True(t, res.HasDiff)
	assert.LessOrEqual(t, res.DiffValue, 0.01)
}

func TestSizeAndDiffBoundsOnJPEGInput(t *testing.T) {
	input, err := fixtures.JPEG(fixtures.Gradient(64, 48))
	require.NoError(t, err)
	opt := New(pureGo())

	// The diff bound alone fixes a size that both bounds together can meet.
	loose, err := opt.Optimize(Request{Input: input, MaxDiff: Diff(0.02), Metric: "dssim"})
	require.NoError(t, err)
	require.True(t, loose.Passed, loose.Reason)

	res, err := opt.Optimize(Request{
		Input:    input,
		MaxBytes: loose.Size,
		MaxDiff:  Diff(0.02),
		Metric:   "dssim",
	})
	require.NoError(t, err)
	require.True(t, res.Passed, res.Reason)
	assert.LessOrEqual(t, res.Size, loose.Size)
	require.True(t, res.HasDiff)
	assert.LessOrEqual(t, res.DiffValue, 0.02)
	assert.Empty(t, res.ErrorMessage)
}

func TestTranslucentSourceToJPEG(t *testing.T) {
	input, err := fixtures.PNG(fixtures.AlphaGradient(64, 64))
	require.NoError(t, err)

	res, err := New(pureGo()).Optimize(Request{
		Input:   input,
		Formats: []string{"jpeg"},
		MaxDiff: Diff(0.05),
		Metric:  "dssim",
	})
	require.NoError(t, err)
	require.True(t, res.Passed, res.Reason)
	assert.Equal(t, "jpeg", res.Format)
	assert.Less(t, res.Quality, 100, "a lossy setting already meets the bound")
	assert.LessOrEqual(t, res.DiffValue, 0.05)
}

func TestCacheHitIsByteIdentical(t *testing.T) {
	rec := metrics.New()
	opt := New(pureGo(), WithMetrics(rec))
	req := Request{Input: testPNG(t, 48, 48), MaxBytes: 3000, CacheEnabled: true}

	first, err := opt.Optimize(req)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := opt.Optimize(req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Format, second.Format)
	assert.Equal(t, first.Size, second.Size)
	assert.Equal(t, first.Passed, second.Passed)
	assert.True(t, bytes.Equal(first.Output, second.Output))
	assert.Equal(t, first.Extension(), second.Extension())

	var buf bytes.Buffer
	require.NoError(t, rec.WriteText(&buf))
	assert.Contains(t, buf.String(), `imgopt_cache_lookups_total{result="hit"} 1`)
	assert.Contains(t, buf.String(), `imgopt_cache_lookups_total{result="miss"} 1`)
}

func TestCacheKeyCoversConstraint(t *testing.T) {
	store := cache.NewMemory(0, 0)
	opt := New(pureGo(), WithCache(store))
	input := testPNG(t, 32, 32)

	_, err := opt.Optimize(Request{Input: input, MaxBytes: 3000, CacheEnabled: true})
	require.NoError(t, err)
	res, err := opt.Optimize(Request{Input: input, MaxBytes: 2999, CacheEnabled: true})
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, 2, store.Len())

	// "jpg" and "jpeg" resolve to the same encoder and share an entry.
	_, err = opt.Optimize(Request{Input: input, MaxBytes: 3000, Formats: []string{"jpg"}, CacheEnabled: true})
	require.NoError(t, err)
	res, err = opt.Optimize(Request{Input: input, MaxBytes: 3000, Formats: []string{"jpeg"}, CacheEnabled: true})
	require.NoError(t, err)
	assert.True(t, res.Cached)
}

func TestCacheDisabledPerRequest(t *testing.T) {
	store := cache.NewMemory(0, 0)
	opt := New(pureGo(), WithCache(store))
	req := Request{Input: testPNG(t, 16, 16), MaxBytes: 2000}
	for i := 0; i < 2; i++ {
		res, err := opt.Optimize(req)
		require.NoError(t, err)
		assert.False(t, res.Cached)
	}
	assert.Equal(t, 0, store.Len())
}

func TestHardFailuresAreNotCached(t *testing.T) {
	store := cache.NewMemory(0, 0)
	opt := New(pureGo(), WithCache(store))
	_, err := opt.Optimize(Request{Input: []byte{0xFF, 0xD8, 0xFF}, MaxBytes: 100, CacheEnabled: true})
	require.Error(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestConcurrentIdenticalRequests(t *testing.T) {
	store := cache.NewMemory(0, 0)
	opt := New(pureGo(), WithCache(store))
	req := Request{Input: testPNG(t, 32, 32), MaxBytes: 2500, CacheEnabled: true}

	results := make([]*Result, 8)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := opt.Optimize(req)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	for _, res := range results[1:] {
		assert.Equal(t, results[0].Format, res.Format)
		assert.Equal(t, results[0].Output, res.Output)
	}
	assert.Equal(t, 1, store.Len())
}

func TestDeterministicAcrossConcurrency(t *testing.T) {
	input := testPNG(t, 40, 40)
	var want *Result
	for _, c := range []int{1, 2, 4, 8} {
		res, err := New(pureGo()).Optimize(Request{Input: input, MaxBytes: 2500, Concurrency: c})
		require.NoError(t, err)
		if want == nil {
			want = res
			continue
		}
		assert.Equal(t, want.Format, res.Format, "concurrency %d", c)
		assert.Equal(t, want.Size, res.Size, "concurrency %d", c)
		assert.Equal(t, want.Quality, res.Quality, "concurrency %d", c)
	}
}

func TestSmallestFormatWins(t *testing.T) {
	reg := encoder.NewRegistry(&fixed{format: "jpeg", base: 900}, &fixed{format: "webp", base: 400})
	res, err := New(WithRegistry(reg)).Optimize(Request{
		Input:    testPNG(t, 8, 8),
		MaxBytes: 1000,
		Metric:   "none",
	})
	require.NoError(t, err)
	require.True(t, res.Passed)
	assert.Equal(t, "webp", res.Format)
	assert.Equal(t, int64(500), res.Size, "highest quality that fits")
	assert.False(t, res.HasDiff)
}

func TestRequestValidation(t *testing.T) {
	input := testPNG(t, 8, 8)
	tests := []struct {
		name  string
		req   Request
		check func(error) bool
	}{
		{"unknown format", Request{Input: input, Formats: []string{"gif"}}, IsUnsupportedFormat},
		{"format checked before decode", Request{Input: []byte("junk"), Formats: []string{"bmp"}}, IsUnsupportedFormat},
		{"negative max_bytes", Request{Input: input, MaxBytes: -1}, IsInvalidRequest},
		{"negative max_diff", Request{Input: input, MaxDiff: Diff(-0.5)}, IsInvalidRequest},
		{"metric none with max_diff", Request{Input: input, MaxDiff: Diff(0.1), Metric: "none"}, IsInvalidRequest},
		{"unknown metric", Request{Input: input, Metric: "psnr"}, IsInvalidRequest},
		{"future version", Request{Version: 2, Input: input}, IsInvalidRequest},
		{"both sources", Request{Input: input, Reader: bytes.NewReader(input)}, IsInvalidRequest},
	}

	rec := metrics.New()
	opt := New(pureGo(), WithMetrics(rec))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := opt.Optimize(tt.req)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
			assert.False(t, IsDecodeError(err))
			assert.Equal(t, err.Error(), res.ErrorMessage)
		})
	}

	var buf bytes.Buffer
	require.NoError(t, rec.WriteText(&buf))
	assert.Contains(t, buf.String(), `imgopt_requests_total{outcome="rejected"} 8`)
}

func TestReaderInputAndLimit(t *testing.T) {
	input := testPNG(t, 16, 16)

	res, err := New(pureGo()).Optimize(Request{Reader: bytes.NewReader(input), MaxBytes: 5000})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Output)

	_, err = New(pureGo(), WithMaxInputBytes(int64(len(input)-1))).Optimize(Request{Reader: bytes.NewReader(input)})
	assert.ErrorIs(t, err, ErrInputTooLarge)
	assert.True(t, IsInvalidRequest(err))
}

func TestRequestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.png")
	input := testPNG(t, 8, 8)
	require.NoError(t, os.WriteFile(path, input, 0o644))

	req, err := RequestFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, input, req.Input)

	_, err = RequestFromFile(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestSave(t *testing.T) {
	res, err := New(pureGo()).Optimize(Request{Input: testPNG(t, 16, 16), MaxBytes: 5000})
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "out."+res.Extension())
	require.NoError(t, res.Save(path))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, res.Output, got)

	err = res.Save(filepath.Join(dir, "missing", "out.bin"))
	assert.ErrorIs(t, err, ErrDestination)

	err = (&Result{}).Save(filepath.Join(dir, "empty.bin"))
	assert.ErrorIs(t, err, ErrNoOutput)
}

func TestFormatsAndVersion(t *testing.T) {
	assert.Equal(t, []string{"jpeg", "png"}, New(pureGo()).Formats())
	assert.NotEmpty(t, Version())
}
