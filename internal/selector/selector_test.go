package selector

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnyUserName/imgopt/internal/encoder"
	apperrors "github.com/AnyUserName/imgopt/internal/errors"
	"github.com/AnyUserName/imgopt/internal/metric"
	"github.com/AnyUserName/imgopt/internal/search"
)

// sized is a fake encoder producing base+t bytes at fidelity index t.
type sized struct {
	format string
	base   int
	broken bool
}

func (s *sized) Format() string               { return s.format }
func (s *sized) Extension() string            { return s.format }
func (s *sized) Available() bool              { return true }
func (s *sized) QualityRange() encoder.Range  { return encoder.Range{Min: 1, Max: 10, Step: 1} }
func (s *sized) Direction() encoder.Direction { return encoder.HigherIsBetter }
func (s *sized) DefaultQuality() int          { return 5 }

func (s *sized) Encode(_ image.Image, q int) ([]byte, error) {
	if s.broken {
		return nil, errors.New("out of memory")
	}
	return make([]byte, s.base+q), nil
}

func (s *sized) Decode([]byte) (image.Image, error) { return nil, errors.New("unused") }

func img(w, h int) *image.NRGBA {
	m := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.SetNRGBA(x, y, color.NRGBA{uint8(x * 7), uint8(y * 5), uint8((x + y) * 3), 255})
		}
	}
	return m
}

func sizeBound(n int64) search.Constraint {
	return search.Constraint{MaxBytes: n, Metric: metric.None}
}

func TestSmallestSatisfyingFormatWins(t *testing.T) {
	encs := []encoder.Encoder{
		&sized{format: "jpeg", base: 500},
		&sized{format: "webp", base: 300},
	}
	sel := (&Selector{Concurrency: 2}).Select(encs, img(4, 4), sizeBound(1000))

	require.NoError(t, sel.Err)
	require.NotNil(t, sel.Winner)
	assert.True(t, sel.Passed)
	assert.Equal(t, "webp", sel.Winner.Format)
	assert.Empty(t, sel.Reason)
	require.Len(t, sel.Outcomes, 2)
	assert.Equal(t, "jpeg", sel.Outcomes[0].Format)
}

func TestTieBrokenByRequestOrder(t *testing.T) {
	encs := []encoder.Encoder{
		&sized{format: "png", base: 300},
		&sized{format: "jpeg", base: 300},
	}
	for _, c := range []int{1, 2} {
		sel := (&Selector{Concurrency: c}).Select(encs, img(4, 4), sizeBound(1000))
		assert.Equal(t, "png", sel.Winner.Format)
	}
}

func TestBestEffortWhenNothingFits(t *testing.T) {
	encs := []encoder.Encoder{
		&sized{format: "jpeg", base: 500},
		&sized{format: "png", base: 400},
	}
	sel := (&Selector{}).Select(encs, img(4, 4), sizeBound(10))

	require.NoError(t, sel.Err)
	require.NotNil(t, sel.Winner)
	assert.False(t, sel.Passed)
	assert.Equal(t, "png", sel.Winner.Format)
	assert.Equal(t, int64(401), sel.Winner.Size)
	assert.Contains(t, sel.Reason, "max_bytes")
}

func TestBrokenFormatDoesNotSinkOthers(t *testing.T) {
	encs := []encoder.Encoder{
		&sized{format: "avif", broken: true},
		&sized{format: "jpeg", base: 500},
	}
	sel := (&Selector{}).Select(encs, img(4, 4), sizeBound(1000))

	require.NoError(t, sel.Err)
	assert.True(t, sel.Passed)
	assert.Equal(t, "jpeg", sel.Winner.Format)
	assert.Nil(t, sel.Outcomes[0].Best)
	assert.Error(t, sel.Outcomes[0].Err)
}

func TestNoCandidatesIsHardFailure(t *testing.T) {
	encs := []encoder.Encoder{&sized{format: "avif", broken: true}}
	sel := (&Selector{}).Select(encs, img(4, 4), sizeBound(1000))

	assert.Nil(t, sel.Winner)
	assert.False(t, sel.Passed)
	require.Error(t, sel.Err)
	assert.ErrorIs(t, sel.Err, apperrors.ErrNoOutput)
	assert.Contains(t, sel.Err.Error(), "out of memory")
}

func TestDeterministicAcrossConcurrency(t *testing.T) {
	src := img(48, 48)
	encs := []encoder.Encoder{&encoder.JPEGEncoder{}, &encoder.PNGEncoder{}}
	cons := search.Constraint{MaxBytes: 2500, MaxDiff: 0.05, HasMaxDiff: true, Metric: metric.DSSIM}

	type verdict struct {
		Format  string
		Size    int64
		Quality int
		Passed  bool
	}
	var first *verdict
	for _, c := range []int{1, 2, 4, 8} {
		sel := (&Selector{Concurrency: c}).Select(encs, src, cons)
		require.NotNil(t, sel.Winner, "concurrency %d", c)
		got := &verdict{sel.Winner.Format, sel.Winner.Size, sel.Winner.Quality, sel.Passed}
		if first == nil {
			first = got
			continue
		}
		if diff := cmp.Diff(first, got); diff != "" {
			t.Errorf("concurrency %d changed the verdict (-want +got):\n%s", c, diff)
		}
	}
}

func TestWorkersClamped(t *testing.T) {
	assert.Equal(t, 1, (&Selector{Concurrency: -3}).workers(0))
	assert.Equal(t, 2, (&Selector{Concurrency: 8}).workers(2))
	assert.Equal(t, 1, (&Selector{Concurrency: 1}).workers(4))
	assert.GreaterOrEqual(t, (&Selector{}).workers(4), 1)
}
