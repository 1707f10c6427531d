package metrics

import (
	"bytes"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	r := New()
	r.ObserveRequest(OutcomePassed)
	r.ObserveRequest(OutcomePassed)
	r.ObserveRequest(OutcomeFailed)
	r.ObserveProbe("jpeg", "satisfied")
	r.ObserveCache(CacheHit)
	r.ObserveSearch("jpeg", 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.requests.WithLabelValues(OutcomePassed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.requests.WithLabelValues(OutcomeFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.probes.WithLabelValues("jpeg", "satisfied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cacheLookups.WithLabelValues(CacheHit)))
	assert.Equal(t, 1, testutil.CollectAndCount(r.search))
}

func TestWriteText(t *testing.T) {
	r := New()
	r.ObserveRequest(OutcomePassed)

	var buf bytes.Buffer
	require.NoError(t, r.WriteText(&buf))
	assert.Contains(t, buf.String(), `imgopt_requests_total{outcome="passed"} 1`)
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.ObserveRequest(OutcomePassed)
	r.ObserveProbe("png", "miss")
	r.ObserveCache(CacheMiss)
	r.ObserveSearch("png", time.Second)
	assert.NoError(t, r.WriteText(&bytes.Buffer{}))
}
