package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderUsesGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordCacheHit("memory")
	r.RecordCacheHit("memory")
	r.RecordCacheMiss("redis")
	r.RecordError("training")
	r.RecordLastPrediction("INFY", "1Y", 1710.25)
	r.RecordTraining("random_forest", "1M", 0.4)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.cacheHits.WithLabelValues("memory")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cacheMisses.WithLabelValues("redis")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("training")))
	assert.Equal(t, 1710.25, testutil.ToFloat64(r.lastPrediction.WithLabelValues("INFY", "1Y")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "fincast_training_duration_seconds")

	// a second registry accepts the same collectors
	assert.NotPanics(t, func() { New(prometheus.NewRegistry()) })
}
