package trainer

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	"FinCast/internal/services/features"
	"FinCast/internal/services/ml"
	"FinCast/internal/services/registry"
	"FinCast/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu       sync.Mutex
	trained  []string
	failures int
}

func (r *recorder) RecordTraining(family, timeframe string, _ float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trained = append(r.trained, family+"/"+timeframe)
}
func (r *recorder) RecordCacheHit(string)  {}
func (r *recorder) RecordCacheMiss(string) {}
func (r *recorder) RecordError(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures++
}
func (r *recorder) RecordLastPrediction(string, string, float64) {}
func (r *recorder) RecordLatency(string, float64)                {}

func increasing(n int) []models.PricePoint {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	out := make([]models.PricePoint, n)
	for i := range out {
		c := 100 + float64(i) + 2*math.Sin(float64(i)/3)
		out[i] = models.PricePoint{Date: start.AddDate(0, 0, i), Open: c - 0.5, High: c + 1, Low: c - 1, Close: c, Volume: 5000}
	}
	return out
}

func profile(t *testing.T, tf domrepo.Timeframe) registry.Profile {
	p, err := registry.Resolve(tf)
	require.NoError(t, err)
	return p
}

func TestFitOnIncreasingSeries(t *testing.T) {
	p := profile(t, domrepo.TF1M)
	fs, err := features.Build(increasing(130), p.TargetShift)
	require.NoError(t, err)

	m, err := Fit("TCS", p, fs)
	require.NoError(t, err)

	assert.False(t, math.IsNaN(m.Metrics.R2))
	assert.GreaterOrEqual(t, m.Metrics.RMSE, 0.0)
	assert.GreaterOrEqual(t, m.Metrics.MAE, 0.0)
	assert.Equal(t, len(fs.Rows), m.TrainSamples+m.TestSamples)
	assert.Equal(t, int(0.8*float64(len(fs.Rows))), m.TrainSamples)
	assert.Equal(t, ml.RandomForestFamily, m.Family)
	assert.Len(t, m.Importances, len(features.Names))
	for i := 1; i < len(m.Importances); i++ {
		assert.GreaterOrEqual(t, m.Importances[i-1].Importance, m.Importances[i].Importance)
	}
}

func TestFitRidgeHasNoImportances(t *testing.T) {
	p := profile(t, domrepo.TF1M)
	fs, err := features.Build(increasing(130), p.TargetShift)
	require.NoError(t, err)

	m, err := FitFamily("TCS", p, fs, ml.RidgeFamily, registry.DefaultParams(ml.RidgeFamily))
	require.NoError(t, err)
	assert.Empty(t, m.Importances)
	assert.Greater(t, m.Metrics.R2, 0.0)
}

func TestFitInsufficientSamples(t *testing.T) {
	p := profile(t, domrepo.TF1M)
	// 21 rows: 16 train, 5 test
	fs, err := features.Build(increasing(features.MinHistory(1)+20), p.TargetShift)
	require.NoError(t, err)

	_, err = Fit("TCS", p, fs)
	require.ErrorIs(t, err, models.ErrInsufficientSamples)
	var se *models.InsufficientSamplesError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 5, se.Have)
	assert.Equal(t, 6, se.Need)
}

func TestTrainRecordsMetricsAndClock(t *testing.T) {
	rec := &recorder{}
	tr := New(2, rec, logger.Nop())
	at := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	tr.now = func() time.Time { return at }

	p := profile(t, domrepo.TF1M)
	fs, err := features.Build(increasing(130), p.TargetShift)
	require.NoError(t, err)

	m, err := tr.Train(context.Background(), "TCS", p, fs)
	require.NoError(t, err)
	assert.Equal(t, at, m.TrainedAt)
	assert.Equal(t, []string{"random_forest/1M"}, rec.trained)

	short, err := features.Build(increasing(features.MinHistory(1)+20), p.TargetShift)
	require.NoError(t, err)
	_, err = tr.Train(context.Background(), "TCS", p, short)
	assert.ErrorIs(t, err, models.ErrInsufficientSamples)
	assert.Equal(t, 1, rec.failures)
}

func TestTrainHonoursCancelledContext(t *testing.T) {
	tr := New(1, &recorder{}, logger.Nop())
	require.NoError(t, tr.sem.Acquire(context.Background(), 1))
	defer tr.sem.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := profile(t, domrepo.TF1M)
	_, err := tr.Train(ctx, "TCS", p, &features.FeatureSet{})
	assert.ErrorIs(t, err, context.Canceled)
}
