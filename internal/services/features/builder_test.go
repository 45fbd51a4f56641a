package features

import (
	"math"
	"testing"
	"time"

	"FinCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func series(n int) []models.PricePoint {
	out := make([]models.PricePoint, n)
	for i := range out {
		c := 100 + float64(i)*0.5 + 3*math.Sin(float64(i)/4)
		out[i] = models.PricePoint{
			Date:   start.AddDate(0, 0, i),
			Open:   c - 0.4,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000 + float64(i%7)*50,
		}
	}
	return out
}

func TestBuildMinimumHistoryBoundary(t *testing.T) {
	for _, shift := range []int{1, 6, 12, 60} {
		need := MinHistory(shift)

		fs, err := Build(series(need), shift)
		require.NoError(t, err, "shift %d", shift)
		assert.Len(t, fs.Rows, 1)
		assert.Len(t, fs.Targets, 1)

		_, err = Build(series(need-1), shift)
		require.ErrorIs(t, err, models.ErrInsufficientHistory, "shift %d", shift)
		var he *models.InsufficientHistoryError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, need, he.Need)
		assert.Equal(t, need-1, he.Have)
	}
}

func TestBuildShapesAndLabels(t *testing.T) {
	hist := series(120)
	fs, err := Build(hist, 5)
	require.NoError(t, err)

	assert.Equal(t, Names, fs.Names)
	assert.Len(t, fs.Rows, 120-Warmup-5)
	for i, r := range fs.Rows {
		require.Len(t, r.Values, len(Names))
		assert.Equal(t, hist[Warmup+i].Date, r.Date)
		assert.Equal(t, hist[Warmup+i+5].Close, fs.Targets[i])
		for k, v := range r.Values {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "%s is not finite", Names[k])
		}
	}

	assert.Equal(t, hist[119].Date, fs.Latest.Date)
	assert.Equal(t, hist[118].Close, fs.Latest.Values[13], "lag1")
	assert.Equal(t, hist[119].Close, fs.Anchor.CurrentPrice)
	assert.Greater(t, fs.Anchor.DailyVolatility, 0.0)
	assert.InDelta(t, (hist[119].Close-hist[120-60].Close)/60, fs.Anchor.DriftPerDay, 1e-12)
}

func TestBuildMovingAverageMatchesWindowMean(t *testing.T) {
	hist := series(80)
	fs, err := Build(hist, 1)
	require.NoError(t, err)

	var sum float64
	for _, p := range hist[75:80] {
		sum += p.Close
	}
	assert.InDelta(t, sum/5, fs.Latest.Values[0], 1e-6)
}

func TestBuildRSIStaysInRange(t *testing.T) {
	rising := series(100)
	for i := range rising {
		rising[i].Close = 50 + float64(i)
	}
	fs, err := Build(rising, 1)
	require.NoError(t, err)
	assert.Equal(t, 100.0, fs.Latest.Values[4])

	fs, err = Build(series(200), 1)
	require.NoError(t, err)
	for _, r := range fs.Rows {
		assert.GreaterOrEqual(t, r.Values[4], 0.0)
		assert.LessOrEqual(t, r.Values[4], 100.0)
	}

	flat := make([]float64, 20)
	for i := range flat {
		flat[i] = 10
	}
	assert.Equal(t, 50.0, RSI(flat, 19, 14))
}

func TestBuildDropsRowsAcrossGaps(t *testing.T) {
	hist := series(130)
	// a 30 day hole after index 59
	for i := 60; i < len(hist); i++ {
		hist[i].Date = hist[i].Date.AddDate(0, 0, 30)
	}
	fs, err := Build(hist, 1)
	require.NoError(t, err)

	for _, r := range fs.Rows {
		before := !r.Date.After(hist[59].Date)
		if before {
			assert.True(t, r.Date.Before(hist[59].Date), "label of %s crosses the gap", r.Date)
		} else {
			assert.False(t, r.Date.Before(hist[60+Warmup].Date), "lookback of %s crosses the gap", r.Date)
		}
	}
	// 10 rows before the gap (49..58) and 20 after (109..128)
	assert.Len(t, fs.Rows, 30)

	_, err = Build(hist, 1, WithMaxGap(60*24*time.Hour))
	require.NoError(t, err)
}

func TestBuildAnchorIgnoresPointsBeforeLastGap(t *testing.T) {
	hist := series(130)
	for i := 0; i < 60; i++ {
		if i%2 == 0 {
			hist[i].Open += 25
			hist[i].High += 25
			hist[i].Low += 25
			hist[i].Close += 25
		}
	}
	for i := 60; i < len(hist); i++ {
		hist[i].Date = hist[i].Date.AddDate(0, 0, 30)
	}
	fs, err := Build(hist, 1)
	require.NoError(t, err)

	assert.InDelta(t, SampleStd(ComputeReturns(hist[60:])), fs.Anchor.DailyVolatility, 1e-12)
	assert.Less(t, fs.Anchor.DailyVolatility, SampleStd(ComputeReturns(hist)))
	// 70 points after the gap, so drift spans 35 days
	assert.InDelta(t, (hist[129].Close-hist[95].Close)/35, fs.Anchor.DriftPerDay, 1e-12)
}

func TestBuildFailsWhenLatestSegmentTooShort(t *testing.T) {
	hist := series(100)
	for i := 90; i < len(hist); i++ {
		hist[i].Date = hist[i].Date.AddDate(0, 0, 30)
	}
	_, err := Build(hist, 1)
	assert.ErrorIs(t, err, models.ErrInsufficientHistory)
}

func TestBuildRejectsInvalidInput(t *testing.T) {
	cases := map[string]func([]models.PricePoint){
		"negative volume":   func(h []models.PricePoint) { h[10].Volume = -1 },
		"zero close":        func(h []models.PricePoint) { h[10].Close = 0 },
		"duplicate date":    func(h []models.PricePoint) { h[11].Date = h[10].Date },
		"out of order date": func(h []models.PricePoint) { h[11].Date = h[9].Date },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			hist := series(80)
			mutate(hist)
			_, err := Build(hist, 1)
			assert.ErrorIs(t, err, models.ErrInvalidInput)
		})
	}

	_, err := Build(series(80), 0)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestBuildIsDeterministic(t *testing.T) {
	a, err := Build(series(150), 6)
	require.NoError(t, err)
	b, err := Build(series(150), 6)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRatioFallbacks(t *testing.T) {
	hist := series(60)
	hist[59].Low = 0
	hist[59].Open = 0
	fs, err := Build(hist, 1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, fs.Latest.Values[11])
	assert.Equal(t, 1.0, fs.Latest.Values[12])
}

func TestSampleStdUsesUnbiasedEstimator(t *testing.T) {
	xs := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, math.Sqrt(32.0/7), SampleStd(xs), 1e-12)
	assert.Equal(t, 0.0, SampleStd(xs[:1]))
	assert.InDelta(t, SampleStd(xs[2:6]), RollingStd(xs, 5, 4), 1e-12)
	assert.Equal(t, 0.0, RollingStd(xs, 2, 4))
}
