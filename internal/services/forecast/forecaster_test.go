package forecast

import (
	"context"
	"testing"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	"FinCast/internal/services/features"
	"FinCast/internal/services/ml"
	"FinCast/internal/services/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type constant float64

func (c constant) Family() ml.Family                    { return ml.RidgeFamily }
func (c constant) Fit(_ [][]float64, _ []float64) error { return nil }
func (c constant) Predict(_ []float64) float64          { return float64(c) }

func model(tf domrepo.Timeframe, price float64) *ml.TrainedModel {
	return &ml.TrainedModel{Symbol: "RELIANCE", Timeframe: tf, Estimator: constant(price), Scaler: &ml.Scaler{}}
}

type source map[string]*ml.TrainedModel

func (s source) Get(_ context.Context, symbol string, tf domrepo.Timeframe) (*ml.TrainedModel, bool) {
	m, ok := s[symbol+"/"+tf.String()]
	return m, ok
}

var anchor = features.Anchor{
	LastDate:        time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC),
	CurrentPrice:    2850.50,
	DailyVolatility: 0.015,
	DriftPerDay:     0.8,
}

func TestProjectInvariantsForEveryTimeframe(t *testing.T) {
	reg := registry.New()
	for _, p := range reg.All() {
		t.Run(p.Timeframe.String(), func(t *testing.T) {
			preds := Project(model(p.Timeframe, 2900), p, []float64{1}, anchor)
			require.Len(t, preds, p.HorizonSteps)

			prevDays := 0
			prevDate := anchor.LastDate
			prevConf := 100.0
			for _, pr := range preds {
				assert.Greater(t, pr.DaysAhead, prevDays)
				assert.True(t, pr.Date.After(prevDate))
				assert.LessOrEqual(t, pr.Confidence, prevConf)
				assert.GreaterOrEqual(t, pr.Confidence, 0.0)
				assert.LessOrEqual(t, pr.LowerBound, pr.Predicted)
				assert.LessOrEqual(t, pr.Predicted, pr.UpperBound)
				assert.GreaterOrEqual(t, pr.LowerBound, 0.0)
				prevDays, prevDate, prevConf = pr.DaysAhead, pr.Date, pr.Confidence
			}
		})
	}
}

func TestProjectStepSpacing(t *testing.T) {
	p, err := registry.Resolve(domrepo.TF6M)
	require.NoError(t, err)
	preds := Project(model(domrepo.TF6M, 100), p, nil, anchor)
	assert.Equal(t, 7, preds[0].DaysAhead)
	assert.Equal(t, 182, preds[25].DaysAhead)
	assert.Equal(t, anchor.LastDate.AddDate(0, 0, 7), preds[0].Date)

	p, err = registry.Resolve(domrepo.TF5Y)
	require.NoError(t, err)
	preds = Project(model(domrepo.TF5Y, 100), p, nil, anchor)
	assert.Equal(t, time.Date(2024, 7, 28, 0, 0, 0, 0, time.UTC), preds[0].Date)
	assert.Equal(t, 30, preds[0].DaysAhead)
	assert.Equal(t, time.Date(2029, 6, 28, 0, 0, 0, 0, time.UTC), preds[59].Date)
}

func TestProjectTrendAdjustment(t *testing.T) {
	p1m, err := registry.Resolve(domrepo.TF1M)
	require.NoError(t, err)
	flat := Project(model(domrepo.TF1M, 2900), p1m, nil, anchor)
	for _, pr := range flat {
		assert.Equal(t, 2900.0, pr.Predicted)
	}

	p1y, err := registry.Resolve(domrepo.TF1Y)
	require.NoError(t, err)
	trended := Project(model(domrepo.TF1Y, 2900), p1y, nil, anchor)
	assert.InDelta(t, 2900+0.8*7, trended[0].Predicted, 1e-9)
	assert.InDelta(t, 2900+0.8*364, trended[51].Predicted, 1e-9)
}

func TestProjectClampsAtZero(t *testing.T) {
	p, err := registry.Resolve(domrepo.TF1Y)
	require.NoError(t, err)
	falling := anchor
	falling.DriftPerDay = -50
	for _, pr := range Project(model(domrepo.TF1Y, 100), p, nil, falling) {
		assert.GreaterOrEqual(t, pr.Predicted, 0.0)
		assert.GreaterOrEqual(t, pr.LowerBound, 0.0)
	}
}

func TestForecastRequiresTrainedModel(t *testing.T) {
	f := New(source{"RELIANCE/1Y": model(domrepo.TF1Y, 3000)}, registry.New())

	preds, err := f.Forecast(context.Background(), "RELIANCE", domrepo.TF1Y, features.Row{}, anchor)
	require.NoError(t, err)
	assert.Len(t, preds, 52)

	_, err = f.Forecast(context.Background(), "RELIANCE", domrepo.TF5Y, features.Row{}, anchor)
	assert.ErrorIs(t, err, models.ErrModelNotTrained)

	_, err = f.Forecast(context.Background(), "RELIANCE", "7D", features.Row{}, anchor)
	assert.ErrorIs(t, err, models.ErrUnknownTimeframe)
}
