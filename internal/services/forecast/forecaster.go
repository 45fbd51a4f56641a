package forecast

import (
	"context"
	"math"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	"FinCast/internal/services/features"
	"FinCast/internal/services/ml"
	"FinCast/internal/services/registry"
)

const (
	bandWidth     = 2.0
	volatilityDay = 30.0
)

// ModelSource returns the cached model for a key, if any.
type ModelSource interface {
	Get(ctx context.Context, symbol string, tf domrepo.Timeframe) (*ml.TrainedModel, bool)
}

type Forecaster struct {
	models   ModelSource
	profiles *registry.Registry
}

func New(src ModelSource, profiles *registry.Registry) *Forecaster {
	return &Forecaster{models: src, profiles: profiles}
}

// Forecast projects the cached model for (symbol, tf) from the latest feature row.
func (f *Forecaster) Forecast(ctx context.Context, symbol string, tf domrepo.Timeframe, latest features.Row, anchor features.Anchor) ([]models.Prediction, error) {
	p, err := f.profiles.Resolve(tf)
	if err != nil {
		return nil, err
	}
	m, ok := f.models.Get(ctx, symbol, tf)
	if !ok {
		return nil, &models.ModelNotTrainedError{Symbol: symbol, Timeframe: tf.String()}
	}
	return Project(m, p, latest.Values, anchor), nil
}

// Project builds HorizonSteps dated predictions with widening bands and fading confidence.
// The model sees the same latest feature vector at every step; horizon enters through the
// calendar offset only.
func Project(m *ml.TrainedModel, p registry.Profile, latest []float64, anchor features.Anchor) []models.Prediction {
	base := m.Predict(latest)
	out := make([]models.Prediction, 0, p.HorizonSteps)
	for i := 1; i <= p.HorizonSteps; i++ {
		date := p.Step.After(anchor.LastDate, i)
		days := daysBetween(anchor.LastDate, date)

		point := base
		if p.TrendAdjusted {
			point += anchor.DriftPerDay * float64(days)
		}
		point = math.Max(0, point)

		sd := anchor.DailyVolatility * anchor.CurrentPrice * math.Sqrt(float64(days)/volatilityDay)
		out = append(out, models.Prediction{
			Date:       date,
			DaysAhead:  days,
			Predicted:  point,
			UpperBound: point + bandWidth*sd,
			LowerBound: math.Max(0, point-bandWidth*sd),
			Confidence: math.Max(0, 100-float64(days)/float64(p.TotalDays)*50),
		})
	}
	return out
}

// daysBetween counts calendar days, ignoring clock time and DST shifts.
func daysBetween(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
