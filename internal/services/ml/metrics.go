package ml

import (
	"math"

	"FinCast/internal/domain/models"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Evaluate computes RMSE, MAE, R² and MAPE (percent) of predictions against actuals.
// R² is 1 for a perfect fit of a constant series and 0 for any other fit of one;
// MAPE skips zero actuals. No field is ever NaN.
func Evaluate(actual, predicted []float64) models.ModelMetrics {
	n := len(actual)
	if n == 0 || n != len(predicted) {
		return models.ModelMetrics{}
	}

	var ape float64
	apeN := 0
	for i, a := range actual {
		if a != 0 {
			ape += math.Abs((a - predicted[i]) / a)
			apeN++
		}
	}

	m := models.ModelMetrics{
		RMSE: floats.Distance(actual, predicted, 2) / math.Sqrt(float64(n)),
		MAE:  floats.Distance(actual, predicted, 1) / float64(n),
	}
	switch {
	case n > 1 && stat.Variance(actual, nil) > 0:
		m.R2 = stat.RSquaredFrom(predicted, actual, nil)
	case floats.Equal(actual, predicted):
		m.R2 = 1
	default:
		m.R2 = 0
	}
	if apeN > 0 {
		m.MAPE = ape / float64(apeN) * 100
	}
	return m
}
