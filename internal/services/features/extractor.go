package features

import (
	"math"

	"FinCast/internal/domain/models"

	"gonum.org/v1/gonum/stat"
)

// ComputeReturns computes simple daily returns r_t = C_t / C_{t-1} - 1.
// It returns a slice of length len(points)-1, or nil if insufficient data.
func ComputeReturns(points []models.PricePoint) []float64 {
	if len(points) < 2 {
		return nil
	}
	out := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		prev := points[i-1].Close
		if prev <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, points[i].Close/prev-1)
	}
	return out
}

// SampleStd returns the sample standard deviation (n-1 denominator) of xs.
func SampleStd(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	return stat.StdDev(xs, nil)
}

// RollingStd returns the sample std of the window ending at index end (inclusive).
func RollingStd(xs []float64, end, window int) float64 {
	if window <= 1 || end+1 < window || end >= len(xs) {
		return 0
	}
	return SampleStd(xs[end-window+1 : end+1])
}

// RSI computes the 14-style relative strength index at index i of closes from simple
// averages of the gains and losses over the previous period deltas, clipped to [0,100].
func RSI(closes []float64, i, period int) float64 {
	if period <= 0 || i < period {
		return 50
	}
	var gain, loss float64
	for j := i - period + 1; j <= i; j++ {
		d := closes[j] - closes[j-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	gain /= float64(period)
	loss /= float64(period)
	switch {
	case loss == 0 && gain == 0:
		return 50
	case loss == 0:
		return 100
	}
	rsi := 100 - 100/(1+gain/loss)
	return math.Max(0, math.Min(100, rsi))
}
