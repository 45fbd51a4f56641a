package features

import (
	"fmt"
	"math"
	"time"

	"FinCast/internal/domain/models"

	"github.com/sdcoffey/big"
	"github.com/sdcoffey/techan"
)

const (
	// Warmup is the index of the first point with a full lookback (the 50-day moving average).
	Warmup = 49

	rsiPeriod      = 14
	momentumPeriod = 10
	volWindow      = 20
	volumeWindow   = 20
	maxLag         = 5
	driftWindow    = 90

	DefaultMaxGap = 7 * 24 * time.Hour
)

var maWindows = []int{5, 10, 20, 50}

// Names lists the feature columns in the order of Row.Values.
var Names = []string{
	"ma5", "ma10", "ma20", "ma50",
	"rsi14", "momentum10", "roc10", "volatility20", "volume_ratio20",
	"macd", "macd_hist",
	"high_low_ratio", "close_open_ratio",
	"lag1", "lag2", "lag3", "lag4", "lag5",
}

// Row is the feature vector of one price point.
type Row struct {
	Date   time.Time
	Values []float64
}

// Anchor carries the series statistics the forecaster projects from.
type Anchor struct {
	LastDate        time.Time
	CurrentPrice    float64
	DailyVolatility float64
	DriftPerDay     float64
}

// FeatureSet is the aligned training matrix plus the latest feature row.
type FeatureSet struct {
	Names   []string
	Rows    []Row
	Targets []float64
	Latest  Row
	Anchor  Anchor
}

// Matrix returns the feature values of every training row.
func (fs *FeatureSet) Matrix() [][]float64 {
	out := make([][]float64, len(fs.Rows))
	for i, r := range fs.Rows {
		out[i] = r.Values
	}
	return out
}

// Config tunes the builder.
type Config struct {
	MaxGap time.Duration
}

// Option configures Build.
type Option func(*Config)

// WithMaxGap sets the largest distance between consecutive points that is not a gap.
func WithMaxGap(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.MaxGap = d
		}
	}
}

// MinHistory is the smallest series that yields one labelled row for a target shift.
func MinHistory(shift int) int { return Warmup + 1 + shift }

// Validate rejects unordered dates, negative values and non-positive closes.
func Validate(history []models.PricePoint) error {
	for i, p := range history {
		if p.Open < 0 || p.High < 0 || p.Low < 0 || p.Volume < 0 {
			return &models.InvalidInputError{Field: "price", Reason: fmt.Sprintf("negative value at %s", p.Date.Format(time.DateOnly))}
		}
		if p.Close <= 0 || math.IsNaN(p.Close) || math.IsInf(p.Close, 0) {
			return &models.InvalidInputError{Field: "close", Reason: fmt.Sprintf("must be positive at %s", p.Date.Format(time.DateOnly))}
		}
		if i > 0 && !p.Date.After(history[i-1].Date) {
			return &models.InvalidInputError{Field: "date", Reason: fmt.Sprintf("not strictly increasing at %s", p.Date.Format(time.DateOnly))}
		}
	}
	return nil
}

// Build turns an ordered price history into feature rows labelled with close[t+shift].
// Rows lacking a full lookback, or whose lookback or label crosses a gap, are dropped.
func Build(history []models.PricePoint, shift int, opts ...Option) (*FeatureSet, error) {
	cfg := &Config{MaxGap: DefaultMaxGap}
	for _, opt := range opts {
		opt(cfg)
	}
	if shift < 1 {
		return nil, &models.InvalidInputError{Field: "shift", Reason: "must be at least 1"}
	}
	if err := Validate(history); err != nil {
		return nil, err
	}
	n := len(history)
	need := MinHistory(shift)
	if n < need {
		return nil, &models.InsufficientHistoryError{Have: n, Need: need}
	}

	series := techan.NewTimeSeries()
	closes := make([]float64, n)
	for i, p := range history {
		c := techan.NewCandle(techan.NewTimePeriod(p.Date, time.Nanosecond))
		c.OpenPrice = big.NewDecimal(p.Open)
		c.ClosePrice = big.NewDecimal(p.Close)
		c.MaxPrice = big.NewDecimal(p.High)
		c.MinPrice = big.NewDecimal(p.Low)
		c.Volume = big.NewDecimal(p.Volume)
		if !series.AddCandle(c) {
			return nil, &models.InvalidInputError{Field: "date", Reason: "rejected by series at " + p.Date.Format(time.DateOnly)}
		}
		closes[i] = p.Close
	}

	closeInd := techan.NewClosePriceIndicator(series)
	mas := make([]techan.Indicator, len(maWindows))
	for k, w := range maWindows {
		mas[k] = techan.NewSimpleMovingAverage(closeInd, w)
	}
	volumeMA := techan.NewSimpleMovingAverage(techan.NewVolumeIndicator(series), volumeWindow)
	macd := techan.NewMACDIndicator(closeInd, 12, 26)
	macdHist := techan.NewMACDHistogramIndicator(macd, 9)
	returns := ComputeReturns(history)
	segs := segments(history, cfg.MaxGap)

	vector := func(i int) []float64 {
		p := history[i]
		v := make([]float64, 0, len(Names))
		for _, ma := range mas {
			v = append(v, ma.Calculate(i).Float())
		}
		v = append(v,
			RSI(closes, i, rsiPeriod),
			closes[i]-closes[i-momentumPeriod],
			(closes[i]/closes[i-momentumPeriod]-1)*100,
			RollingStd(returns, i-1, volWindow),
			ratio(p.Volume, volumeMA.Calculate(i).Float()),
			macd.Calculate(i).Float(),
			macdHist.Calculate(i).Float(),
			ratio(p.High, p.Low),
			ratio(p.Close, p.Open),
		)
		for lag := 1; lag <= maxLag; lag++ {
			v = append(v, closes[i-lag])
		}
		return v
	}

	fs := &FeatureSet{Names: append([]string(nil), Names...)}
	for i := Warmup; i+shift < n; i++ {
		if segs[i-Warmup] != segs[i] || segs[i+shift] != segs[i] {
			continue
		}
		fs.Rows = append(fs.Rows, Row{Date: history[i].Date, Values: vector(i)})
		fs.Targets = append(fs.Targets, closes[i+shift])
	}
	last := n - 1
	if len(fs.Rows) == 0 || segs[last-Warmup] != segs[last] {
		return nil, &models.InsufficientHistoryError{Have: longestSegment(segs), Need: need}
	}
	fs.Latest = Row{Date: history[last].Date, Values: vector(last)}

	// The anchor only sees the final gap-free run.
	first := last
	for first > 0 && segs[first-1] == segs[last] {
		first--
	}
	trendDays := min(driftWindow, (n-first)/2)
	fs.Anchor = Anchor{
		LastDate:        history[last].Date,
		CurrentPrice:    closes[last],
		DailyVolatility: SampleStd(returns[first:]),
		DriftPerDay:     (closes[last] - closes[n-trendDays]) / float64(trendDays),
	}
	return fs, nil
}

// segments labels each point with the index of its gap-free run.
func segments(history []models.PricePoint, maxGap time.Duration) []int {
	segs := make([]int, len(history))
	for i := 1; i < len(history); i++ {
		segs[i] = segs[i-1]
		if history[i].Date.Sub(history[i-1].Date) > maxGap {
			segs[i]++
		}
	}
	return segs
}

func longestSegment(segs []int) int {
	best, run := 0, 0
	for i := range segs {
		if i > 0 && segs[i] != segs[i-1] {
			run = 0
		}
		run++
		best = max(best, run)
	}
	return best
}

func ratio(a, b float64) float64 {
	if b == 0 {
		return 1
	}
	return a / b
}
