package models

import (
	"encoding/json"
	"time"
)

type Trend string

const (
	TrendBullish Trend = "Bullish"
	TrendBearish Trend = "Bearish"
)

type Recommendation string

const (
	RecommendBuy  Recommendation = "BUY"
	RecommendSell Recommendation = "SELL"
	RecommendHold Recommendation = "HOLD"
)

type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "Low"
	ConfidenceMedium ConfidenceLevel = "Medium"
	ConfidenceHigh   ConfidenceLevel = "High"
)

// Prediction is one dated forecast step with its confidence band.
type Prediction struct {
	Date       time.Time
	DaysAhead  int
	Predicted  float64
	UpperBound float64
	LowerBound float64
	Confidence float64
}

// MarshalJSON renders the date as YYYY-MM-DD.
func (p Prediction) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date       string  `json:"date"`
		DaysAhead  int     `json:"daysAhead"`
		Predicted  float64 `json:"predicted"`
		UpperBound float64 `json:"upperBound"`
		LowerBound float64 `json:"lowerBound"`
		Confidence float64 `json:"confidence"`
	}{
		Date:       p.Date.Format(time.DateOnly),
		DaysAhead:  p.DaysAhead,
		Predicted:  p.Predicted,
		UpperBound: p.UpperBound,
		LowerBound: p.LowerBound,
		Confidence: p.Confidence,
	})
}

// ModelMetrics holds held-out evaluation scores of one training run.
type ModelMetrics struct {
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
	R2   float64 `json:"r2"`
	MAPE float64 `json:"mape"`
}

// PriceTargets are policy targets around the current price. Pct fields are signed percentages.
type PriceTargets struct {
	Conservative    float64 `json:"conservative"`
	Moderate        float64 `json:"moderate"`
	Aggressive      float64 `json:"aggressive"`
	ConservativePct float64 `json:"conservative_pct"`
	ModeratePct     float64 `json:"moderate_pct"`
	AggressivePct   float64 `json:"aggressive_pct"`
}

// PredictionReport is the full answer for one (symbol, timeframe).
type PredictionReport struct {
	Symbol           string          `json:"symbol"`
	Timeframe        string          `json:"timeframe"`
	CurrentPrice     float64         `json:"currentPrice"`
	Predictions      []Prediction    `json:"predictions"`
	ModelMetrics     ModelMetrics    `json:"modelMetrics"`
	Trend            Trend           `json:"trend"`
	PriceTargets     PriceTargets    `json:"priceTargets"`
	Recommendation   Recommendation  `json:"recommendation"`
	Confidence       ConfidenceLevel `json:"confidence"`
	PredictionPoints int             `json:"predictionPoints"`
	Model            string          `json:"model"`
	Cached           bool            `json:"cached"`
	TrainedAt        time.Time       `json:"trainedAt"`
}
