package models

import "time"

// ModelComparisonEntry summarizes one estimator family trained on the same data.
type ModelComparisonEntry struct {
	Name           string          `json:"name"`
	Family         string          `json:"family"`
	Metrics        *ModelMetrics   `json:"metrics,omitempty"`
	Recommendation Recommendation  `json:"recommendation,omitempty"`
	Confidence     ConfidenceLevel `json:"confidence,omitempty"`
	Available      bool            `json:"available"`
	Note           string          `json:"note,omitempty"`
}

// ModelComparison is the result of training every available family for a key.
type ModelComparison struct {
	Symbol    string                 `json:"symbol"`
	Timeframe string                 `json:"timeframe"`
	Models    []ModelComparisonEntry `json:"models"`
	BestModel string                 `json:"bestModel"`
	BestR2    float64                `json:"bestR2"`
}

// TimeframeAnalysis consolidates predictions for all horizons of a symbol.
// Note: failed horizons are nil in Predictions and explained in Errors.
type TimeframeAnalysis struct {
	Symbol       string                       `json:"symbol"`
	CurrentPrice float64                      `json:"currentPrice"`
	Predictions  map[string]*PredictionReport `json:"predictions"`
	Errors       map[string]string            `json:"errors,omitempty"`
	Timestamp    time.Time                    `json:"timestamp"`
}

// RefreshResult describes a forced retraining.
type RefreshResult struct {
	Symbol       string       `json:"symbol"`
	Timeframe    string       `json:"timeframe"`
	Model        string       `json:"model"`
	Metrics      ModelMetrics `json:"modelMetrics"`
	TrainSamples int          `json:"trainSamples"`
	TestSamples  int          `json:"testSamples"`
	TrainedAt    time.Time    `json:"trainedAt"`
}

// ImportanceReport lists the strongest features of a cached model.
type ImportanceReport struct {
	Symbol      string              `json:"symbol"`
	Timeframe   string              `json:"timeframe"`
	Model       string              `json:"model"`
	Importances []FeatureImportance `json:"importances"`
}

// ModelEvent types.
const (
	EventRetrain    = "retrain"
	EventInvalidate = "invalidate"
)

// ModelEvent is the model lifecycle message exchanged between instances.
type ModelEvent struct {
	Type      string    `json:"type"`
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Origin    string    `json:"origin,omitempty"`
	At        time.Time `json:"at"`
}
