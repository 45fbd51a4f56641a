package ml

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
)

// TrainedModel owns a fitted estimator and the scaler fitted on its training partition.
type TrainedModel struct {
	Symbol       string
	Timeframe    domrepo.Timeframe
	Family       Family
	Estimator    Estimator
	Scaler       *Scaler
	FeatureNames []string
	Metrics      models.ModelMetrics
	Importances  []models.FeatureImportance
	TrainedAt    time.Time
	TrainSamples int
	TestSamples  int
}

// Predict scales a raw feature vector and runs the estimator on it.
func (m *TrainedModel) Predict(x []float64) float64 {
	return m.Estimator.Predict(m.Scaler.Transform(x))
}

// TopImportances returns at most n importances, strongest first.
func (m *TrainedModel) TopImportances(n int) []models.FeatureImportance {
	if n <= 0 || n >= len(m.Importances) {
		return append([]models.FeatureImportance{}, m.Importances...)
	}
	return append([]models.FeatureImportance{}, m.Importances[:n]...)
}

// RankImportances pairs names with the reporter's scores, sorted descending.
// Estimators without the capability yield an empty list.
func RankImportances(names []string, e Estimator) []models.FeatureImportance {
	rep, ok := e.(ImportanceReporter)
	if !ok {
		return []models.FeatureImportance{}
	}
	values := rep.FeatureImportances()
	out := make([]models.FeatureImportance, 0, len(values))
	for i, v := range values {
		if i >= len(names) {
			break
		}
		out = append(out, models.FeatureImportance{Feature: names[i], Importance: v})
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Importance == out[b].Importance {
			return out[a].Feature < out[b].Feature
		}
		return out[a].Importance > out[b].Importance
	})
	return out
}

type trainedModelJSON struct {
	Symbol       string                     `json:"symbol"`
	Timeframe    string                     `json:"timeframe"`
	Family       Family                     `json:"family"`
	Estimator    json.RawMessage            `json:"estimator"`
	Scaler       *Scaler                    `json:"scaler"`
	FeatureNames []string                   `json:"feature_names"`
	Metrics      models.ModelMetrics        `json:"metrics"`
	Importances  []models.FeatureImportance `json:"importances"`
	TrainedAt    time.Time                  `json:"trained_at"`
	TrainSamples int                        `json:"train_samples"`
	TestSamples  int                        `json:"test_samples"`
}

// MarshalJSON encodes the model as a self-describing snapshot.
func (m *TrainedModel) MarshalJSON() ([]byte, error) {
	est, err := MarshalEstimator(m.Estimator)
	if err != nil {
		return nil, err
	}
	return json.Marshal(trainedModelJSON{
		Symbol:       m.Symbol,
		Timeframe:    string(m.Timeframe),
		Family:       m.Family,
		Estimator:    est,
		Scaler:       m.Scaler,
		FeatureNames: m.FeatureNames,
		Metrics:      m.Metrics,
		Importances:  m.Importances,
		TrainedAt:    m.TrainedAt,
		TrainSamples: m.TrainSamples,
		TestSamples:  m.TestSamples,
	})
}

// UnmarshalJSON restores a snapshot written by MarshalJSON.
func (m *TrainedModel) UnmarshalJSON(b []byte) error {
	var raw trainedModelJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("decode trained model: %w", err)
	}
	est, err := UnmarshalEstimator(raw.Estimator)
	if err != nil {
		return err
	}
	if raw.Scaler == nil {
		raw.Scaler = &Scaler{}
	}
	*m = TrainedModel{
		Symbol:       raw.Symbol,
		Timeframe:    domrepo.Timeframe(raw.Timeframe),
		Family:       raw.Family,
		Estimator:    est,
		Scaler:       raw.Scaler,
		FeatureNames: raw.FeatureNames,
		Metrics:      raw.Metrics,
		Importances:  raw.Importances,
		TrainedAt:    raw.TrainedAt,
		TrainSamples: raw.TrainSamples,
		TestSamples:  raw.TestSamples,
	}
	return nil
}
