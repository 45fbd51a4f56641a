package ml

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Family names an estimator implementation.
type Family string

const (
	RandomForestFamily     Family = "random_forest"
	GradientBoostingFamily Family = "gradient_boosting"
	RidgeFamily            Family = "ridge"
)

// DisplayName returns a human readable model name.
func (f Family) DisplayName() string {
	switch f {
	case RandomForestFamily:
		return "Random Forest"
	case GradientBoostingFamily:
		return "Gradient Boosting"
	case RidgeFamily:
		return "Ridge Regression"
	default:
		return string(f)
	}
}

var (
	ErrUnknownFamily = errors.New("ml: unknown estimator family")
	ErrEmptyTrainSet = errors.New("ml: empty training set")
)

// Params holds hyperparameters for every family; each family reads the fields it needs.
type Params struct {
	Trees           int     `json:"trees,omitempty"`
	MaxDepth        int     `json:"max_depth,omitempty"`
	MinSamplesSplit int     `json:"min_samples_split,omitempty"`
	LearningRate    float64 `json:"learning_rate,omitempty"`
	Alpha           float64 `json:"alpha,omitempty"`
	Seed            int64   `json:"seed,omitempty"`
}

// Estimator is a regression model over scaled feature vectors.
type Estimator interface {
	Family() Family
	Fit(X [][]float64, y []float64) error
	Predict(x []float64) float64
}

// ImportanceReporter is implemented by estimators that expose per-feature importances.
// Values are aligned with the training columns and sum to 1 when non-zero.
type ImportanceReporter interface {
	FeatureImportances() []float64
}

// New builds an unfitted estimator for the family.
func New(family Family, p Params) (Estimator, error) {
	switch family {
	case RandomForestFamily:
		return NewRandomForest(p), nil
	case GradientBoostingFamily:
		return NewGradientBoosting(p), nil
	case RidgeFamily:
		return NewRidge(p), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, family)
	}
}

type estimatorEnvelope struct {
	Family  Family          `json:"family"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalEstimator encodes a fitted estimator together with its family tag.
func MarshalEstimator(e Estimator) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", e.Family(), err)
	}
	return json.Marshal(estimatorEnvelope{Family: e.Family(), Payload: payload})
}

// UnmarshalEstimator decodes an estimator produced by MarshalEstimator.
func UnmarshalEstimator(b []byte) (Estimator, error) {
	var env estimatorEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode estimator envelope: %w", err)
	}
	e, err := New(env.Family, Params{})
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(env.Payload, e); err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Family, err)
	}
	return e, nil
}

func checkTrainSet(X [][]float64, y []float64) error {
	if len(X) == 0 || len(X[0]) == 0 {
		return ErrEmptyTrainSet
	}
	if len(X) != len(y) {
		return fmt.Errorf("ml: %d rows but %d targets", len(X), len(y))
	}
	return nil
}
