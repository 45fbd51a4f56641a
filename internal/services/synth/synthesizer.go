package synth

import (
	"math"

	"FinCast/internal/domain/models"
	"FinCast/internal/services/registry"

	"github.com/shopspring/decimal"
)

// Policy holds the recommendation and confidence thresholds.
type Policy struct {
	BuyThreshold   float64 `yaml:"buy_threshold" default:"0.05" validate:"gt=0,lt=1"`
	SellThreshold  float64 `yaml:"sell_threshold" default:"0.05" validate:"gt=0,lt=1"`
	HighR2         float64 `yaml:"high_r2" default:"0.5"`
	HighConfidence float64 `yaml:"high_confidence" default:"70" validate:"gte=0,lte=100"`
}

// DefaultPolicy returns the built-in thresholds.
func DefaultPolicy() Policy {
	return Policy{BuyThreshold: 0.05, SellThreshold: 0.05, HighR2: 0.5, HighConfidence: 70}
}

// Synthesis is the policy summary of one forecast.
type Synthesis struct {
	Trend          models.Trend
	Targets        models.PriceTargets
	Recommendation models.Recommendation
	Confidence     models.ConfidenceLevel
}

type Synthesizer struct {
	policy Policy
}

func New(p Policy) *Synthesizer {
	return &Synthesizer{policy: p}
}

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Synthesize derives trend, price targets, recommendation and confidence from a forecast.
// Targets apply the profile's triplet in the trend's direction. A bearish leg of 100% or
// more clamps at zero price and -100%.
func (s *Synthesizer) Synthesize(current float64, preds []models.Prediction, p registry.Profile, m models.ModelMetrics) (Synthesis, error) {
	if current < 0 || math.IsNaN(current) || math.IsInf(current, 0) {
		return Synthesis{}, &models.InvalidInputError{Field: "current_price", Reason: "must be a non-negative number"}
	}
	if len(preds) == 0 {
		return Synthesis{}, &models.InvalidInputError{Field: "predictions", Reason: "must not be empty"}
	}

	final := preds[len(preds)-1].Predicted
	out := Synthesis{Trend: models.TrendBearish}
	if final > current {
		out.Trend = models.TrendBullish
	}

	price := decimal.NewFromFloat(current)
	target := func(frac float64) (float64, float64) {
		pct := decimal.NewFromFloat(frac)
		if out.Trend == models.TrendBearish {
			pct = decimal.Min(pct, one).Neg()
		}
		return price.Mul(one.Add(pct)).Round(2).InexactFloat64(),
			pct.Mul(hundred).Round(2).InexactFloat64()
	}
	out.Targets.Conservative, out.Targets.ConservativePct = target(p.Targets.Conservative)
	out.Targets.Moderate, out.Targets.ModeratePct = target(p.Targets.Moderate)
	out.Targets.Aggressive, out.Targets.AggressivePct = target(p.Targets.Aggressive)

	switch {
	case final > current*(1+s.policy.BuyThreshold):
		out.Recommendation = models.RecommendBuy
	case final < current*(1-s.policy.SellThreshold):
		out.Recommendation = models.RecommendSell
	default:
		out.Recommendation = models.RecommendHold
	}

	var conf float64
	for _, pr := range preds {
		conf += pr.Confidence
	}
	conf /= float64(len(preds))
	goodFit := m.R2 > s.policy.HighR2
	confident := conf > s.policy.HighConfidence
	switch {
	case goodFit && confident:
		out.Confidence = models.ConfidenceHigh
	case goodFit || confident:
		out.Confidence = models.ConfidenceMedium
	default:
		out.Confidence = models.ConfidenceLow
	}
	return out, nil
}
