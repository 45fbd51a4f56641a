package registry

import (
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	"FinCast/internal/services/ml"
)

// Step is the spacing of forecast points. Exactly one of Days or Months is set.
type Step struct {
	Days   int
	Months int
}

// After returns the date of the k-th step (1-based) after from.
func (s Step) After(from time.Time, k int) time.Time {
	if s.Months > 0 {
		return from.AddDate(0, s.Months*k, 0)
	}
	return from.AddDate(0, 0, s.Days*k)
}

// Triplet holds conservative, moderate and aggressive target fractions (0.10 = 10%).
type Triplet struct {
	Conservative float64 `yaml:"conservative" json:"conservative"`
	Moderate     float64 `yaml:"moderate" json:"moderate"`
	Aggressive   float64 `yaml:"aggressive" json:"aggressive"`
}

// Profile is the static configuration of one prediction horizon.
type Profile struct {
	Timeframe      domrepo.Timeframe
	LookbackDays   int
	HorizonSteps   int
	Step           Step
	Family         ml.Family
	Params         ml.Params
	Targets        Triplet
	TotalDays      int
	TargetShift    int
	MinTestSamples int
	TrendAdjusted  bool
}

var (
	forestParams   = ml.Params{Trees: 100, MaxDepth: 10, MinSamplesSplit: 5, Seed: 42}
	boostingParams = ml.Params{Trees: 150, MaxDepth: 8, LearningRate: 0.05, MinSamplesSplit: 2, Seed: 42}
)

var profiles = map[domrepo.Timeframe]Profile{
	domrepo.TF1M: {
		Timeframe: domrepo.TF1M, LookbackDays: 180, HorizonSteps: 30, Step: Step{Days: 1},
		Family: ml.RandomForestFamily, Params: forestParams,
		Targets:   Triplet{0.05, 0.10, 0.15},
		TotalDays: 30, TargetShift: 1, MinTestSamples: 6,
	},
	domrepo.TF6M: {
		Timeframe: domrepo.TF6M, LookbackDays: 730, HorizonSteps: 26, Step: Step{Days: 7},
		Family: ml.RandomForestFamily, Params: forestParams,
		Targets:   Triplet{0.15, 0.25, 0.40},
		TotalDays: 180, TargetShift: 6, MinTestSamples: 12,
	},
	domrepo.TF1Y: {
		Timeframe: domrepo.TF1Y, LookbackDays: 1825, HorizonSteps: 52, Step: Step{Days: 7},
		Family: ml.GradientBoostingFamily, Params: boostingParams,
		Targets:   Triplet{0.20, 0.40, 0.65},
		TotalDays: 365, TargetShift: 12, MinTestSamples: 25, TrendAdjusted: true,
	},
	domrepo.TF5Y: {
		Timeframe: domrepo.TF5Y, LookbackDays: 3650, HorizonSteps: 60, Step: Step{Months: 1},
		Family: ml.GradientBoostingFamily, Params: boostingParams,
		Targets:   Triplet{0.50, 1.00, 2.00},
		TotalDays: 1825, TargetShift: 60, MinTestSamples: 50, TrendAdjusted: true,
	},
}

// Registry resolves timeframes to profiles. The zero value is not usable; use New.
type Registry struct {
	profiles map[domrepo.Timeframe]Profile
}

// Option customises a Registry.
type Option func(*Registry)

// WithTargets overrides the target triplet of one timeframe.
func WithTargets(tf domrepo.Timeframe, t Triplet) Option {
	return func(r *Registry) {
		p, ok := r.profiles[tf]
		if !ok {
			return
		}
		p.Targets = t
		r.profiles[tf] = p
	}
}

// New returns a registry seeded with the built-in profile table.
func New(opts ...Option) *Registry {
	r := &Registry{profiles: make(map[domrepo.Timeframe]Profile, len(profiles))}
	for tf, p := range profiles {
		r.profiles[tf] = p
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the profile for tf.
func (r *Registry) Resolve(tf domrepo.Timeframe) (Profile, error) {
	p, ok := r.profiles[tf]
	if !ok {
		return Profile{}, &models.UnknownTimeframeError{Value: string(tf)}
	}
	return p, nil
}

// All returns the profiles of every supported timeframe, shortest first.
func (r *Registry) All() []Profile {
	out := make([]Profile, 0, len(r.profiles))
	for _, tf := range domrepo.AllTimeframes() {
		if p, ok := r.profiles[tf]; ok {
			out = append(out, p)
		}
	}
	return out
}

var defaultRegistry = New()

// Resolve looks tf up in the built-in table.
func Resolve(tf domrepo.Timeframe) (Profile, error) { return defaultRegistry.Resolve(tf) }

// DefaultParams returns the hyperparameters used for a family outside its home timeframe.
func DefaultParams(family ml.Family) ml.Params {
	switch family {
	case ml.RandomForestFamily:
		return forestParams
	case ml.GradientBoostingFamily:
		return boostingParams
	case ml.RidgeFamily:
		return ml.Params{Alpha: 1}
	default:
		return ml.Params{}
	}
}
