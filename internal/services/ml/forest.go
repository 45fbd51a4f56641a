package ml

import (
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// RandomForest averages bootstrap-sampled regression trees.
type RandomForest struct {
	Params      Params            `json:"params"`
	Trees       []*RegressionTree `json:"trees"`
	Importances []float64         `json:"importances"`
}

// NewRandomForest creates an unfitted forest. Zero params fall back to 100 trees of depth 10.
func NewRandomForest(p Params) *RandomForest {
	if p.Trees <= 0 {
		p.Trees = 100
	}
	if p.MaxDepth <= 0 {
		p.MaxDepth = 10
	}
	if p.MinSamplesSplit < 2 {
		p.MinSamplesSplit = 2
	}
	return &RandomForest{Params: p}
}

func (f *RandomForest) Family() Family { return RandomForestFamily }

// Fit grows every tree in parallel. Tree i draws its bootstrap sample from Seed+i,
// so the fitted forest does not depend on scheduling.
func (f *RandomForest) Fit(X [][]float64, y []float64) error {
	if err := checkTrainSet(X, y); err != nil {
		return err
	}
	n := len(X)
	trees := make([]*RegressionTree, f.Params.Trees)

	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range trees {
		g.Go(func() error {
			rng := rand.New(rand.NewSource(f.Params.Seed + int64(i)))
			idx := make([]int, n)
			for j := range idx {
				idx[j] = rng.Intn(n)
			}
			t := newRegressionTree(f.Params.MaxDepth, f.Params.MinSamplesSplit)
			t.fit(X, y, idx)
			trees[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	imp := make([]float64, len(X[0]))
	for _, t := range trees {
		ti := normalize(append([]float64(nil), t.importance...))
		for j, v := range ti {
			imp[j] += v
		}
	}
	f.Trees = trees
	f.Importances = normalize(imp)
	return nil
}

func (f *RandomForest) Predict(x []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	var sum float64
	for _, t := range f.Trees {
		sum += t.Predict(x)
	}
	return sum / float64(len(f.Trees))
}

func (f *RandomForest) FeatureImportances() []float64 { return f.Importances }
