package ml

// GradientBoosting fits shallow trees to least-squares residuals with shrinkage.
type GradientBoosting struct {
	Params      Params            `json:"params"`
	Init        float64           `json:"init"`
	Trees       []*RegressionTree `json:"trees"`
	Importances []float64         `json:"importances"`
}

// NewGradientBoosting creates an unfitted booster. Zero params fall back to
// 100 stages of depth 3 with learning rate 0.1.
func NewGradientBoosting(p Params) *GradientBoosting {
	if p.Trees <= 0 {
		p.Trees = 100
	}
	if p.MaxDepth <= 0 {
		p.MaxDepth = 3
	}
	if p.LearningRate <= 0 {
		p.LearningRate = 0.1
	}
	if p.MinSamplesSplit < 2 {
		p.MinSamplesSplit = 2
	}
	return &GradientBoosting{Params: p}
}

func (g *GradientBoosting) Family() Family { return GradientBoostingFamily }

func (g *GradientBoosting) Fit(X [][]float64, y []float64) error {
	if err := checkTrainSet(X, y); err != nil {
		return err
	}
	n := len(X)
	idx := make([]int, n)
	var sum float64
	for i := range idx {
		idx[i] = i
		sum += y[i]
	}
	g.Init = sum / float64(n)

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = g.Init
	}
	resid := make([]float64, n)
	imp := make([]float64, len(X[0]))
	g.Trees = make([]*RegressionTree, 0, g.Params.Trees)

	for m := 0; m < g.Params.Trees; m++ {
		for i := range resid {
			resid[i] = y[i] - pred[i]
		}
		t := newRegressionTree(g.Params.MaxDepth, g.Params.MinSamplesSplit)
		t.fit(X, resid, idx)
		for i := range pred {
			pred[i] += g.Params.LearningRate * t.Predict(X[i])
		}
		for j, v := range t.importance {
			imp[j] += v
		}
		g.Trees = append(g.Trees, t)
	}
	g.Importances = normalize(imp)
	return nil
}

func (g *GradientBoosting) Predict(x []float64) float64 {
	out := g.Init
	for _, t := range g.Trees {
		out += g.Params.LearningRate * t.Predict(x)
	}
	return out
}

func (g *GradientBoosting) FeatureImportances() []float64 { return g.Importances }
