package ml

import (
	"math"
	"sort"
)

type treeNode struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Value     float64 `json:"v"`
}

// RegressionTree is a CART tree that splits on minimum squared error.
// Nodes are stored flat; a Feature of -1 marks a leaf.
type RegressionTree struct {
	Nodes           []treeNode `json:"nodes"`
	MaxDepth        int        `json:"max_depth"`
	MinSamplesSplit int        `json:"min_samples_split"`

	importance []float64
}

func newRegressionTree(maxDepth, minSplit int) *RegressionTree {
	if minSplit < 2 {
		minSplit = 2
	}
	return &RegressionTree{MaxDepth: maxDepth, MinSamplesSplit: minSplit}
}

// fit grows the tree on the rows listed in idx (duplicates allowed for bootstrap samples).
func (t *RegressionTree) fit(X [][]float64, y []float64, idx []int) {
	t.Nodes = make([]treeNode, 0, 64)
	t.importance = make([]float64, len(X[0]))
	t.grow(X, y, idx, 0)
}

func (t *RegressionTree) grow(X [][]float64, y []float64, idx []int, depth int) int {
	mean, sse := meanSSE(y, idx)
	id := len(t.Nodes)
	t.Nodes = append(t.Nodes, treeNode{Feature: -1, Left: -1, Right: -1, Value: mean})

	if (t.MaxDepth > 0 && depth >= t.MaxDepth) || len(idx) < t.MinSamplesSplit || sse <= 1e-12 {
		return id
	}
	s, ok := bestSplit(X, y, idx, mean)
	if !ok {
		return id
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if X[i][s.feature] <= s.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	t.importance[s.feature] += sse - s.sse

	l := t.grow(X, y, left, depth+1)
	r := t.grow(X, y, right, depth+1)
	t.Nodes[id].Feature = s.feature
	t.Nodes[id].Threshold = s.threshold
	t.Nodes[id].Left = l
	t.Nodes[id].Right = r
	return id
}

// Predict walks the tree for one feature vector.
func (t *RegressionTree) Predict(x []float64) float64 {
	if len(t.Nodes) == 0 {
		return 0
	}
	n := t.Nodes[0]
	for n.Feature >= 0 {
		if x[n.Feature] <= n.Threshold {
			n = t.Nodes[n.Left]
		} else {
			n = t.Nodes[n.Right]
		}
	}
	return n.Value
}

type split struct {
	feature   int
	threshold float64
	sse       float64
}

// bestSplit scans every feature for the threshold with the lowest child SSE.
// Targets are centered on the node mean before summing.
func bestSplit(X [][]float64, y []float64, idx []int, mean float64) (split, bool) {
	n := len(idx)
	best := split{sse: math.Inf(1)}
	found := false

	var total float64
	for _, i := range idx {
		total += y[i] - mean
	}
	var totalSq float64
	for _, i := range idx {
		d := y[i] - mean
		totalSq += d * d
	}

	order := make([]int, n)
	for f := 0; f < len(X[0]); f++ {
		copy(order, idx)
		sort.SliceStable(order, func(a, b int) bool { return X[order[a]][f] < X[order[b]][f] })

		var sumL, sqL float64
		for k := 0; k < n-1; k++ {
			d := y[order[k]] - mean
			sumL += d
			sqL += d * d

			cur, next := X[order[k]][f], X[order[k+1]][f]
			if cur == next {
				continue
			}
			nL := float64(k + 1)
			nR := float64(n - k - 1)
			sumR := total - sumL
			sse := (sqL - sumL*sumL/nL) + ((totalSq - sqL) - sumR*sumR/nR)
			if sse < best.sse {
				best = split{feature: f, threshold: (cur + next) / 2, sse: sse}
				found = true
			}
		}
	}
	return best, found
}

func meanSSE(y []float64, idx []int) (float64, float64) {
	if len(idx) == 0 {
		return 0, 0
	}
	var sum float64
	for _, i := range idx {
		sum += y[i]
	}
	mean := sum / float64(len(idx))
	var sse float64
	for _, i := range idx {
		d := y[i] - mean
		sse += d * d
	}
	return mean, sse
}

// normalize scales v in place to sum to 1; an all-zero vector is left unchanged.
func normalize(v []float64) []float64 {
	var s float64
	for _, x := range v {
		s += x
	}
	if s <= 0 {
		return v
	}
	for i := range v {
		v[i] /= s
	}
	return v
}
