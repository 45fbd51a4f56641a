package ml

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Ridge is an L2-regularized linear regression solved in closed form.
// It does not report feature importances.
type Ridge struct {
	Params    Params    `json:"params"`
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
}

// NewRidge creates an unfitted ridge model; alpha defaults to 1.
func NewRidge(p Params) *Ridge {
	if p.Alpha <= 0 {
		p.Alpha = 1
	}
	return &Ridge{Params: p}
}

func (r *Ridge) Family() Family { return RidgeFamily }

func (r *Ridge) Fit(X [][]float64, y []float64) error {
	if err := checkTrainSet(X, y); err != nil {
		return err
	}
	n, p := len(X), len(X[0])

	xs := mat.NewDense(n, p, nil)
	for i, row := range X {
		if len(row) != p {
			return fmt.Errorf("ridge: row %d has %d features, want %d", i, len(row), p)
		}
		xs.SetRow(i, row)
	}
	xMean := make([]float64, p)
	for j := range xMean {
		xMean[j] = stat.Mean(mat.Col(nil, j, xs), nil)
	}
	yMean := stat.Mean(y, nil)

	xc := mat.NewDense(n, p, nil)
	xc.Apply(func(_, j int, v float64) float64 { return v - xMean[j] }, xs)
	yc := mat.NewVecDense(n, nil)
	for i, v := range y {
		yc.SetVec(i, v-yMean)
	}

	// A = Xc'Xc + alpha*I, b = Xc'yc
	A := mat.NewSymDense(p, nil)
	A.SymOuterK(1, xc.T())
	for j := 0; j < p; j++ {
		A.SetSym(j, j, A.At(j, j)+r.Params.Alpha)
	}
	var b mat.VecDense
	b.MulVec(xc.T(), yc)

	var chol mat.Cholesky
	if ok := chol.Factorize(A); !ok {
		return fmt.Errorf("ridge: normal matrix is not positive definite")
	}
	var coef mat.VecDense
	// A mat.Condition error only warns about conditioning; the solution is still set.
	if err := chol.SolveVecTo(&coef, &b); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return fmt.Errorf("ridge: %w", err)
		}
	}
	r.Coef = make([]float64, p)
	r.Intercept = yMean
	for j := range r.Coef {
		r.Coef[j] = coef.AtVec(j)
		r.Intercept -= r.Coef[j] * xMean[j]
	}
	return nil
}

func (r *Ridge) Predict(x []float64) float64 {
	out := r.Intercept
	for j, c := range r.Coef {
		out += c * x[j]
	}
	return out
}
