package analytics

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	errx "github.com/Chative-analytics/server/internal/core/error"
)

// LogisticL2 is the ridge strength of the churn classifier.
const LogisticL2 = 1.0

// Logistic is an L2 regularised logistic regression on standardized
// features. Zero-variance columns are dropped at fit time.
type Logistic struct {
	Names     []string
	Weights   []float64
	Intercept float64

	columns []string
	scaler  *Scaler
	dropped []int
}

// FitLogistic fits y in {0,1} on the columns of x.
func FitLogistic(ctx context.Context, x *mat.Dense, names []string, y []float64, lambda float64) (*Logistic, error) {
	n, p := x.Dims()
	if n != len(y) || p != len(names) {
		return nil, fmt.Errorf("%w: logistic inputs have mismatched shapes", errx.ErrInvalidInput)
	}
	var positives float64
	for i, v := range y {
		if v != 0 && v != 1 {
			return nil, fmt.Errorf("%w: label %v at row %d is not binary", errx.ErrDegenerateData, v, i)
		}
		positives += v
	}
	if positives == 0 || positives == float64(n) {
		return nil, fmt.Errorf("%w: labels contain a single class", errx.ErrDegenerateData)
	}

	scaler, constant := FitScaler(x)
	z, kept := dropColumns(scaler.Transform(x), names, constant)
	if len(kept) == 0 {
		return nil, constantColumnError(names, constant)
	}
	_, k := z.Dims()

	// theta = [w_1..w_k, b]
	margins := make([]float64, n)
	score := func(theta []float64) {
		mat.NewVecDense(n, margins).MulVec(z, mat.NewVecDense(k, theta[:k]))
		floats.AddConst(theta[k], margins)
	}
	nll := func(theta []float64) float64 {
		score(theta)
		var loss float64
		for i, m := range margins {
			loss += softplus(m) - y[i]*m
		}
		reg := 0.5 * lambda * floats.Dot(theta[:k], theta[:k])
		return (loss + reg) / float64(n)
	}
	grad := func(g, theta []float64) {
		score(theta)
		resid := make([]float64, n)
		for i, m := range margins {
			resid[i] = sigmoid(m) - y[i]
		}
		gw := mat.NewVecDense(k, g[:k])
		gw.MulVec(z.T(), mat.NewVecDense(n, resid))
		for j := 0; j < k; j++ {
			g[j] = (g[j] + lambda*theta[j]) / float64(n)
		}
		g[k] = floats.Sum(resid) / float64(n)
	}

	theta, err := minimizeLBFGS(ctx, nll, grad, make([]float64, k+1), 500)
	if err != nil {
		return nil, fmt.Errorf("fit logistic: %w", err)
	}
	return &Logistic{
		Names:     kept,
		Weights:   theta[:k],
		Intercept: theta[k],
		columns:   names,
		scaler:    scaler,
		dropped:   constant,
	}, nil
}

// PredictProba scores rows laid out like the training matrix.
func (m *Logistic) PredictProba(x *mat.Dense) []float64 {
	z, _ := dropColumns(m.scaler.Transform(x), m.columns, m.dropped)
	n, _ := z.Dims()
	margins := mat.NewVecDense(n, nil)
	margins.MulVec(z, mat.NewVecDense(len(m.Weights), m.Weights))
	out := make([]float64, n)
	for i := range out {
		out[i] = sigmoid(margins.AtVec(i) + m.Intercept)
	}
	return out
}

func sigmoid(v float64) float64 {
	if v >= 0 {
		return 1 / (1 + math.Exp(-v))
	}
	e := math.Exp(v)
	return e / (1 + e)
}

// softplus is log(1 + e^v).
func softplus(v float64) float64 {
	if v > 0 {
		return v + math.Log1p(math.Exp(-v))
	}
	return math.Log1p(math.Exp(v))
}
