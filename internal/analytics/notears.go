package analytics

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"

	"github.com/Chative-analytics/server/internal/agent/model"
	errx "github.com/Chative-analytics/server/internal/core/error"
)

const (
	// ChurnEdgeThreshold drops edges into churned with smaller magnitude.
	ChurnEdgeThreshold = 0.01
	// NotearsMaxIter bounds the augmented Lagrangian outer loop.
	NotearsMaxIter = 2000

	notearsHTol   = 1e-8
	notearsRhoMax = 1e16
)

// CausalBaseColumns are the demographic covariates always fed to structure
// learning; one-hot columns matching CausalPrefixes are added after them.
var (
	CausalBaseColumns = []string{"age", "income", "household_size"}
	CausalPrefixes    = []string{"gender_", "education_level_", "marital_status_", "profession_", "customer_segment_"}
)

// Notears learns a linear structural equation model W (W[i][j] is the
// weight of edge i -> j) under the acyclicity constraint
// tr(exp(W∘W)) - d = 0.
func Notears(ctx context.Context, x *mat.Dense, maxIter int) (*mat.Dense, error) {
	n, d := x.Dims()
	if n == 0 || d < 2 {
		return nil, fmt.Errorf("%w: structure learning needs at least two variables", errx.ErrInsufficientData)
	}
	dd := d * d

	// Reused buffers; the optimizer never calls Func and Grad concurrently.
	w := mat.NewDense(d, d, nil)
	resid := mat.NewDense(n, d, nil)
	sq := mat.NewDense(d, d, nil)
	e := mat.NewDense(d, d, nil)

	load := func(theta []float64) {
		for i := 0; i < d; i++ {
			for j := 0; j < d; j++ {
				if i == j {
					w.Set(i, j, 0)
					continue
				}
				w.Set(i, j, theta[i*d+j])
			}
		}
	}
	acyclicity := func() float64 {
		sq.MulElem(w, w)
		e.Exp(sq)
		return mat.Trace(e) - float64(d)
	}
	lossOf := func() float64 {
		resid.Mul(x, w)
		resid.Sub(x, resid)
		v := mat.Norm(resid, 2)
		return 0.5 / float64(n) * v * v
	}

	var rho, alpha = 1.0, 0.0
	objective := func(theta []float64) float64 {
		load(theta)
		h := acyclicity()
		return lossOf() + 0.5*rho*h*h + alpha*h
	}
	gradient := func(g, theta []float64) {
		load(theta)
		h := acyclicity()
		lossOf()

		var gl mat.Dense
		gl.Mul(x.T(), resid)
		gl.Scale(-1/float64(n), &gl)

		// d h / d W = exp(W∘W)^T ∘ 2W
		var gh mat.Dense
		gh.MulElem(e.T(), w)
		gh.Scale(2*(rho*h+alpha), &gh)

		for i := 0; i < d; i++ {
			for j := 0; j < d; j++ {
				if i == j {
					g[i*d+j] = 0
					continue
				}
				g[i*d+j] = gl.At(i, j) + gh.At(i, j)
			}
		}
	}
	hOf := func(theta []float64) float64 {
		load(theta)
		return acyclicity()
	}

	theta := make([]float64, dd)
	h := math.Inf(1)
	for iter := 0; iter < maxIter; iter++ {
		var (
			next  []float64
			hNext float64
		)
		for rho < notearsRhoMax {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			cand, err := minimizeLBFGS(ctx, objective, gradient, theta, 200)
			if err != nil {
				return nil, fmt.Errorf("notears: %w", err)
			}
			next, hNext = cand, hOf(cand)
			if hNext <= 0.25*h {
				break
			}
			rho *= 10
		}
		if next == nil {
			break
		}
		theta, h = next, hNext
		alpha += rho * h
		if h <= notearsHTol || rho >= notearsRhoMax {
			break
		}
	}

	load(theta)
	return mat.DenseCopyOf(w), nil
}

// ChurnFactors standardizes the demographic covariates, learns a causal
// structure over them plus churned, and reports every edge into churned whose
// weight exceeds ChurnEdgeThreshold in magnitude.
func ChurnFactors(ctx context.Context, f *Frame) (model.ChurnFactors, error) {
	var features []string
	for _, c := range CausalBaseColumns {
		if f.Has(c) {
			features = append(features, c)
		}
	}
	features = append(features, f.ColumnsWithPrefix(CausalPrefixes...)...)
	if len(features) == 0 {
		return model.ChurnFactors{}, fmt.Errorf("%w: no demographic covariates", errx.ErrInsufficientData)
	}

	sub, err := f.Select(append(append([]string(nil), features...), "churned"))
	if err != nil {
		return model.ChurnFactors{}, err
	}
	if err := requireRows(sub, MinCustomers); err != nil {
		return model.ChurnFactors{}, err
	}

	raw := sub.Matrix()
	n, d := raw.Dims()
	feat := raw.Slice(0, n, 0, d-1).(*mat.Dense)
	scaler, constant := FitScaler(mat.DenseCopyOf(feat))
	if len(constant) > 0 {
		return model.ChurnFactors{}, constantColumnError(features, constant)
	}
	x := mat.NewDense(n, d, nil)
	x.Slice(0, n, 0, d-1).(*mat.Dense).Copy(scaler.Transform(mat.DenseCopyOf(feat)))
	x.SetCol(d-1, mat.Col(nil, d-1, raw))

	w, err := Notears(ctx, x, NotearsMaxIter)
	if err != nil {
		return model.ChurnFactors{}, err
	}

	out := model.ChurnFactors{ChurnFactors: []model.ChurnFactor{}}
	for i, name := range features {
		weight := w.At(i, d-1)
		if math.Abs(weight) > ChurnEdgeThreshold {
			out.ChurnFactors = append(out.ChurnFactors, model.ChurnFactor{
				Feature: name,
				Weight:  scalar.Round(weight, 4),
			})
		}
	}
	return out, nil
}
