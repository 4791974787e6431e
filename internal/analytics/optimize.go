package analytics

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"

	errx "github.com/Chative-analytics/server/internal/core/error"
)

// ctxRecorder aborts a gonum optimisation once ctx is done. gonum consults
// the recorder after every evaluation, so cancellation lands within one step.
type ctxRecorder struct {
	ctx context.Context
}

func (r ctxRecorder) Init() error { return r.ctx.Err() }

func (r ctxRecorder) Record(*optimize.Location, optimize.Operation, *optimize.Stats) error {
	return r.ctx.Err()
}

func minimizeNelderMead(ctx context.Context, f func([]float64) float64, x0 []float64) ([]float64, error) {
	if v := f(x0); math.IsInf(v, 0) || math.IsNaN(v) {
		return nil, fmt.Errorf("%w: objective undefined at start", errx.ErrDegenerateData)
	}
	res, err := optimize.Minimize(optimize.Problem{Func: f}, x0, &optimize.Settings{
		MajorIterations: 5000,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-10,
			Iterations: 200,
		},
		Recorder: ctxRecorder{ctx: ctx},
	}, &optimize.NelderMead{})
	return acceptResult(ctx, res, err)
}

// minimizeLBFGS runs a gradient based minimisation. Line-search stalls near
// the optimum are reported by gonum as errors, so any finite result is kept.
func minimizeLBFGS(ctx context.Context, f func([]float64) float64, grad func(g, x []float64), x0 []float64, iterations int) ([]float64, error) {
	res, err := optimize.Minimize(optimize.Problem{Func: f, Grad: grad}, x0, &optimize.Settings{
		MajorIterations:   iterations,
		GradientThreshold: 1e-8,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-12,
			Iterations: 50,
		},
		Recorder: ctxRecorder{ctx: ctx},
	}, &optimize.LBFGS{})
	return acceptResult(ctx, res, err)
}

func acceptResult(ctx context.Context, res *optimize.Result, err error) ([]float64, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if res == nil {
		return nil, fmt.Errorf("%w: optimizer failed: %v", errx.ErrDegenerateData, err)
	}
	if math.IsNaN(res.F) || math.IsInf(res.F, 0) {
		return nil, fmt.Errorf("%w: optimizer diverged", errx.ErrDegenerateData)
	}
	for _, v := range res.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: optimizer produced non-finite parameters", errx.ErrDegenerateData)
		}
	}
	return res.X, nil
}
