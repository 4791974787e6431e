package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	errx "github.com/Chative-analytics/server/internal/core/error"
)

const (
	coxRidge       = 1e-3
	coxMaxIter     = 50
	coxTolerance   = 1e-9
	coxMaxHalvings = 20
)

// CoxPH is a proportional hazards fit with a Breslow baseline.
type CoxPH struct {
	Names []string
	Beta  []float64

	columns []string
	scaler  *Scaler
	dropped []int

	// times are the sorted unique durations; cumHazard[i] is the baseline
	// cumulative hazard at times[i].
	times     []float64
	cumHazard []float64
}

// FitCoxPH maximises the Breslow partial likelihood by Newton-Raphson.
func FitCoxPH(ctx context.Context, x *mat.Dense, names []string, duration, event []float64) (*CoxPH, error) {
	n, p := x.Dims()
	if n != len(duration) || n != len(event) || p != len(names) {
		return nil, fmt.Errorf("%w: cox inputs have mismatched shapes", errx.ErrInvalidInput)
	}
	if floats.Sum(event) == 0 {
		return nil, fmt.Errorf("%w: no churn events observed", errx.ErrDegenerateData)
	}
	for i, d := range duration {
		if d < 0 {
			return nil, fmt.Errorf("%w: negative duration at row %d", errx.ErrDegenerateData, i)
		}
	}

	scaler, constant := FitScaler(x)
	z, kept := dropColumns(scaler.Transform(x), names, constant)
	if len(kept) == 0 {
		return nil, constantColumnError(names, constant)
	}
	_, k := z.Dims()

	// Rows by descending duration so risk sets accumulate.
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return duration[order[a]] > duration[order[b]] })

	beta := make([]float64, k)
	ll, grad, hess := coxPartial(z, duration, event, order, beta)
	for iter := 0; iter < coxMaxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		step, err := newtonStep(grad, hess)
		if err != nil {
			return nil, err
		}

		scale := 1.0
		var (
			next     []float64
			nextLL   float64
			nextGrad []float64
			nextHess *mat.SymDense
			improved bool
		)
		for h := 0; h < coxMaxHalvings; h++ {
			next = make([]float64, k)
			floats.AddScaledTo(next, beta, scale, step)
			nextLL, nextGrad, nextHess = coxPartial(z, duration, event, order, next)
			if !math.IsNaN(nextLL) && nextLL >= ll {
				improved = true
				break
			}
			scale /= 2
		}
		if !improved {
			break
		}
		delta := nextLL - ll
		beta, ll, grad, hess = next, nextLL, nextGrad, nextHess
		if delta < coxTolerance {
			break
		}
	}

	m := &CoxPH{Names: kept, Beta: beta, columns: names, scaler: scaler, dropped: constant}
	m.breslow(z, duration, event, order)
	return m, nil
}

// coxPartial returns the ridge penalised Breslow log partial likelihood with
// its gradient and Hessian.
func coxPartial(z *mat.Dense, duration, event []float64, order []int, beta []float64) (float64, []float64, *mat.SymDense) {
	n, k := z.Dims()
	eta := mat.NewVecDense(n, nil)
	eta.MulVec(z, mat.NewVecDense(k, beta))

	var (
		ll   float64
		s0   float64
		s1   = make([]float64, k)
		s2   = mat.NewSymDense(k, nil)
		grad = make([]float64, k)
		hess = mat.NewSymDense(k, nil)
	)
	for start := 0; start < n; {
		t := duration[order[start]]
		end := start
		var deaths float64
		evSum := make([]float64, k)
		var evEta float64
		for end < n && duration[order[end]] == t {
			i := order[end]
			row := z.RawRowView(i)
			w := math.Exp(eta.AtVec(i))
			s0 += w
			floats.AddScaled(s1, w, row)
			s2.SymRankOne(s2, w, mat.NewVecDense(k, row))
			if event[i] == 1 {
				deaths++
				evEta += eta.AtVec(i)
				floats.Add(evSum, row)
			}
			end++
		}
		if deaths > 0 {
			ll += evEta - deaths*math.Log(s0)
			for a := 0; a < k; a++ {
				grad[a] += evSum[a] - deaths*s1[a]/s0
				for b := a; b < k; b++ {
					v := s2.At(a, b)/s0 - (s1[a]/s0)*(s1[b]/s0)
					hess.SetSym(a, b, hess.At(a, b)-deaths*v)
				}
			}
		}
		start = end
	}

	ll -= 0.5 * coxRidge * floats.Dot(beta, beta)
	for a := 0; a < k; a++ {
		grad[a] -= coxRidge * beta[a]
		hess.SetSym(a, a, hess.At(a, a)-coxRidge)
	}
	return ll, grad, hess
}

// newtonStep solves (-H) step = grad.
func newtonStep(grad []float64, hess *mat.SymDense) ([]float64, error) {
	k := len(grad)
	neg := mat.NewSymDense(k, nil)
	neg.ScaleSym(-1, hess)
	var chol mat.Cholesky
	if !chol.Factorize(neg) {
		return nil, fmt.Errorf("%w: cox information matrix is not positive definite", errx.ErrDegenerateData)
	}
	step := mat.NewVecDense(k, nil)
	if err := chol.SolveVecTo(step, mat.NewVecDense(k, grad)); err != nil {
		return nil, fmt.Errorf("%w: %v", errx.ErrDegenerateData, err)
	}
	return step.RawVector().Data, nil
}

func (m *CoxPH) breslow(z *mat.Dense, duration, event []float64, order []int) {
	n, k := z.Dims()
	eta := mat.NewVecDense(n, nil)
	eta.MulVec(z, mat.NewVecDense(k, m.Beta))

	// Walk descending to get risk sums, then accumulate ascending.
	var (
		times  []float64
		hazard []float64
		s0     float64
	)
	for start := 0; start < n; {
		t := duration[order[start]]
		end := start
		var deaths float64
		for end < n && duration[order[end]] == t {
			i := order[end]
			s0 += math.Exp(eta.AtVec(i))
			deaths += event[i]
			end++
		}
		times = append(times, t)
		hazard = append(hazard, deaths/s0)
		start = end
	}

	m.times = make([]float64, len(times))
	m.cumHazard = make([]float64, len(times))
	var cum float64
	for i := range times {
		j := len(times) - 1 - i
		cum += hazard[j]
		m.times[i] = times[j]
		m.cumHazard[i] = cum
	}
}

// ExpectedLifetime integrates each row's survival curve over the observed
// time grid with the trapezoid rule, starting from S(0) = 1.
func (m *CoxPH) ExpectedLifetime(x *mat.Dense) []float64 {
	z, _ := dropColumns(m.scaler.Transform(x), m.columns, m.dropped)
	n, _ := z.Dims()
	eta := mat.NewVecDense(n, nil)
	eta.MulVec(z, mat.NewVecDense(len(m.Beta), m.Beta))

	out := make([]float64, n)
	for i := range out {
		risk := math.Exp(eta.AtVec(i))
		prevT, prevS := 0.0, 1.0
		var area float64
		for j, t := range m.times {
			s := 1.0
			if m.cumHazard[j] > 0 {
				s = math.Exp(-m.cumHazard[j] * risk)
			}
			area += (t - prevT) * (s + prevS) / 2
			prevT, prevS = t, s
		}
		out[i] = area
	}
	return out
}
