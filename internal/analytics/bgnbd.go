package analytics

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	errx "github.com/Chative-analytics/server/internal/core/error"
)

// BGNBD holds fitted beta-geometric / negative binomial purchase parameters.
// A is kept above 1 so conditional expectations stay finite.
type BGNBD struct {
	R, Alpha, A, B float64
}

// FitBGNBD maximises the penalised BG/NBD likelihood over (frequency, recency,
// T). Recency and T share one time unit.
func FitBGNBD(ctx context.Context, frequency, recency, age []float64, penalizer float64) (*BGNBD, error) {
	n := len(frequency)
	if n != len(recency) || n != len(age) {
		return nil, fmt.Errorf("%w: bg/nbd inputs differ in length", errx.ErrInvalidInput)
	}
	for i := range frequency {
		if frequency[i] < 0 || recency[i] < 0 || age[i] < recency[i] {
			return nil, fmt.Errorf("%w: bg/nbd row %d violates 0 <= recency <= T", errx.ErrDegenerateData, i)
		}
	}

	// Rescale time so alpha starts near 1.
	maxT := floats.Max(age)
	if maxT <= 0 {
		return nil, fmt.Errorf("%w: every customer has T = 0", errx.ErrDegenerateData)
	}
	scale := 10 / maxT
	tx := make([]float64, n)
	tt := make([]float64, n)
	for i := range age {
		tx[i] = recency[i] * scale
		tt[i] = age[i] * scale
	}

	unpack := func(theta []float64) (r, alpha, a, b float64) {
		return math.Exp(theta[0]), math.Exp(theta[1]), 1 + math.Exp(theta[2]), math.Exp(theta[3])
	}
	nll := func(theta []float64) float64 {
		r, alpha, a, b := unpack(theta)
		var ll float64
		for i, x := range frequency {
			a1 := lgamma(r+x) - lgamma(r) + r*math.Log(alpha)
			a2 := lgamma(a+b) + lgamma(b+x) - lgamma(b) - lgamma(a+b+x)
			a3 := -(r + x) * math.Log(alpha+tt[i])
			term := a3
			if x > 0 {
				a4 := math.Log(a) - math.Log(b+math.Max(x, 1)-1) - (r+x)*math.Log(tx[i]+alpha)
				term = logSumExp2(a3, a4)
			}
			ll += a1 + a2 + term
		}
		penalty := penalizer * (r*r + alpha*alpha + a*a + b*b)
		v := -ll/float64(n) + penalty
		if math.IsNaN(v) {
			return math.Inf(1)
		}
		return v
	}

	theta, err := minimizeNelderMead(ctx, nll, []float64{0, 0, 0, 0})
	if err != nil {
		return nil, fmt.Errorf("fit bg/nbd: %w", err)
	}
	r, alpha, a, b := unpack(theta)
	return &BGNBD{R: r, Alpha: alpha / scale, A: a, B: b}, nil
}

// ExpectedPurchases is the conditional expected number of purchases in
// (T, T+t] for a customer with history (x, tx, T).
func (m *BGNBD) ExpectedPurchases(t, x, tx, age float64) float64 {
	if t <= 0 {
		return 0
	}
	aa := m.R + x
	bb := m.B + x
	cc := m.A + m.B + x - 1
	z := t / (m.Alpha + age + t)

	lnHyp := logHyp2f1(aa, bb, cc, z)
	first := (m.A + m.B + x - 1) / (m.A - 1)
	second := 1 - math.Exp(lnHyp+(m.R+x)*math.Log((m.Alpha+age)/(m.Alpha+t+age)))
	num := first * second

	den := 1.0
	if x > 0 {
		den += (m.A / (m.B + x - 1)) * math.Pow((m.Alpha+age)/(m.Alpha+tx), m.R+x)
	}
	return num / den
}
