package analytics

import (
	"context"
	"fmt"
	"math"

	errx "github.com/Chative-analytics/server/internal/core/error"
)

// GammaGamma holds fitted spend parameters. Q is kept above 1 so the
// population mean spend exists.
type GammaGamma struct {
	P, Q, V float64
}

// FitGammaGamma fits the spend model on customers' purchase counts and mean
// transaction values.
func FitGammaGamma(ctx context.Context, frequency, monetary []float64, penalizer float64) (*GammaGamma, error) {
	if len(frequency) != len(monetary) {
		return nil, fmt.Errorf("%w: gamma-gamma inputs differ in length", errx.ErrInvalidInput)
	}
	for i := range frequency {
		if frequency[i] <= 0 || monetary[i] <= 0 {
			return nil, fmt.Errorf("%w: gamma-gamma needs positive frequency and spend (row %d)", errx.ErrDegenerateData, i)
		}
	}
	n := float64(len(frequency))

	unpack := func(theta []float64) (p, q, v float64) {
		return math.Exp(theta[0]), 1 + math.Exp(theta[1]), math.Exp(theta[2])
	}
	nll := func(theta []float64) float64 {
		p, q, v := unpack(theta)
		var ll float64
		for i, x := range frequency {
			m := monetary[i]
			px := p * x
			ll += lgamma(px+q) - lgamma(px) - lgamma(q) + q*math.Log(v) +
				(px-1)*math.Log(m) + px*math.Log(x) - (px+q)*math.Log(x*m+v)
		}
		val := -ll/n + penalizer*(p*p+q*q+v*v)
		if math.IsNaN(val) {
			return math.Inf(1)
		}
		return val
	}

	theta, err := minimizeNelderMead(ctx, nll, []float64{0, 0, 0})
	if err != nil {
		return nil, fmt.Errorf("fit gamma-gamma: %w", err)
	}
	p, q, v := unpack(theta)
	return &GammaGamma{P: p, Q: q, V: v}, nil
}

// ExpectedSpend is the conditional expected average transaction value.
func (g *GammaGamma) ExpectedSpend(frequency, monetary float64) float64 {
	w := g.P * frequency / (g.P*frequency + g.Q - 1)
	population := g.V * g.P / (g.Q - 1)
	return (1-w)*population + w*monetary
}
