package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/Chative-analytics/server/internal/agent/model"
	errx "github.com/Chative-analytics/server/internal/core/error"
)

const (
	// CLVPenalizer is the L2 coefficient shared by both CLV fits.
	CLVPenalizer = 0.01
	// CLVHorizon is the forward window in months.
	CLVHorizon = 12
	// CLVDiscountRate is the monthly discount applied to future spend.
	CLVDiscountRate = 0.01

	daysPerMonth = 30.0
)

// TopCustomerValue fits BG/NBD and Gamma-Gamma on the full population and
// returns the k customers with the highest discounted 12 month value.
func TopCustomerValue(ctx context.Context, f *Frame, k int) ([]model.CustomerValue, error) {
	sub, err := f.Select([]string{"frequency", "recency", "T", "monetary_value"})
	if err != nil {
		return nil, err
	}
	if err := requireRows(sub, MinCustomers); err != nil {
		return nil, err
	}

	n := sub.Len()
	freq := make([]float64, n)
	rec := make([]float64, n)
	age := make([]float64, n)
	spend := make([]float64, n)
	for i, r := range sub.Rows {
		freq[i] = r[0]
		rec[i] = r[1] / daysPerMonth
		age[i] = r[2] / daysPerMonth
		spend[i] = r[3]
	}

	bg, err := FitBGNBD(ctx, freq, rec, age, CLVPenalizer)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	gg, err := FitGammaGamma(ctx, freq, spend, CLVPenalizer)
	if err != nil {
		return nil, err
	}

	out := make([]model.CustomerValue, n)
	for i := range out {
		profit := gg.ExpectedSpend(freq[i], spend[i])
		var clv, prev float64
		for m := 1; m <= CLVHorizon; m++ {
			cum := bg.ExpectedPurchases(float64(m), freq[i], rec[i], age[i])
			clv += (cum - prev) * profit / math.Pow(1+CLVDiscountRate, float64(m))
			prev = cum
		}
		if math.IsNaN(clv) || math.IsInf(clv, 0) {
			return nil, fmt.Errorf("%w: clv for customer %d is not finite", errx.ErrDegenerateData, sub.IDs[i])
		}
		out[i] = model.CustomerValue{CustomerID: sub.IDs[i], CLV: clv}
	}

	sort.SliceStable(out, func(a, b int) bool { return out[a].CLV > out[b].CLV })
	return topK(out, k), nil
}

func topK[T any](xs []T, k int) []T {
	if k < len(xs) {
		return xs[:k]
	}
	return xs
}
