package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/Chative-analytics/server/internal/agent/model"
	errx "github.com/Chative-analytics/server/internal/core/error"
)

// SurvivalCovariates are the fixed hazard model inputs. Every tenure_*
// indicator is appended at fit time.
var SurvivalCovariates = []string{
	"recency", "frequency", "monetary_value", "promotion_offer",
	"high_value_flag", "purchase_trend", "seasonal_user",
	"num_active_months", "avg_days_between_tx",
}

// SoonestChurn fits a Cox model on duration and churn and returns the k
// customers with the least expected time left before churning. Customers who
// already churned have zero days remaining.
func SoonestChurn(ctx context.Context, f *Frame, k int) ([]model.CustomerChurnTiming, error) {
	covariates := append(append([]string(nil), SurvivalCovariates...), f.ColumnsWithPrefix("tenure_")...)
	sub, err := f.Select(append([]string{"duration", "churned"}, covariates...))
	if err != nil {
		return nil, err
	}
	if err := requireRows(sub, MinCustomers); err != nil {
		return nil, err
	}
	duration, _ := sub.Column("duration")
	churned, _ := sub.Column("churned")
	x, err := sub.Select(covariates)
	if err != nil {
		return nil, err
	}

	cox, err := FitCoxPH(ctx, x.Matrix(), covariates, duration, churned)
	if err != nil {
		return nil, err
	}

	expected := cox.ExpectedLifetime(x.Matrix())
	out := make([]model.CustomerChurnTiming, len(expected))
	for i, e := range expected {
		if math.IsNaN(e) || math.IsInf(e, 0) {
			return nil, fmt.Errorf("%w: expected lifetime for customer %d is not finite", errx.ErrDegenerateData, sub.IDs[i])
		}
		remaining := 0.0
		if churned[i] == 0 {
			remaining = math.Max(0, e-duration[i])
		}
		out[i] = model.CustomerChurnTiming{CustomerID: sub.IDs[i], DaysRemainingToChurn: remaining}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].DaysRemainingToChurn < out[b].DaysRemainingToChurn })
	return topK(out, k), nil
}
