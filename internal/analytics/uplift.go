package analytics

import (
	"context"
	"fmt"

	"github.com/Chative-analytics/server/internal/agent/model"
	errx "github.com/Chative-analytics/server/internal/core/error"
)

// TreatmentColumn flags customers that received the promotion.
const TreatmentColumn = "promotion_offer"

// PositiveUplift estimates per-customer uplift of the promotion on churn with
// the class transformation approach and counts customers whose uplift is
// strictly positive.
func PositiveUplift(ctx context.Context, f *Frame) (model.UpliftSummary, error) {
	features := f.Except("churned")
	sub, err := f.Select(append(features, "churned"))
	if err != nil {
		return model.UpliftSummary{}, err
	}
	if err := requireRows(sub, MinCustomers); err != nil {
		return model.UpliftSummary{}, err
	}
	t, err := sub.Column(TreatmentColumn)
	if err != nil {
		return model.UpliftSummary{}, err
	}
	y, _ := sub.Column("churned")

	var treated float64
	for _, v := range t {
		treated += v
	}
	if treated == 0 || treated == float64(len(t)) {
		return model.UpliftSummary{}, fmt.Errorf("%w: %s is constant", errx.ErrDegenerateData, TreatmentColumn)
	}

	// z = 1 when the outcome agrees with the treatment assignment.
	target := make([]float64, len(y))
	for i := range y {
		target[i] = y[i]*t[i] + (1-y[i])*(1-t[i])
	}

	x, err := sub.Select(features)
	if err != nil {
		return model.UpliftSummary{}, err
	}
	clf, err := FitLogistic(ctx, x.Matrix(), features, target, LogisticL2)
	if err != nil {
		return model.UpliftSummary{}, err
	}
	if err := ctx.Err(); err != nil {
		return model.UpliftSummary{}, err
	}

	var positive int
	for _, p := range clf.PredictProba(x.Matrix()) {
		if 2*p-1 > 0 {
			positive++
		}
	}
	return model.UpliftSummary{NumCustomersPositiveUplift: positive}, nil
}
