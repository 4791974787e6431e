package analytics

import (
	"context"
	"sort"

	"github.com/Chative-analytics/server/internal/agent/model"
)

// TopChurnRisk fits the churn classifier on every covariate and scores the
// same rows it was fitted on. Probabilities are therefore optimistic.
func TopChurnRisk(ctx context.Context, f *Frame, k int) ([]model.CustomerChurnRisk, error) {
	features := f.Except("churned")
	sub, err := f.Select(append(features, "churned"))
	if err != nil {
		return nil, err
	}
	if err := requireRows(sub, MinCustomers); err != nil {
		return nil, err
	}
	x, err := sub.Select(features)
	if err != nil {
		return nil, err
	}
	y, _ := sub.Column("churned")

	clf, err := FitLogistic(ctx, x.Matrix(), features, y, LogisticL2)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	probs := clf.PredictProba(x.Matrix())
	out := make([]model.CustomerChurnRisk, len(probs))
	for i, p := range probs {
		out[i] = model.CustomerChurnRisk{CustomerID: sub.IDs[i], ChurnProb: p}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].ChurnProb > out[b].ChurnProb })
	return topK(out, k), nil
}
