package tools

import (
	"context"
	"time"

	"github.com/Chative-analytics/server/internal/analytics"
	logx "github.com/Chative-analytics/server/pkg/logger"
)

// withFrame loads a fresh customer frame for every call; fits are never
// cached between calls.
func withFrame(src DataSource, tool string, fn func(ctx context.Context, f *analytics.Frame, args Args) (any, error)) func(context.Context, Args) (Result, error) {
	return func(ctx context.Context, args Args) (Result, error) {
		start := time.Now()
		f, err := src.LoadCustomerFrame(ctx)
		if err != nil {
			return Result{}, err
		}
		v, err := fn(ctx, f, args)
		if err != nil {
			return Result{}, err
		}
		logx.Debug().Str("tool", tool).Int("customers", f.Len()).Dur("took", time.Since(start)).Msg("analysis finished")
		return Result{Value: v}, nil
	}
}

func clvTool(src DataSource) Tool {
	return &funcTool{
		desc: Descriptor{
			Name:        ToolCLVTopK,
			Description: "Calculate Customer Lifetime Value (CLV) and get top K customers for upsell.",
			Params:      []Param{topKParam},
		},
		fn: withFrame(src, ToolCLVTopK, func(ctx context.Context, f *analytics.Frame, args Args) (any, error) {
			return analytics.TopCustomerValue(ctx, f, args.Int("k"))
		}),
	}
}

func survivalTool(src DataSource) Tool {
	return &funcTool{
		desc: Descriptor{
			Name:        ToolSurvivalTopK,
			Description: "Estimate remaining time to churn for top K highest-risk customers.",
			Params:      []Param{topKParam},
		},
		fn: withFrame(src, ToolSurvivalTopK, func(ctx context.Context, f *analytics.Frame, args Args) (any, error) {
			return analytics.SoonestChurn(ctx, f, args.Int("k"))
		}),
	}
}

func churnTool(src DataSource) Tool {
	return &funcTool{
		desc: Descriptor{
			Name:        ToolChurnTopK,
			Description: "Predict churn probability and get top K customers with highest churn risk.",
			Params:      []Param{topKParam},
		},
		fn: withFrame(src, ToolChurnTopK, func(ctx context.Context, f *analytics.Frame, args Args) (any, error) {
			return analytics.TopChurnRisk(ctx, f, args.Int("k"))
		}),
	}
}

func upliftTool(src DataSource) Tool {
	return &funcTool{
		desc: Descriptor{
			Name:        ToolUpliftPositive,
			Description: "Count how many customers have positive uplift if given a promotion.",
		},
		fn: withFrame(src, ToolUpliftPositive, func(ctx context.Context, f *analytics.Frame, _ Args) (any, error) {
			return analytics.PositiveUplift(ctx, f)
		}),
	}
}

func causalTool(src DataSource) Tool {
	return &funcTool{
		desc: Descriptor{
			Name:        ToolDiscoverChurn,
			Description: "Discover factors that may causally influence churn.",
		},
		fn: withFrame(src, ToolDiscoverChurn, func(ctx context.Context, f *analytics.Frame, _ Args) (any, error) {
			return analytics.ChurnFactors(ctx, f)
		}),
	}
}
