// Package tools is the agent's toolbox: a schema-validated registry plus the
// analytical, SQL, chart and report tools bound to it.
package tools

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/Chative-analytics/server/internal/agent/model"
	"github.com/Chative-analytics/server/internal/analytics"
)

const (
	ToolCLVTopK        = "calculate_clv_top_k"
	ToolSurvivalTopK   = "survival_analysis_top_k"
	ToolChurnTopK      = "churn_classification_top_k"
	ToolUpliftPositive = "uplift_modeling_positive"
	ToolDiscoverChurn  = "discover_churn_factors"
	ToolPlotChart      = "plot_chart"
	ToolWriteReport    = "write_report"
	ToolListTables     = "list_tables"
	ToolDescribeTables = "describe_tables"
	ToolRunSQLiteQuery = "run_sqlite_query"
)

// DataSource is the read side of the analytics store.
type DataSource interface {
	LoadCustomerFrame(ctx context.Context) (*analytics.Frame, error)
	ListTables(ctx context.Context) ([]string, error)
	DescribeTables(ctx context.Context, names []string) (string, error)
	Query(ctx context.Context, query string, limit int) (*model.QueryResult, error)
}

// Deps are the collaborators shared by the default tools.
type Deps struct {
	Store      DataSource
	ChartsDir  string
	ReportsDir string
	RowLimit   int
}

// funcTool binds a descriptor to a plain function.
type funcTool struct {
	desc Descriptor
	fn   func(ctx context.Context, args Args) (Result, error)
}

func (t *funcTool) Descriptor() Descriptor {
	return t.desc
}

func (t *funcTool) Invoke(ctx context.Context, args Args) (Result, error) {
	return t.fn(ctx, args)
}

// NewDefaultRegistry registers the full toolbox.
func NewDefaultRegistry(deps Deps) (*Registry, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("tools: data source is nil")
	}
	r := NewRegistry()
	all := []Tool{
		clvTool(deps.Store),
		survivalTool(deps.Store),
		churnTool(deps.Store),
		upliftTool(deps.Store),
		causalTool(deps.Store),
		chartTool(deps.ChartsDir),
		reportTool(deps.ReportsDir),
		listTablesTool(deps.Store),
		describeTablesTool(deps.Store),
		queryTool(deps.Store, deps.RowLimit),
	}
	for _, t := range all {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

var topKParam = Param{
	Name:     "k",
	Type:     schema.Integer,
	Desc:     "Number of customers to return (at least 1).",
	Required: true,
	Min:      ptr(1.0),
}
