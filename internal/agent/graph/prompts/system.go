package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/Chative-analytics/server/internal/agent/graph/tools"
)

//go:embed template/system_prompt.txt
var systemPromptTemplate string

// System renders the agent's system instructions. The table list is captured
// once when the graph is built.
type System struct {
	tpl  prompt.ChatTemplate
	vars map[string]any
}

// NewSystem prepares the system prompt for the given tables. extra is
// appended verbatim when non-empty.
func NewSystem(tables []string, extra string) *System {
	return &System{
		tpl: prompt.FromMessages(
			schema.GoTemplate,
			schema.SystemMessage(systemPromptTemplate),
		),
		vars: map[string]any{
			"Tables":       strings.Join(tables, ", "),
			"Extra":        strings.TrimSpace(extra),
			"DescribeTool": tools.ToolDescribeTables,
			"QueryTool":    tools.ToolRunSQLiteQuery,
			"CLVTool":      tools.ToolCLVTopK,
			"SurvivalTool": tools.ToolSurvivalTopK,
			"ChurnTool":    tools.ToolChurnTopK,
			"UpliftTool":   tools.ToolUpliftPositive,
			"CausalTool":   tools.ToolDiscoverChurn,
			"ChartTool":    tools.ToolPlotChart,
		},
	}
}

// Render formats the prompt through the eino prompt component so prompt
// callbacks fire.
func (s *System) Render(ctx context.Context) (string, error) {
	msgs, err := s.tpl.Format(ctx, s.vars)
	if err != nil {
		return "", fmt.Errorf("system prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("system prompt render: empty result")
	}
	return msgs[0].Content, nil
}
