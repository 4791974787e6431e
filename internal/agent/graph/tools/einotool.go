package tools

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/Chative-analytics/server/internal/agent/model"
	errx "github.com/Chative-analytics/server/internal/core/error"
	logx "github.com/Chative-analytics/server/pkg/logger"
)

const (
	schemaRetryInstruction = "Call the tool again with corrected arguments."
	apologyInstruction     = "Apologise to the user: the analysis could not be completed. Do not invent results."
)

// observation is what the model sees when a tool call fails.
type observation struct {
	Error       string            `json:"error"`
	Tool        string            `json:"tool"`
	Message     string            `json:"message"`
	Fields      []errx.FieldError `json:"fields,omitempty"`
	Instruction string            `json:"instruction"`
}

// einoTool exposes one registry entry as an eino InvokableTool. Tool failures
// are turned into observations for the model rather than graph errors, so a
// failing tool never ends the turn.
type einoTool struct {
	reg     *Registry
	info    *schema.ToolInfo
	timeout time.Duration
}

var _ tool.InvokableTool = (*einoTool)(nil)

// EinoTools adapts every registered tool. timeout bounds each call; zero
// disables the bound.
func (r *Registry) EinoTools(timeout time.Duration) []tool.BaseTool {
	out := make([]tool.BaseTool, 0, len(r.order))
	for _, d := range r.List() {
		out = append(out, &einoTool{reg: r, info: toolInfo(d), timeout: timeout})
	}
	return out
}

func (t *einoTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return t.info, nil
}

func (t *einoTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	name := t.info.Name
	callCtx := ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := t.reg.InvokeJSON(callCtx, name, argumentsInJSON)
	rec := RecorderFrom(ctx)
	if err != nil {
		// The turn itself is over; let the graph stop.
		if ctx.Err() != nil {
			return "", err
		}
		return t.fail(rec, err, time.Since(start))
	}

	rec.success(res.Artifacts)
	logx.Debug().Str("tool", name).Dur("took", time.Since(start)).Int("artifacts", len(res.Artifacts)).Msg("tool succeeded")

	if s, ok := res.Value.(string); ok {
		return s, nil
	}
	out, err := sonic.MarshalString(res.Value)
	if err != nil {
		return t.fail(rec, &errx.ToolExecutionError{Tool: name, Err: err}, time.Since(start))
	}
	return out, nil
}

func (t *einoTool) fail(rec *Recorder, err error, took time.Duration) (string, error) {
	name := t.info.Name
	obs := observation{Tool: name, Message: err.Error()}
	failure := model.ToolFailure{Tool: name, Reason: err.Error()}

	var sve *errx.SchemaValidationError
	if errors.As(err, &sve) {
		obs.Error = "schema_validation"
		obs.Fields = sve.Fields
		obs.Instruction = schemaRetryInstruction
		failure.Schema = true
		logx.Warn().Str("tool", name).Err(err).Msg("tool arguments rejected")
	} else {
		obs.Error = "tool_execution"
		obs.Instruction = apologyInstruction
		logx.Error().Str("tool", name).Dur("took", took).Err(err).Msg("tool failed")
	}
	rec.failure(failure)

	out, mErr := sonic.MarshalString(obs)
	if mErr != nil {
		return `{"error":"tool_execution","instruction":"` + apologyInstruction + `"}`, nil
	}
	return out, nil
}
