package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/schema"

	"github.com/Chative-analytics/server/internal/agent/model"
	errx "github.com/Chative-analytics/server/internal/core/error"
	logx "github.com/Chative-analytics/server/pkg/logger"
)

// Param declares one named argument. Type uses eino's data types so the same
// declaration feeds both validation and the model-facing ToolInfo.
type Param struct {
	Name     string          `yaml:"name"`
	Type     schema.DataType `yaml:"type"`
	Items    schema.DataType `yaml:"items,omitempty"`
	Desc     string          `yaml:"description"`
	Required bool            `yaml:"required"`
	Default  any             `yaml:"default,omitempty"`
	// Min bounds integer and number arguments from below.
	Min *float64 `yaml:"min,omitempty"`
}

// Descriptor is the registry-facing contract of a tool. Params keep their
// declaration order.
type Descriptor struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Params      []Param `yaml:"params"`
}

// Args is a validated argument bundle.
type Args map[string]any

// Result is what a tool returns. Value is sent back to the model; Artifacts
// are side outputs such as chart images.
type Result struct {
	Value     any
	Artifacts []model.Artifact
}

// Tool is a stateless callable keyed by its descriptor name.
type Tool interface {
	Descriptor() Descriptor
	Invoke(ctx context.Context, args Args) (Result, error)
}

// Registry is the dispatch table handed to the agent. It is filled once at
// build time and read-only afterwards.
type Registry struct {
	tools map[string]Tool
	order []string
}

func NewRegistry() *Registry {
	return &Registry{tools: map[string]Tool{}}
}

// Register adds t. Names must be unique and parameter declarations valid.
func (r *Registry) Register(t Tool) error {
	d := t.Descriptor()
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: tool name is empty", errx.ErrInvalidInput)
	}
	if _, dup := r.tools[d.Name]; dup {
		return fmt.Errorf("%w: tool %q already registered", errx.ErrInvalidInput, d.Name)
	}
	seen := map[string]bool{}
	for _, p := range d.Params {
		if p.Name == "" || seen[p.Name] {
			return fmt.Errorf("%w: tool %q has an empty or duplicate parameter %q", errx.ErrInvalidInput, d.Name, p.Name)
		}
		seen[p.Name] = true
		if !knownType(p.Type) || (p.Type == schema.Array && !knownType(p.Items)) {
			return fmt.Errorf("%w: tool %q parameter %q has unsupported type", errx.ErrInvalidInput, d.Name, p.Name)
		}
	}
	r.tools[d.Name] = t
	r.order = append(r.order, d.Name)
	return nil
}

// List returns descriptors in registration order.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Descriptor())
	}
	return out
}

func (r *Registry) Names() []string {
	out := append([]string(nil), r.order...)
	sort.Strings(out)
	return out
}

// Invoke validates args against the tool schema and runs the tool. Failures
// raised by the tool, including panics and ctx expiry, come back as
// *errx.ToolExecutionError; bad arguments as *errx.SchemaValidationError.
func (r *Registry) Invoke(ctx context.Context, name string, args Args) (Result, error) {
	t, ok := r.tools[name]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", errx.ErrUnknownTool, name)
	}
	fixed, err := Validate(t.Descriptor(), args)
	if err != nil {
		return Result{}, err
	}

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				logx.Error().Str("tool", name).Interface("panic", p).Msg("tool panicked")
				done <- outcome{err: fmt.Errorf("panic: %v", p)}
			}
		}()
		res, err := t.Invoke(ctx, fixed)
		done <- outcome{res: res, err: err}
	}()

	select {
	case <-ctx.Done():
		cause := ctx.Err()
		if errors.Is(cause, context.DeadlineExceeded) {
			cause = fmt.Errorf("%w: %v", errx.ErrTimeout, cause)
		}
		return Result{}, &errx.ToolExecutionError{Tool: name, Err: cause}
	case o := <-done:
		if o.err != nil {
			var te *errx.ToolExecutionError
			if errors.As(o.err, &te) {
				return Result{}, o.err
			}
			return Result{}, &errx.ToolExecutionError{Tool: name, Err: o.err}
		}
		return o.res, nil
	}
}

// InvokeJSON decodes model-supplied JSON arguments before Invoke.
func (r *Registry) InvokeJSON(ctx context.Context, name, raw string) (Result, error) {
	args := Args{}
	if s := strings.TrimSpace(raw); s != "" && s != "null" {
		if err := sonic.UnmarshalString(s, &args); err != nil {
			return Result{}, &errx.SchemaValidationError{
				Tool:   name,
				Fields: []errx.FieldError{{Name: "arguments", Reason: "not a JSON object: " + err.Error()}},
			}
		}
	}
	return r.Invoke(ctx, name, args)
}

// ToolInfos renders every descriptor for binding to a chat model.
func (r *Registry) ToolInfos() []*schema.ToolInfo {
	out := make([]*schema.ToolInfo, 0, len(r.order))
	for _, d := range r.List() {
		out = append(out, toolInfo(d))
	}
	return out
}

func toolInfo(d Descriptor) *schema.ToolInfo {
	params := make(map[string]*schema.ParameterInfo, len(d.Params))
	for _, p := range d.Params {
		desc := p.Desc
		if p.Default != nil {
			desc = fmt.Sprintf("%s (default: %v)", desc, p.Default)
		}
		info := &schema.ParameterInfo{Type: p.Type, Desc: desc, Required: p.Required}
		if p.Type == schema.Array {
			info.ElemInfo = &schema.ParameterInfo{Type: p.Items}
		}
		params[p.Name] = info
	}
	return &schema.ToolInfo{
		Name:        d.Name,
		Desc:        d.Description,
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}
}

func knownType(t schema.DataType) bool {
	switch t {
	case schema.String, schema.Integer, schema.Number, schema.Boolean, schema.Array:
		return true
	}
	return false
}
