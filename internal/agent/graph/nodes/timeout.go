package nodes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	errx "github.com/Chative-analytics/server/internal/core/error"
)

// timeoutChatModel bounds every Generate call of the wrapped model.
type timeoutChatModel struct {
	inner   einomodel.ToolCallingChatModel
	timeout time.Duration
}

// WithTimeout wraps cm so each Generate call fails with errx.ErrTimeout after
// d. A non-positive d returns cm unchanged.
func WithTimeout(cm einomodel.ToolCallingChatModel, d time.Duration) einomodel.ToolCallingChatModel {
	if d <= 0 {
		return cm
	}
	return &timeoutChatModel{inner: cm, timeout: d}
}

func (m *timeoutChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	out, err := m.inner.Generate(callCtx, input, opts...)
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, fmt.Errorf("%w: model call exceeded %s: %v", errx.ErrTimeout, m.timeout, err)
	}
	return out, err
}

// Stream is not bounded; the reader outlives this call.
func (m *timeoutChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return m.inner.Stream(ctx, input, opts...)
}

func (m *timeoutChatModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	bound, err := m.inner.WithTools(tools)
	if err != nil {
		return nil, err
	}
	return &timeoutChatModel{inner: bound, timeout: m.timeout}, nil
}

func (m *timeoutChatModel) GetType() string {
	if t, ok := m.inner.(components.Typer); ok {
		return t.GetType()
	}
	return "TimeoutChatModel"
}

// IsCallbacksEnabled defers to the wrapped model so callbacks fire once.
func (m *timeoutChatModel) IsCallbacksEnabled() bool {
	if c, ok := m.inner.(components.Checker); ok {
		return c.IsCallbacksEnabled()
	}
	return false
}
