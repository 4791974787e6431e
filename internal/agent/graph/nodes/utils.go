package nodes

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/schema"

	"github.com/Chative-analytics/server/internal/agent/model"
)

const (
	NodeInputConverter = "InputConverter"
	NodeChatModel      = "ChatModel"
	NodeToolExecutor   = "ToolExecutor"
	NodeFinalizer      = "Finalizer"
)

const DefaultMaxToolCalls = 10

// ===== Small helpers to keep handlers simple/readable =====
// normalizeMaxToolCalls returns a sane default when the provided value is invalid.
func normalizeMaxToolCalls(n int) int {
	if n <= 0 {
		return DefaultMaxToolCalls
	}
	return n
}

// checkAndMarkToolLimit evaluates whether another tool round would exceed the
// limit and, if so, marks the state accordingly. Returns true when marked now.
func checkAndMarkToolLimit(state *model.AppState, max int) bool {
	max = normalizeMaxToolCalls(max)
	if !state.ToolCallLimitReached && state.ToolCallCount >= max {
		state.ToolCallLimitReached = true
		return true
	}
	return false
}

// incrementToolCallAndCheck increments the count and marks the state if it
// exceeds the limit after incrementing. Returns true when exceeded.
func incrementToolCallAndCheck(state *model.AppState, max int) bool {
	max = normalizeMaxToolCalls(max)
	state.ToolCallCount++
	if state.ToolCallCount > max {
		state.ToolCallLimitReached = true
		return true
	}
	return false
}

// MaxRunSteps bounds graph steps for a tool limit: one model and one tool
// step per round plus the entry, wrap-up and finalizer steps.
func MaxRunSteps(maxToolCalls int) int {
	steps := 10 + normalizeMaxToolCalls(maxToolCalls)*2
	if steps < 20 {
		steps = 20
	}
	return steps
}

// messageText returns the textual answer of msg. Multi-part content is
// flattened: text parts verbatim, other parts stringified as JSON.
func messageText(msg *schema.Message) string {
	if msg == nil {
		return ""
	}
	if strings.TrimSpace(msg.Content) != "" {
		return msg.Content
	}
	var parts []string
	for _, p := range msg.MultiContent {
		if p.Type == schema.ChatMessagePartTypeText {
			if strings.TrimSpace(p.Text) != "" {
				parts = append(parts, p.Text)
			}
			continue
		}
		if s, err := sonic.MarshalString(p); err == nil {
			parts = append(parts, s)
		} else {
			parts = append(parts, fmt.Sprintf("%v", p))
		}
	}
	return strings.Join(parts, "\n")
}
