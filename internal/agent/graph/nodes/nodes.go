package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/Chative-analytics/server/internal/agent/graph/conversations"
	"github.com/Chative-analytics/server/internal/agent/graph/prompts"
	"github.com/Chative-analytics/server/internal/agent/graph/tools"
	"github.com/Chative-analytics/server/internal/agent/model"
	logx "github.com/Chative-analytics/server/pkg/logger"
)

const (
	limitFallback   = "I reached the limit of %d analysis steps before I could finish. Please narrow the question and try again."
	failureFallback = "Sorry, I could not complete the analysis because the %s tool failed. Please try again or ask a different question."
	emptyFallback   = "Sorry, I could not produce an answer. Please rephrase your question."
)

// NewInputConverterPreHandler resets per-turn counters.
func NewInputConverterPreHandler() func(context.Context, model.TurnInput, *model.AppState) (model.TurnInput, error) {
	return func(ctx context.Context, in model.TurnInput, s *model.AppState) (model.TurnInput, error) {
		if s.ConversationID == "" {
			s.ConversationID = in.ConversationID
		}
		s.ToolCallCount = 0
		s.ToolCallLimitReached = false
		s.ToolCallIDSeq = 0
		s.TotalCostUSD = 0
		return in, nil
	}
}

// NewInputConverterNode saves the user turn and emits the system prompt plus
// the replay window.
func NewInputConverterNode(mm *conversations.MessagesManager, system *prompts.System) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.TurnInput) ([]*schema.Message, error) {
		systemPrompt, err := system.Render(ctx)
		if err != nil {
			return nil, err
		}
		messages, err := mm.BuildTurnContext(ctx, input.ConversationID, input.Query, systemPrompt)
		if err != nil {
			return nil, fmt.Errorf("error getting conversation context: %w", err)
		}
		return messages, nil
	})
}

// NewChatModelPreHandler accumulates the conversation in state and, once the
// tool limit is hit, asks the model to wrap up.
func NewChatModelPreHandler(maxToolCalls int) func(context.Context, []*schema.Message, *model.AppState) ([]*schema.Message, error) {
	return func(ctx context.Context, in []*schema.Message, state *model.AppState) ([]*schema.Message, error) {
		state.History = append(state.History, in...)

		if checkAndMarkToolLimit(state, maxToolCalls) {
			maxToolCalls = normalizeMaxToolCalls(maxToolCalls)
			wrapUp := &schema.Message{
				Role: schema.System,
				Content: fmt.Sprintf(
					"SYSTEM NOTICE: You have reached the maximum tool call limit (%d). "+
						"Do not call any more tools. Answer with the information you already have "+
						"and say which parts of the question remain unanswered.",
					maxToolCalls,
				),
			}
			state.History = append(state.History, wrapUp)
		}

		logx.Debug().Str("conversation_id", state.ConversationID).Int("messages", len(state.History)).Msg("AI thinking...")
		return state.History, nil
	}
}

// NewChatModelPostHandler accounts cost, normalises tool call ids, persists the
// message and, for final answers, applies fallbacks so the turn always ends
// with text.
func NewChatModelPostHandler(
	mm *conversations.MessagesManager,
	modelName string,
	maxToolCalls int,
) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AppState) (*schema.Message, error) {
		if out == nil {
			out = schema.AssistantMessage("", nil)
		}
		recordUsage(out, state, modelName)

		// Some providers omit tool_call ids.
		for i := range out.ToolCalls {
			if strings.TrimSpace(out.ToolCalls[i].ID) == "" {
				state.ToolCallIDSeq++
				out.ToolCalls[i].ID = fmt.Sprintf("call_%d", state.ToolCallIDSeq)
			}
		}

		if len(out.ToolCalls) > 0 && !state.ToolCallLimitReached {
			logx.Debug().Int("tool_count", len(out.ToolCalls)).Msg("Calling tools")
			state.History = append(state.History, out)
			if err := mm.SaveAssistant(ctx, state.ConversationID, out); err != nil {
				return nil, fmt.Errorf("save tool call message: %w", err)
			}
			return out, nil
		}

		final := finalAnswer(ctx, out, state, maxToolCalls)
		state.History = append(state.History, final)
		if err := mm.SaveAssistant(ctx, state.ConversationID, final); err != nil {
			return nil, fmt.Errorf("save assistant response: %w", err)
		}
		logx.Debug().Str("conversation_id", state.ConversationID).Msg("AI response ready")
		return final, nil
	}
}

// finalAnswer strips tool calls and fills an empty answer.
func finalAnswer(ctx context.Context, out *schema.Message, state *model.AppState, maxToolCalls int) *schema.Message {
	content := messageText(out)
	if strings.TrimSpace(content) == "" {
		_, failures, _ := tools.RecorderFrom(ctx).Snapshot()
		switch {
		case state.ToolCallLimitReached:
			content = fmt.Sprintf(limitFallback, normalizeMaxToolCalls(maxToolCalls))
		case len(failures) > 0:
			content = fmt.Sprintf(failureFallback, failures[len(failures)-1].Tool)
		default:
			content = emptyFallback
		}
		logx.Warn().Str("conversation_id", state.ConversationID).Msg("model returned no text; using fallback answer")
	}
	final := schema.AssistantMessage(content, nil)
	final.MultiContent = out.MultiContent
	final.ResponseMeta = out.ResponseMeta
	final.Extra = out.Extra
	return final
}

func recordUsage(out *schema.Message, state *model.AppState, modelName string) {
	if out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
		return
	}
	usage := out.ResponseMeta.Usage
	pricing := model.ResolvePricing(modelName)
	inC, outC, totalC := model.ComputeCost(usage, pricing)
	if out.Extra == nil {
		out.Extra = map[string]any{}
	}
	out.Extra["usage_cost"] = map[string]any{
		"currency":          "USD",
		"model":             modelName,
		"prompt_tokens":     usage.PromptTokens,
		"completion_tokens": usage.CompletionTokens,
		"total_tokens":      usage.TotalTokens,
		"input_cost":        inC,
		"output_cost":       outC,
		"total_cost":        totalC,
	}
	logx.Debug().
		Str("conversation_id", state.ConversationID).
		Str("node", NodeChatModel).
		Str("model", modelName).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Int("total_tokens", usage.TotalTokens).
		Float64("total_cost_usd", totalC).
		Msg("LLM usage")

	state.TotalCostUSD += totalC
	out.Extra["usage_cost_total_usd"] = state.TotalCostUSD
}

// NewToolExecutorCondition routes to the tools node while the model keeps
// asking for tools and the limit has not been reached.
func NewToolExecutorCondition() func(context.Context, *schema.Message) (string, error) {
	return func(ctx context.Context, input *schema.Message) (string, error) {
		var limitReached bool
		_ = compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			limitReached = state.ToolCallLimitReached
			return nil
		})

		if limitReached || len(input.ToolCalls) == 0 {
			return NodeFinalizer, nil
		}
		logx.Debug().Int("tool_count", len(input.ToolCalls)).Msg("Routing to ToolExecutor")
		return NodeToolExecutor, nil
	}
}

// NewToolExecutorPreHandler counts tool rounds.
func NewToolExecutorPreHandler(maxToolCalls int) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, in *schema.Message, state *model.AppState) (*schema.Message, error) {
		exceeded := incrementToolCallAndCheck(state, maxToolCalls)

		logx.Debug().
			Int("tool_call_count", state.ToolCallCount).
			Str("conversation_id", state.ConversationID).
			Msg("Tool execution attempt")

		if exceeded {
			logx.Warn().
				Int("tool_call_count", state.ToolCallCount).
				Int("max_tool_calls", normalizeMaxToolCalls(maxToolCalls)).
				Str("conversation_id", state.ConversationID).
				Msg("Tool call limit exceeded - flagging and continuing")
		}
		return in, nil
	}
}

// NewToolExecutorPostHandler persists tool observations as conversation turns.
func NewToolExecutorPostHandler(mm *conversations.MessagesManager) func(context.Context, []*schema.Message, *model.AppState) ([]*schema.Message, error) {
	return func(ctx context.Context, out []*schema.Message, state *model.AppState) ([]*schema.Message, error) {
		if err := mm.SaveToolResults(ctx, state.ConversationID, out); err != nil {
			return nil, fmt.Errorf("save tool results: %w", err)
		}
		return out, nil
	}
}

// NewFinalizerNode packages the answer with what the tools recorded.
func NewFinalizerNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, answer *schema.Message) (*model.TurnResult, error) {
		artifacts, failures, calls := tools.RecorderFrom(ctx).Snapshot()
		return &model.TurnResult{
			Answer:    answer,
			Artifacts: artifacts,
			Failures:  failures,
			ToolCalls: calls,
		}, nil
	})
}

// UnknownToolHandler answers hallucinated tool names with an observation the
// model can recover from.
func UnknownToolHandler(ctx context.Context, name, input string) (string, error) {
	logx.Warn().
		Str("tool_name", name).
		Str("arguments", input).
		Msg("Unknown or invalid tool call; returning fallback result")
	return fmt.Sprintf(`{"error":"unknown_tool","name":%q,"instruction":"Use only the tools you were given."}`, name), nil
}
