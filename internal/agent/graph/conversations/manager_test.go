package conversations

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chative-analytics/server/internal/agent/model"
	"github.com/Chative-analytics/server/internal/agent/repo"
)

func TestTrimTail(t *testing.T) {
	t.Parallel()

	call := schema.AssistantMessage("", []schema.ToolCall{{ID: "call_1", Function: schema.FunctionCall{Name: "list_tables"}}})
	msgs := []*schema.Message{
		schema.UserMessage("q1"),
		call,
		schema.ToolMessage("customer_data", "call_1"),
		schema.AssistantMessage("a1", nil),
		schema.UserMessage("q2"),
		schema.AssistantMessage("a2", nil),
	}

	tests := []struct {
		name     string
		maxTurns int
		want     []*schema.Message
	}{
		{name: "unbounded", maxTurns: 0, want: msgs},
		{name: "fits", maxTurns: 10, want: msgs},
		{name: "cut inside tool exchange", maxTurns: 4, want: msgs[4:]},
		{name: "cut at user", maxTurns: 2, want: msgs[4:]},
		{name: "no user in window", maxTurns: 1, want: msgs[5:]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, trimTail(msgs, tt.maxTurns))
		})
	}
}

func TestMessagesManagerPersistsTurn(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := repo.NewMemoryConversationRepository(0)
	mm := NewMessagesManager(store, model.ConversationConfig{MaxTurns: 40})

	msgs, err := mm.BuildTurnContext(ctx, "s1", "top 3 customers", "system")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Equal(t, "top 3 customers", msgs[1].Content)

	call := schema.AssistantMessage("", []schema.ToolCall{{ID: "call_1", Function: schema.FunctionCall{Name: "calculate_clv_top_k", Arguments: `{"k":3}`}}})
	require.NoError(t, mm.SaveAssistant(ctx, "s1", call))
	require.NoError(t, mm.SaveToolResults(ctx, "s1", []*schema.Message{
		schema.ToolMessage(`[{"customer_id":1,"clv":10}]`, "call_1", schema.WithToolName("calculate_clv_top_k")),
	}))
	require.NoError(t, mm.SaveAssistant(ctx, "s1", schema.AssistantMessage("Customer 1 leads.", nil)))

	history, err := store.LoadHistory(ctx, "s1")
	require.NoError(t, err)
	roles := make([]schema.RoleType, len(history.Messages))
	for i, m := range history.Messages {
		roles[i] = m.Role
	}
	assert.Equal(t, []schema.RoleType{schema.User, schema.Assistant, schema.Tool, schema.Assistant}, roles)
	assert.Equal(t, "call_1", history.Messages[2].ToolCallID)
	assert.Equal(t, "calculate_clv_top_k", history.Messages[2].ToolName)
}

func TestPairToolCalls(t *testing.T) {
	t.Parallel()

	answered := schema.AssistantMessage("", []schema.ToolCall{{ID: "call_1", Function: schema.FunctionCall{Name: "list_tables"}}})
	result := schema.ToolMessage("customer_data", "call_1")
	cut := schema.AssistantMessage("", []schema.ToolCall{
		{ID: "call_1", Function: schema.FunctionCall{Name: "calculate_clv_top_k"}},
		{ID: "call_2", Function: schema.FunctionCall{Name: "plot_chart"}},
	})
	partial := schema.ToolMessage("[]", "call_1")

	msgs := []*schema.Message{
		schema.ToolMessage("stray", "call_9"),
		schema.UserMessage("q1"),
		answered,
		result,
		schema.AssistantMessage("a1", nil),
		schema.UserMessage("q2"),
		cut,
		partial,
		schema.UserMessage("q3"),
	}

	got := pairToolCalls(msgs)
	require.Len(t, got, 9)
	assert.Equal(t, []*schema.Message{msgs[1], answered, result, msgs[4], msgs[5], cut, partial}, got[:7])

	filler := got[7]
	assert.Equal(t, schema.Tool, filler.Role)
	assert.Equal(t, "call_2", filler.ToolCallID)
	assert.Equal(t, "plot_chart", filler.ToolName)
	assert.Contains(t, filler.Content, "tool_interrupted")
	assert.Equal(t, "q3", got[8].Content)
}

func TestBuildTurnContextAnswersInterruptedToolCalls(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := repo.NewMemoryConversationRepository(0)
	mm := NewMessagesManager(store, model.ConversationConfig{MaxTurns: 40})

	_, err := mm.BuildTurnContext(ctx, "s1", "top customers", "system")
	require.NoError(t, err)
	call := schema.AssistantMessage("", []schema.ToolCall{{ID: "c1", Function: schema.FunctionCall{Name: "calculate_clv_top_k", Arguments: `{"k":3}`}}})
	require.NoError(t, mm.SaveAssistant(ctx, "s1", call))

	msgs, err := mm.BuildTurnContext(ctx, "s1", "hi", "system")
	require.NoError(t, err)
	roles := make([]schema.RoleType, len(msgs))
	for i, m := range msgs {
		roles[i] = m.Role
	}
	assert.Equal(t, []schema.RoleType{schema.System, schema.User, schema.Assistant, schema.Tool, schema.User}, roles)
	assert.Equal(t, "c1", msgs[3].ToolCallID)
	assert.Equal(t, "hi", msgs[4].Content)
}
