package observers

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
)

func TestNewAllCallbacks(t *testing.T) {
	assert.NotNil(t, NewAllCallbacks())
}

func TestLastUserContent(t *testing.T) {
	msgs := []*schema.Message{
		schema.SystemMessage("sys"),
		schema.UserMessage(" first "),
		nil,
		schema.AssistantMessage("ok", nil),
		schema.UserMessage(" second "),
		schema.ToolMessage("{}", "call_1"),
	}
	assert.Equal(t, "second", lastUserContent(msgs))
	assert.Empty(t, lastUserContent(nil))
}

func TestToolCallNames(t *testing.T) {
	msg := schema.AssistantMessage("", []schema.ToolCall{
		{ID: "call_1", Function: schema.FunctionCall{Name: "plot_chart"}},
		{ID: "call_2", Function: schema.FunctionCall{Name: "list_tables"}},
	})
	assert.Equal(t, []string{"plot_chart", "list_tables"}, toolCallNames(msg))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdef", 2))
}
