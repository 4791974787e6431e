package conversations

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/Chative-analytics/server/internal/agent/model"
)

// MessagesManager mediates between the graph and the conversation store: it
// persists every turn and builds the bounded replay window for the model.
type MessagesManager struct {
	conversationRepo model.ConversationRepository
	maxTurns         int
}

func NewMessagesManager(conversationRepo model.ConversationRepository, config model.ConversationConfig) *MessagesManager {
	return &MessagesManager{
		conversationRepo: conversationRepo,
		maxTurns:         config.MaxTurns,
	}
}

// BuildTurnContext saves the user's message and returns the system prompt
// followed by the replay window, which ends with that message.
func (cm *MessagesManager) BuildTurnContext(ctx context.Context, conversationID, query, systemPrompt string) ([]*schema.Message, error) {
	if err := cm.conversationRepo.AddMessage(ctx, conversationID, schema.UserMessage(query)); err != nil {
		return nil, fmt.Errorf("save user message: %w", err)
	}

	history, err := cm.conversationRepo.LoadHistory(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	messages := []*schema.Message{schema.SystemMessage(systemPrompt)}
	messages = append(messages, pairToolCalls(trimTail(history.Messages, cm.maxTurns))...)
	return messages, nil
}

// SaveAssistant persists a model message, including one that only requests
// tool calls.
func (cm *MessagesManager) SaveAssistant(ctx context.Context, conversationID string, msg *schema.Message) error {
	stored := schema.AssistantMessage(msg.Content, msg.ToolCalls)
	return cm.conversationRepo.AddMessage(ctx, conversationID, stored)
}

// SaveToolResults persists tool observations in call order.
func (cm *MessagesManager) SaveToolResults(ctx context.Context, conversationID string, results []*schema.Message) error {
	for _, m := range results {
		if m == nil {
			continue
		}
		stored := schema.ToolMessage(m.Content, m.ToolCallID, schema.WithToolName(m.ToolName))
		if err := cm.conversationRepo.AddMessage(ctx, conversationID, stored); err != nil {
			return err
		}
	}
	return nil
}

// trimTail keeps at most maxTurns trailing messages and then drops leading
// messages until the window starts at a user turn, so tool observations are
// never replayed without the call that produced them.
func trimTail(messages []*schema.Message, maxTurns int) []*schema.Message {
	source := messages
	if maxTurns > 0 && len(source) > maxTurns {
		source = source[len(source)-maxTurns:]
	}
	start := 0
	for start < len(source) && (source[start] == nil || source[start].Role != schema.User) {
		start++
	}
	if start == len(source) {
		start = 0
	}
	result := make([]*schema.Message, 0, len(source)-start)
	for _, m := range source[start:] {
		if m != nil {
			result = append(result, m)
		}
	}
	return result
}

// pairToolCalls makes every replayed tool call answered exactly once. A turn
// cut short while a tool ran leaves its call unanswered; such calls get an
// interrupted observation. Tool messages answering no pending call are dropped.
func pairToolCalls(messages []*schema.Message) []*schema.Message {
	result := make([]*schema.Message, 0, len(messages))
	pending := make(map[string]string)
	var order []string
	flush := func() {
		for _, id := range order {
			if name, ok := pending[id]; ok {
				result = append(result, interruptedToolResult(id, name))
			}
		}
		clear(pending)
		order = order[:0]
	}

	for _, m := range messages {
		if m.Role == schema.Tool {
			if _, ok := pending[m.ToolCallID]; ok {
				delete(pending, m.ToolCallID)
				result = append(result, m)
			}
			continue
		}
		flush()
		result = append(result, m)
		if m.Role == schema.Assistant {
			for _, tc := range m.ToolCalls {
				if _, dup := pending[tc.ID]; dup {
					continue
				}
				pending[tc.ID] = tc.Function.Name
				order = append(order, tc.ID)
			}
		}
	}
	flush()
	return result
}

func interruptedToolResult(id, name string) *schema.Message {
	content := fmt.Sprintf(`{"error":"tool_interrupted","name":%q,"instruction":"The previous turn ended before this tool returned. Call it again if the result is still needed."}`, name)
	return schema.ToolMessage(content, id, schema.WithToolName(name))
}
