package repo

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/Chative-analytics/server/internal/agent/model"
)

// MemoryConversationRepository is the in-process store used by the CLI and
// tests. Each session is an append-only slice capped at maxMessages.
type MemoryConversationRepository struct {
	mu          sync.RWMutex
	sessions    map[string][]*schema.Message
	maxMessages int
}

func NewMemoryConversationRepository(maxMessages int) *MemoryConversationRepository {
	return &MemoryConversationRepository{
		sessions:    make(map[string][]*schema.Message),
		maxMessages: maxMessages,
	}
}

func (r *MemoryConversationRepository) AddMessage(_ context.Context, conversationID string, message *schema.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	msgs := append(r.sessions[conversationID], message)
	if r.maxMessages > 0 && len(msgs) > r.maxMessages {
		msgs = append([]*schema.Message(nil), msgs[len(msgs)-r.maxMessages:]...)
	}
	r.sessions[conversationID] = msgs
	return nil
}

func (r *MemoryConversationRepository) LoadHistory(_ context.Context, conversationID string) (*model.ConversationHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src := r.sessions[conversationID]
	out := make([]*schema.Message, len(src))
	copy(out, src)
	return &model.ConversationHistory{ConversationID: conversationID, Messages: out}, nil
}

func (r *MemoryConversationRepository) ClearHistory(_ context.Context, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, conversationID)
	return nil
}

func (r *MemoryConversationRepository) GetMessageCount(_ context.Context, conversationID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[conversationID]), nil
}

var _ model.ConversationRepository = (*MemoryConversationRepository)(nil)
