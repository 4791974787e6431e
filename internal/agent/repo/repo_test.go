package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chative-analytics/server/internal/agent/model"
)

func newRedisRepo(t *testing.T, ttl time.Duration, max int) (*RedisConversationRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisConversationRepository(rdb, ttl, max), mr
}

func TestRepositories(t *testing.T) {
	t.Parallel()

	impls := map[string]func(t *testing.T, max int) model.ConversationRepository{
		"memory": func(t *testing.T, max int) model.ConversationRepository {
			return NewMemoryConversationRepository(max)
		},
		"redis": func(t *testing.T, max int) model.ConversationRepository {
			r, _ := newRedisRepo(t, time.Hour, max)
			return r
		},
	}

	for name, build := range impls {
		t.Run(name+"/append order and tool turns", func(t *testing.T) {
			ctx := context.Background()
			repo := build(t, 0)

			call := schema.AssistantMessage("", []schema.ToolCall{{
				ID:       "call_1",
				Function: schema.FunctionCall{Name: "calculate_clv_top_k", Arguments: `{"k":3}`},
			}})
			msgs := []*schema.Message{
				schema.UserMessage("top 3 customers by lifetime value"),
				call,
				schema.ToolMessage(`[{"customer_id":7,"clv":812.4}]`, "call_1"),
				schema.AssistantMessage("Customer 7 leads.", nil),
			}
			for _, m := range msgs {
				require.NoError(t, repo.AddMessage(ctx, "s1", m))
			}

			hist, err := repo.LoadHistory(ctx, "s1")
			require.NoError(t, err)
			require.Len(t, hist.Messages, 4)
			assert.Equal(t, schema.User, hist.Messages[0].Role)
			assert.Equal(t, "call_1", hist.Messages[1].ToolCalls[0].ID)
			assert.Equal(t, schema.Tool, hist.Messages[2].Role)
			assert.Equal(t, "call_1", hist.Messages[2].ToolCallID)
			assert.Equal(t, "Customer 7 leads.", hist.Messages[3].Content)

			other, err := repo.LoadHistory(ctx, "s2")
			require.NoError(t, err)
			assert.Empty(t, other.Messages)

			n, err := repo.GetMessageCount(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, 4, n)

			require.NoError(t, repo.ClearHistory(ctx, "s1"))
			n, err = repo.GetMessageCount(ctx, "s1")
			require.NoError(t, err)
			assert.Zero(t, n)
		})

		t.Run(name+"/retention cap keeps newest", func(t *testing.T) {
			ctx := context.Background()
			repo := build(t, 3)
			for i := 0; i < 5; i++ {
				require.NoError(t, repo.AddMessage(ctx, "s", schema.UserMessage(fmt.Sprintf("m%d", i))))
			}
			hist, err := repo.LoadHistory(ctx, "s")
			require.NoError(t, err)
			require.Len(t, hist.Messages, 3)
			assert.Equal(t, "m2", hist.Messages[0].Content)
			assert.Equal(t, "m4", hist.Messages[2].Content)
		})
	}
}

func TestRedisRepositoryRefreshesTTL(t *testing.T) {
	t.Parallel()

	repo, mr := newRedisRepo(t, 10*time.Minute, 0)
	require.NoError(t, repo.AddMessage(context.Background(), "abc", schema.UserMessage("hi")))
	assert.Equal(t, 10*time.Minute, mr.TTL("conversation:abc:messages"))

	mr.FastForward(11 * time.Minute)
	n, err := repo.GetMessageCount(context.Background(), "abc")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisRepositoryCorruptEntry(t *testing.T) {
	t.Parallel()

	repo, mr := newRedisRepo(t, 0, 0)
	_, err := mr.Push("conversation:bad:messages", "{not json")
	require.NoError(t, err)

	_, err = repo.LoadHistory(context.Background(), "bad")
	require.Error(t, err)
}
