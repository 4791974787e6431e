package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Chative-analytics/server/internal/agent/assistant"
	"github.com/Chative-analytics/server/internal/agent/graph"
	"github.com/Chative-analytics/server/internal/agent/graph/conversations"
	"github.com/Chative-analytics/server/internal/agent/graph/nodes"
	"github.com/Chative-analytics/server/internal/agent/graph/prompts"
	"github.com/Chative-analytics/server/internal/agent/graph/tools"
	"github.com/Chative-analytics/server/internal/agent/model"
	"github.com/Chative-analytics/server/internal/agent/repo"
	"github.com/Chative-analytics/server/internal/agent/reply"
	"github.com/Chative-analytics/server/internal/store"
	logx "github.com/Chative-analytics/server/pkg/logger"
)

// app holds the long-lived collaborators of a running assistant.
type app struct {
	cfg       *AppConfig
	store     *store.Store
	assistant *assistant.Assistant
	closers   []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// openStore opens the SQLite analytics store.
func openStore(ctx context.Context, cfg *AppConfig) (*store.Store, error) {
	db, err := cfg.SQLite.Open(ctx)
	if err != nil {
		return nil, err
	}
	st, err := store.New(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func newRegistry(cfg *AppConfig, st *store.Store) (*tools.Registry, error) {
	return tools.NewDefaultRegistry(tools.Deps{
		Store:      st,
		ChartsDir:  cfg.Artifacts.ChartsDir,
		ReportsDir: cfg.Artifacts.ReportsDir,
		RowLimit:   store.DefaultRowLimit,
	})
}

func newConversationRepo(ctx context.Context, cfg *AppConfig) (model.ConversationRepository, func() error, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Conversation.Store)) {
	case "", "memory":
		return repo.NewMemoryConversationRepository(cfg.Conversation.MaxTurns), func() error { return nil }, nil
	case "redis":
		rdb, err := cfg.Redis.New(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialise redis client: %w", err)
		}
		logx.Info().Msg("Connected to Redis successfully")
		return repo.NewRedisConversationRepository(rdb, cfg.Conversation.TTL, cfg.Conversation.MaxTurns), rdb.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown conversation store %q", cfg.Conversation.Store)
	}
}

func newResolver(cfg model.ArtifactConfig) reply.BaseURLResolver {
	var chain reply.ChainResolver
	if strings.TrimSpace(cfg.PublicBaseURL) != "" {
		chain = append(chain, reply.StaticResolver(cfg.PublicBaseURL))
	}
	if strings.TrimSpace(cfg.NgrokLogPath) != "" {
		chain = append(chain, reply.NgrokLogResolver{Path: cfg.NgrokLogPath})
	}
	return chain
}

// buildApp constructs the store, memory, model, registry and graph and hands
// them to a new Assistant.
func buildApp(ctx context.Context, cfg *AppConfig) (*app, error) {
	a := &app{cfg: cfg}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.store = st
	a.closers = append(a.closers, st.Close)

	fail := func(err error) (*app, error) {
		_ = a.Close()
		return nil, err
	}

	convRepo, closeRepo, err := newConversationRepo(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	a.closers = append(a.closers, closeRepo)

	registry, err := newRegistry(cfg, st)
	if err != nil {
		return fail(err)
	}

	tables, err := st.ListTables(ctx)
	if err != nil {
		return fail(fmt.Errorf("list tables: %w", err))
	}

	cm, err := nodes.NewChatModel(ctx, cfg.LLM)
	if err != nil {
		return fail(err)
	}

	runner, err := graph.BuildGraph(ctx, &graph.Config{
		ChatModel:       cm,
		ModelName:       cfg.LLM.Model,
		ModelTimeout:    cfg.Agent.ModelTimeout,
		Registry:        registry,
		MessagesManager: conversations.NewMessagesManager(convRepo, cfg.Conversation),
		SystemPrompt:    prompts.NewSystem(tables, cfg.Agent.SystemPromptExtra),
		MaxToolCalls:    cfg.Agent.MaxToolCalls,
		ToolTimeout:     cfg.Agent.ToolTimeout,
		Observe:         cfg.Agent.Observe,
	})
	if err != nil {
		return fail(err)
	}

	a.assistant = assistant.New(runner, reply.NewBuilder(newResolver(cfg.Artifacts)), cfg.Agent.TurnTimeout)
	logx.Info().
		Str("provider", cfg.LLM.Provider).
		Str("model", cfg.LLM.Model).
		Strs("tables", tables).
		Int("tools", len(registry.Names())).
		Msg("assistant ready")
	return a, nil
}
