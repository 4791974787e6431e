package graph

import (
	"context"
	"fmt"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"

	"github.com/Chative-analytics/server/internal/agent/graph/conversations"
	"github.com/Chative-analytics/server/internal/agent/graph/nodes"
	"github.com/Chative-analytics/server/internal/agent/graph/observers"
	"github.com/Chative-analytics/server/internal/agent/graph/prompts"
	"github.com/Chative-analytics/server/internal/agent/graph/tools"
	"github.com/Chative-analytics/server/internal/agent/model"
	logx "github.com/Chative-analytics/server/pkg/logger"
)

// Runner executes one user turn through the compiled graph.
type Runner interface {
	Invoke(ctx context.Context, in model.TurnInput) (*model.TurnResult, error)
}

// Config holds everything needed to compose the agent graph.
type Config struct {
	// ChatModel must not have tools bound yet; BuildGraph binds the registry.
	ChatModel    einomodel.ToolCallingChatModel
	ModelName    string
	ModelTimeout time.Duration

	Registry        *tools.Registry
	MessagesManager *conversations.MessagesManager
	SystemPrompt    *prompts.System

	MaxToolCalls int
	ToolTimeout  time.Duration
	// Observe attaches the logging callbacks to every run.
	Observe bool
}

// GraphBuilder handles the construction of the agent conversation graph
type GraphBuilder struct {
	config *Config
	graph  *compose.Graph[model.TurnInput, *model.TurnResult]
}

type graphRunner struct {
	runnable compose.Runnable[model.TurnInput, *model.TurnResult]
	observe  bool
}

func (r *graphRunner) Invoke(ctx context.Context, in model.TurnInput) (*model.TurnResult, error) {
	ctx, _ = tools.WithRecorder(ctx)

	var opts []compose.Option
	if r.observe {
		opts = append(opts, compose.WithCallbacks(observers.NewAllCallbacks()))
	}
	out, err := r.runnable.Invoke(ctx, in, opts...)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("graph returned no result")
	}
	return out, nil
}

// BuildGraph validates the config, binds the registry's tools to the model
// and compiles the ChatModel <-> ToolExecutor loop.
func BuildGraph(ctx context.Context, config *Config) (Runner, error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.ChatModel == nil {
		return nil, fmt.Errorf("chat model is nil")
	}
	if config.Registry == nil {
		return nil, fmt.Errorf("tool registry is nil")
	}
	if config.MessagesManager == nil {
		return nil, fmt.Errorf("messages manager is nil")
	}
	if config.SystemPrompt == nil {
		return nil, fmt.Errorf("system prompt is nil")
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.TurnInput, *model.TurnResult](
			compose.WithGenLocalState(func(ctx context.Context) *model.AppState {
				return &model.AppState{}
			}),
		),
	}

	if err := builder.setupTools(ctx); err != nil {
		return nil, err
	}
	if err := builder.addNodes(); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}
	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	runnable, err := builder.compile(ctx)
	if err != nil {
		return nil, err
	}
	return &graphRunner{runnable: runnable, observe: config.Observe}, nil
}

// setupTools binds the tool descriptors to the model and adds the tools node.
func (b *GraphBuilder) setupTools(ctx context.Context) error {
	cm, err := nodes.BindTools(b.config.ChatModel, b.config.Registry.ToolInfos())
	if err != nil {
		logx.Error().Err(err).Msg("Failed to bind tools to chat model")
		return fmt.Errorf("failed to bind tools to chat model: %w", err)
	}
	b.config.ChatModel = nodes.WithTimeout(cm, b.config.ModelTimeout)

	toolsNode, err := compose.NewToolNode(ctx, &compose.ToolsNodeConfig{
		Tools:               b.config.Registry.EinoTools(b.config.ToolTimeout),
		ExecuteSequentially: true,
		UnknownToolsHandler: nodes.UnknownToolHandler,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Failed to create tools node")
		return fmt.Errorf("failed to create tools node: %w", err)
	}

	return b.graph.AddToolsNode(nodes.NodeToolExecutor, toolsNode,
		compose.WithStatePreHandler(nodes.NewToolExecutorPreHandler(b.config.MaxToolCalls)),
		compose.WithStatePostHandler(nodes.NewToolExecutorPostHandler(b.config.MessagesManager)),
	)
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() error {
	if err := b.graph.AddLambdaNode(nodes.NodeInputConverter,
		nodes.NewInputConverterNode(b.config.MessagesManager, b.config.SystemPrompt),
		compose.WithStatePreHandler(nodes.NewInputConverterPreHandler()),
	); err != nil {
		return fmt.Errorf("add input converter: %w", err)
	}

	if err := b.graph.AddChatModelNode(nodes.NodeChatModel,
		b.config.ChatModel,
		compose.WithStatePreHandler(nodes.NewChatModelPreHandler(b.config.MaxToolCalls)),
		compose.WithStatePostHandler(nodes.NewChatModelPostHandler(b.config.MessagesManager, b.config.ModelName, b.config.MaxToolCalls)),
	); err != nil {
		return fmt.Errorf("add chat model: %w", err)
	}

	if err := b.graph.AddLambdaNode(nodes.NodeFinalizer, nodes.NewFinalizerNode()); err != nil {
		return fmt.Errorf("add finalizer: %w", err)
	}
	return nil
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeInputConverter},
		{nodes.NodeInputConverter, nodes.NodeChatModel},
		{nodes.NodeToolExecutor, nodes.NodeChatModel},
		{nodes.NodeFinalizer, compose.END},
	}

	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			return fmt.Errorf("add edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// addBranches creates conditional routing branches
func (b *GraphBuilder) addBranches() error {
	decisionBranch := compose.NewGraphBranch(
		nodes.NewToolExecutorCondition(),
		map[string]bool{
			nodes.NodeToolExecutor: true,
			nodes.NodeFinalizer:    true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeChatModel, decisionBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding decision branch")
		return fmt.Errorf("error adding decision branch: %w", err)
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.TurnInput, *model.TurnResult], error) {
	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(nodes.MaxRunSteps(b.config.MaxToolCalls)))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
