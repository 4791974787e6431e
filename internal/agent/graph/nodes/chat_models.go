package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/Chative-analytics/server/internal/agent/model"
	logx "github.com/Chative-analytics/server/pkg/logger"
)

const (
	ProviderGemini     = "gemini"
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"

	openRouterBaseURL = "https://openrouter.ai/api/v1"
)

// NewChatModel creates the agent's tool-calling model for the configured
// provider.
func NewChatModel(ctx context.Context, cfg model.LLMConfig) (einomodel.ToolCallingChatModel, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	temperature := cfg.Temperature
	maxTokens := cfg.MaxTokens

	switch provider {
	case ProviderGemini:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini: LLM_API_KEY is required")
		}
		clientCfg := &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		}
		if cfg.BaseURL != "" {
			clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
		}
		client, err := genai.NewClient(ctx, clientCfg)
		if err != nil {
			logx.Error().Err(err).Msg("Error creating Gemini client")
			return nil, fmt.Errorf("error creating Gemini client: %w", err)
		}
		cm, err := gemini.NewChatModel(ctx, &gemini.Config{
			Client:      client,
			Model:       cfg.Model,
			Temperature: &temperature,
			MaxTokens:   &maxTokens,
		})
		if err != nil {
			logx.Error().Err(err).Msg("Error creating Gemini chat model")
			return nil, fmt.Errorf("error creating Gemini chat model: %w", err)
		}
		return cm, nil

	case ProviderOpenAI, ProviderOpenRouter:
		baseURL := cfg.BaseURL
		if baseURL == "" && provider == ProviderOpenRouter {
			baseURL = openRouterBaseURL
		}
		cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:      cfg.APIKey,
			BaseURL:     baseURL,
			Model:       cfg.Model,
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
			Timeout:     cfg.Timeout,
		})
		if err != nil {
			logx.Error().Err(err).Str("provider", provider).Msg("Error creating OpenAI-compatible chat model")
			return nil, fmt.Errorf("error creating %s chat model: %w", provider, err)
		}
		return cm, nil

	case ProviderOllama:
		cm, err := ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			logx.Error().Err(err).Msg("Error creating Ollama chat model")
			return nil, fmt.Errorf("error creating ollama chat model: %w", err)
		}
		return cm, nil
	}
	return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Provider)
}

// BindTools returns a copy of cm that offers tools to the model.
func BindTools(cm einomodel.ToolCallingChatModel, tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	bound, err := cm.WithTools(tools)
	if err != nil {
		logx.Error().Err(err).Msg("Failed to bind tools")
		return nil, fmt.Errorf("failed to bind tools: %w", err)
	}
	logx.Debug().Int("tools", len(tools)).Msg("Successfully bound tools to chat model")
	return bound, nil
}
