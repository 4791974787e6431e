package model

import "time"

// ================ Config ================
type ConversationConfig struct {
	Store string        `envconfig:"CONVERSATION_STORE" default:"memory"`
	TTL   time.Duration `envconfig:"CONVERSATION_TTL" default:"24h"`
	// MaxTurns bounds both the retained log and the replay window per session.
	MaxTurns int `envconfig:"CONVERSATION_MAX_TURNS" default:"40"`
}

type AgentConfig struct {
	MaxToolCalls int           `envconfig:"AGENT_MAX_TOOL_CALLS" default:"10"`
	TurnTimeout  time.Duration `envconfig:"AGENT_TURN_TIMEOUT" default:"2m"`
	ModelTimeout time.Duration `envconfig:"AGENT_MODEL_TIMEOUT" default:"60s"`
	ToolTimeout  time.Duration `envconfig:"AGENT_TOOL_TIMEOUT" default:"45s"`
	// Observe attaches the eino callback observers to every turn.
	Observe bool `envconfig:"AGENT_OBSERVE" default:"true"`
	// SystemPromptExtra is appended to the built-in system prompt.
	SystemPromptExtra string `envconfig:"AGENT_SYSTEM_PROMPT_EXTRA"`
}

type LLMConfig struct {
	Provider    string        `envconfig:"LLM_PROVIDER" default:"gemini"`
	Model       string        `envconfig:"LLM_MODEL" default:"gemini-2.5-flash"`
	APIKey      string        `envconfig:"LLM_API_KEY"`
	BaseURL     string        `envconfig:"LLM_BASE_URL"`
	MaxTokens   int           `envconfig:"LLM_MAX_TOKENS" default:"2000"`
	Temperature float32       `envconfig:"LLM_TEMPERATURE" default:"0"`
	Timeout     time.Duration `envconfig:"LLM_HTTP_TIMEOUT" default:"60s"`
}

type ArtifactConfig struct {
	ChartsDir     string `envconfig:"ARTIFACTS_CHARTS_DIR" default:"charts"`
	ReportsDir    string `envconfig:"ARTIFACTS_REPORTS_DIR" default:"reports"`
	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL"`
	NgrokLogPath  string `envconfig:"NGROK_LOG_PATH" default:"ngrok_logs/ngrok.log"`
}
