package cli

import (
	"github.com/Chative-analytics/server/internal/agent/model"
	"github.com/Chative-analytics/server/internal/core"
	"github.com/Chative-analytics/server/internal/store"
	"github.com/Chative-analytics/server/internal/transport/httpapi"
	configx "github.com/Chative-analytics/server/pkg/config"
	logx "github.com/Chative-analytics/server/pkg/logger"
	pkgredis "github.com/Chative-analytics/server/pkg/redis"
	pkgsqlite "github.com/Chative-analytics/server/pkg/sqlite"
)

// AppConfig defines all configurable parameters, sourced from environment
// variables (optionally loaded from an env file).
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" default:"development"`
	Log         logx.LoggerOpts

	// Infrastructure
	Redis  pkgredis.Config
	SQLite pkgsqlite.Config

	// Agent
	LLM          model.LLMConfig
	Agent        model.AgentConfig
	Conversation model.ConversationConfig
	Artifacts    model.ArtifactConfig
	Seed         store.SeedConfig

	HTTP httpapi.Config
}

// loadConfig reads the configuration and initialises logging from it.
func loadConfig(envFile string) (*AppConfig, error) {
	cfg, err := configx.New[AppConfig]("", envFile)
	if err != nil {
		return nil, err
	}
	cfg.Log.Environment = core.ParseEnvironment(cfg.Environment)
	logx.Init(cfg.Log)
	return cfg, nil
}
