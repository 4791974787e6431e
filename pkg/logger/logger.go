package logx

import (
	"os"
	"strings"

	"github.com/Chative-analytics/server/internal/core"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var DefaultLoggerOpts = &LoggerOpts{
	Environment: core.Development,
}

type LoggerOpts struct {
	Environment core.Environment
	// Level overrides the environment default (debug, info, warn, error).
	Level string `envconfig:"LOG_LEVEL"`
	// Pretty forces the console writer even in production.
	Pretty bool `envconfig:"LOG_PRETTY" default:"false"`
}

func safe(opts ...LoggerOpts) *LoggerOpts {
	if len(opts) == 0 {
		return DefaultLoggerOpts
	}
	return &opts[0]
}

func Init(opts ...LoggerOpts) {
	o := safe(opts...)

	level := zerolog.DebugLevel
	if o.Environment.IsProduction() {
		level = zerolog.InfoLevel
	}
	if lv, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(o.Level))); err == nil && o.Level != "" {
		level = lv
	}

	if o.Environment.IsProduction() && !o.Pretty {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Caller().Logger()
	}
	log.Logger = log.Logger.Level(level)
}

func Debug() *zerolog.Event {
	return log.Debug()
}

func Info() *zerolog.Event {
	return log.Info()
}

func Warn() *zerolog.Event {
	return log.Warn()
}

func Error() *zerolog.Event {
	return log.Error()
}

func Panic() *zerolog.Event {
	return log.Panic()
}

func Fatal() *zerolog.Event {
	return log.Fatal()
}
