// Package observability provides logging, tracing, and metrics functionality.
package observability

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/iruldev/xyprissgo/internal/config"
)

// NewLogger creates a zap logger from the server's log configuration.
// Format falls back to the environment's default (production/staging:
// JSON, otherwise console) when cfg.Format is empty; appEnv selects the
// production/staging starting point before overrides apply.
func NewLogger(cfg *config.LogSection, appEnv string) (*zap.Logger, error) {
	var zapConfig zap.Config
	if appEnv == "production" || appEnv == "staging" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	switch cfg.Format {
	case "json":
		zapConfig.Encoding = "json"
	case "console":
		zapConfig.Encoding = "console"
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	return zapConfig.Build()
}

// NewNopLogger creates a no-op logger for testing.
func NewNopLogger() *zap.Logger {
	return zap.NewNop()
}
