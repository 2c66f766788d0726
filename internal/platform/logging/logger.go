// Package logging builds the process-wide structured logger, following the
// same shape as the pitchfork-style reference service's pkg/utilities
// logger: a small Config read from environment, and an Init/New that
// produces a *zap.Logger configured for either development (console,
// colorized) or production (JSON, ISO8601 timestamps) output.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls logger construction.
type Config struct {
	Level string // debug, info, warn, error
	Dev   bool
}

func levelFromString(l string) zapcore.Level {
	switch l {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New builds a *zap.Logger per cfg. Callers are responsible for calling
// Sync() before process exit.
func New(cfg Config) (*zap.Logger, error) {
	lvl := levelFromString(cfg.Level)

	if cfg.Dev {
		devCfg := zap.NewDevelopmentConfig()
		devCfg.Level = zap.NewAtomicLevelAt(lvl)
		return devCfg.Build()
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(os.Stdout), lvl)
	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	return zap.New(core, opts...), nil
}

// NewNop returns a logger that discards everything, for tests that don't
// want log noise but still need a *zap.Logger to satisfy a constructor.
func NewNop() *zap.Logger {
	return zap.NewNop()
}
