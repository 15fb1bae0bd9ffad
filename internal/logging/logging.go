// Package logging provides structured logging with zap.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration.
type Config struct {
	Level      string `toml:"level"`  // debug, info, warn, error
	Format     string `toml:"format"` // json, console
	OutputPath string `toml:"file"`   // stdout, stderr, or file path
}

// New builds a logger from cfg. An unknown level falls back to info.
func New(cfg Config) (*zap.Logger, error) {
	var config zap.Config
	if cfg.Format == "console" {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
	}

	config.Level = zap.NewAtomicLevelAt(ParseLevel(cfg.Level))

	if cfg.OutputPath != "" {
		config.OutputPaths = []string{cfg.OutputPath}
		config.ErrorOutputPaths = []string{cfg.OutputPath}
	}

	logger, err := config.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return logger, nil
}

// OrNop returns logger, or a no-op logger when it is nil.
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}

	return logger
}

// ParseLevel converts a level name, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	var parsed zapcore.Level
	if err := parsed.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel
	}

	return parsed
}
