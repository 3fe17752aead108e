package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls how the zap-backed logger is built.
type Config struct {
	// Level is the minimum level to emit: "debug", "info", "warn" or
	// "error". Empty keeps the preset default (info in production,
	// debug in development).
	Level string

	// Development switches to the human-readable console encoder with
	// debug defaults, the way local runs want it. Production uses the
	// JSON encoder.
	Development bool
}

// ZapLogger wraps a *zap.Logger behind the Logger interface.
type ZapLogger struct {
	logger *zap.Logger
}

var _ Logger = (*ZapLogger)(nil)

// NewZap builds a zap-backed Logger from cfg.
func NewZap(cfg Config) (*ZapLogger, error) {
	var zc zap.Config
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}

	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}

	logger, err := zc.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	return &ZapLogger{logger: logger}, nil
}

func (z *ZapLogger) Debug(msg string, fields ...Field) {
	z.logger.Debug(msg, zapFields(fields)...)
}

func (z *ZapLogger) Info(msg string, fields ...Field) {
	z.logger.Info(msg, zapFields(fields)...)
}

func (z *ZapLogger) Warn(msg string, fields ...Field) {
	z.logger.Warn(msg, zapFields(fields)...)
}

func (z *ZapLogger) Error(msg string, fields ...Field) {
	z.logger.Error(msg, zapFields(fields)...)
}

func (z *ZapLogger) With(fields ...Field) Logger {
	return &ZapLogger{logger: z.logger.With(zapFields(fields)...)}
}

// Sync flushes buffered entries. Call before process exit.
func (z *ZapLogger) Sync() error {
	return z.logger.Sync()
}

func zapFields(fields []Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	zs := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		zs = append(zs, zap.Any(f.Key, f.Value))
	}
	return zs
}
