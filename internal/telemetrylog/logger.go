// Package telemetrylog wires up the structured logger used across the
// advisor process.
package telemetrylog

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel maps a configuration string to a zapcore.Level.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	case "critical", "fatal":
		return zapcore.FatalLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("telemetrylog: unrecognized level %q", s)
	}
}

// option configures the logger at construction.
type option func(*zap.Config)

// WithLevel sets the minimum logged level.
func WithLevel(level zapcore.Level) option {
	return func(cfg *zap.Config) { cfg.Level = zap.NewAtomicLevelAt(level) }
}

// WithDevelopmentEncoding switches to the human-readable console encoder,
// for local runs outside a log-aggregation pipeline.
func WithDevelopmentEncoding() option {
	return func(cfg *zap.Config) {
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
}

// New builds a *zap.SugaredLogger with sane production defaults:
// JSON encoding, ISO8601 timestamps, and caller information.
func New(opts ...option) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	for _, opt := range opts {
		opt(&cfg)
	}

	logger, err := cfg.Build(zap.AddCaller())
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger.Sugar(), nil
}
