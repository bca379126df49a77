package config

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger. Every entry carries a "process" field
// so the indexer, reaper and API logs can share one sink.
func NewLogger(cfg LoggingConfig, process string) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	zc := zap.NewDevelopmentConfig()
	zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "ts"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zc.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
		// Run and poll loops log at a steady rate; keep every line.
		zc.Sampling = nil
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.InitialFields = map[string]any{"process": process}

	if cfg.OutputPath != "" && cfg.OutputPath != "stdout" {
		zc.OutputPaths = []string{cfg.OutputPath}
		zc.ErrorOutputPaths = []string{cfg.OutputPath}
	}

	logger, err := zc.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("build %s logger: %w", process, err)
	}
	return logger, nil
}
