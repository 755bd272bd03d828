package ui

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns the diagnostic logger. Diagnostics are off unless
// verbose is set, in which case a development logger writes to stderr.
func NewLogger(verbose bool) (*zap.SugaredLogger, error) {
	if !verbose {
		return zap.NewNop().Sugar(), nil
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.DisableStacktrace = true
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
