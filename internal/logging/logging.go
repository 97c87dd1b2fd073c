// Package logging builds the zap logger shared by the agent, scheduler,
// and MCP server. Log output goes to stderr so it never corrupts the
// MCP stdio transport.
package logging

import (
	"strings"

	"go.uber.org/zap"
)

// New returns a sugared zap logger for the given mode ("prod" or "dev").
func New(mode string) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// Nop returns a no-op logger for tests.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
