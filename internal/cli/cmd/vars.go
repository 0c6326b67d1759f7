package cmd

import (
	"github.com/berrythewa/rfs/internal/config"
	"go.uber.org/zap"
)

// Shared state, set by the root command before any subcommand runs.
var (
	cfg       *config.Config
	zapLogger *zap.Logger
)

// SetConfig sets the configuration for commands
func SetConfig(c *config.Config) {
	cfg = c
}

func GetConfig() *config.Config {
	return cfg
}

// SetZapLogger sets the logger for commands
func SetZapLogger(log *zap.Logger) {
	zapLogger = log
}

// GetZapLogger returns the shared logger, or a no-op logger before setup.
func GetZapLogger() *zap.Logger {
	if zapLogger == nil {
		return zap.NewNop()
	}
	return zapLogger
}
