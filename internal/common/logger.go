package common

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/berrythewa/rfs/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the daemon logger. When cfg.File is set, records are
// appended to that file; otherwise they go to stderr. The returned closer
// releases the file and must be called after the last log line.
func NewLogger(cfg config.LogConfig) (*zap.Logger, io.Closer, error) {
	level := parseLevel(cfg.Level)

	var (
		sink   zapcore.WriteSyncer
		closer io.Closer = nopCloser{}
	)
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		sink = zapcore.AddSync(f)
		closer = f
	} else {
		sink = zapcore.Lock(os.Stderr)
	}

	return zap.New(newCore(cfg.Format, sink, level)), closer, nil
}

// NewWriterLogger logs to w. Used by tests and foreground runs that want
// output on a specific stream.
func NewWriterLogger(cfg config.LogConfig, w io.Writer) *zap.Logger {
	return zap.New(newCore(cfg.Format, zapcore.AddSync(w), parseLevel(cfg.Level)))
}

// NewCLILogger creates the client-side logger: development output when
// verbose, warnings only when quiet.
func NewCLILogger(verbose, quiet bool) (*zap.Logger, error) {
	var cfg zap.Config
	switch {
	case verbose:
		cfg = zap.NewDevelopmentConfig()
	case quiet:
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
		cfg.Encoding = "console"
	default:
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		cfg.Encoding = "console"
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

func newCore(format string, sink zapcore.WriteSyncer, level zapcore.Level) zapcore.Core {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}
	return zapcore.NewCore(encoder, sink, level)
}

func parseLevel(s string) zapcore.Level {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return zapcore.InfoLevel
	}
	return level
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
