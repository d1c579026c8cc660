// Package zaplogger adapts zap to the observability.Logger port. The rest
// of the codebase never imports zap directly.
package zaplogger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mallkit/storefront/internal/observability"
)

type zapAdapter struct{ l *zap.Logger }

// New builds a JSON production logger writing to stdout, with the given
// fields stamped on every entry (service name, environment). ENV=dev lowers
// the level to debug; LOG_FILE mirrors output to a file as well.
func New(fixed ...observability.Field) observability.Logger {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stdout"}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder

	if os.Getenv("ENV") == "dev" {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	if logFile := os.Getenv("LOG_FILE"); logFile != "" {
		if err := ensureLogFile(logFile); err != nil {
			panic(fmt.Errorf("prepare log file: %w", err))
		}
		cfg.OutputPaths = append(cfg.OutputPaths, logFile)
		cfg.ErrorOutputPaths = append(cfg.ErrorOutputPaths, logFile)
	}

	cfg.InitialFields = make(map[string]any, len(fixed))
	for _, f := range fixed {
		cfg.InitialFields[f.Key] = f.Value
	}

	l, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		panic(err)
	}
	return &zapAdapter{l: l}
}

func (z *zapAdapter) With(fields ...observability.Field) observability.Logger {
	if len(fields) == 0 {
		return z
	}
	return &zapAdapter{l: z.l.With(zapFields(fields)...)}
}

func (z *zapAdapter) Debug(msg string, fields ...observability.Field) {
	z.l.Debug(msg, zapFields(fields)...)
}

func (z *zapAdapter) Info(msg string, fields ...observability.Field) {
	z.l.Info(msg, zapFields(fields)...)
}

func (z *zapAdapter) Warn(msg string, fields ...observability.Field) {
	z.l.Warn(msg, zapFields(fields)...)
}

func (z *zapAdapter) Error(msg string, fields ...observability.Field) {
	z.l.Error(msg, zapFields(fields)...)
}

func zapFields(fs []observability.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fs))
	for _, f := range fs {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

func ensureLogFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}
