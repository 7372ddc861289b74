// Package logging builds the process-wide zap logger and threads
// request-scoped children through context. Entries are JSON with Cloud
// Logging severity names, so log routers pick up levels without parsing.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls the process logger.
type Config struct {
	// Component tags every entry with the emitting binary ("api-server", "cli").
	Component string
	// Level is the minimum severity; empty means info.
	Level string
}

// NewLogger returns a JSON logger writing to stdout.
func NewLogger(cfg Config) (*zap.Logger, error) {
	minLevel := zapcore.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return nil, err
		}
		minLevel = parsed
	}

	enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		MessageKey:     "message",
		LevelKey:       "severity",
		TimeKey:        "timestamp",
		NameKey:        "logger",
		CallerKey:      "caller",
		StacktraceKey:  "stacktrace",
		EncodeLevel:    severityEncoder,
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	})

	logger := zap.New(
		zapcore.NewCore(enc, zapcore.Lock(os.Stdout), minLevel),
		zap.AddCaller(),
	)
	if cfg.Component != "" {
		logger = logger.With(zap.String("component", cfg.Component))
	}
	return logger, nil
}

var severityNames = map[zapcore.Level]string{
	zapcore.DebugLevel:  "DEBUG",
	zapcore.InfoLevel:   "INFO",
	zapcore.WarnLevel:   "WARNING",
	zapcore.ErrorLevel:  "ERROR",
	zapcore.DPanicLevel: "ALERT",
	zapcore.PanicLevel:  "ALERT",
	zapcore.FatalLevel:  "CRITICAL",
}

func severityEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if name, ok := severityNames[l]; ok {
		enc.AppendString(name)
		return
	}
	enc.AppendString(strings.ToUpper(l.String()))
}
