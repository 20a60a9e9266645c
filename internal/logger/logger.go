package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogFormat represents the format of the log output.
type LogFormat string

const (
	// LogFormatJSON represents the JSON log format.
	LogFormatJSON LogFormat = "json"

	// LogFormatText represents the human readable console format.
	LogFormatText LogFormat = "text"
)

type logger struct {
	level     zap.AtomicLevel
	format    LogFormat
	addSource bool
	outputs   []string
}

// NewLogger creates a new logger.
func NewLogger(opts ...Option) (*zap.Logger, error) {
	logg := &logger{
		level:   zap.NewAtomicLevelAt(zapcore.InfoLevel), // Default log level is INFO.
		format:  LogFormatJSON,
		outputs: []string{"stdout"},
	}

	// Apply options
	for _, opt := range opts {
		opt(logg)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = logg.level
	cfg.OutputPaths = logg.outputs
	cfg.DisableCaller = !logg.addSource
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if logg.format == LogFormatText {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	zlog, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("cfg.Build: %w", err)
	}

	return zlog, nil
}

type Option func(l *logger)

func WithLevel(level zapcore.Level) Option {
	return func(l *logger) {
		l.level.SetLevel(level)
	}
}

func WithFormat(format LogFormat) Option {
	return func(l *logger) {
		l.format = format
	}
}

func WithAddSource(addSource bool) Option {
	return func(l *logger) {
		l.addSource = addSource
	}
}

// WithOutputPaths overrides the default stdout sink.
func WithOutputPaths(paths ...string) Option {
	return func(l *logger) {
		l.outputs = paths
	}
}

func ParseLogLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("unknown log level: %s", level)
	}
}

func ParseLogFormat(format string) (LogFormat, error) {
	switch LogFormat(strings.ToLower(format)) {
	case LogFormatJSON:
		return LogFormatJSON, nil
	case LogFormatText:
		return LogFormatText, nil
	default:
		return "", fmt.Errorf("unknown log format: %s", format)
	}
}
