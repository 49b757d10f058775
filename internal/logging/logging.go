// Package logging provides structured logging functionality.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(home, ".config", "fno-signals", "logs", "signals.log"),
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// NewLogger creates a new logger with default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	if cfg.Console {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
			FormatLevel: func(i interface{}) string {
				if ll, ok := i.(string); ok {
					switch ll {
					case "debug":
						return "\033[36mDBG\033[0m"
					case "info":
						return "\033[32mINF\033[0m"
					case "warn":
						return "\033[33mWRN\033[0m"
					case "error":
						return "\033[31mERR\033[0m"
					default:
						return ll
					}
				}
				return "???"
			},
		}
		writers = append(writers, consoleWriter)
	}

	// File writer with rotation
	if cfg.File && cfg.FilePath != "" {
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			})
		}
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = os.Stderr
	case 1:
		writer = writers[0]
	default:
		writer = zerolog.MultiLevelWriter(writers...)
	}

	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	return zerolog.New(writer).
		With().
		Timestamp().
		Caller().
		Logger()
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetDebugLevel sets the global log level to debug.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return logger.WithContext(ctx)
}

// FromContext returns the logger carried by ctx, or fallback when ctx
// carries none.
func FromContext(ctx context.Context, fallback zerolog.Logger) zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return *l
	}
	return fallback
}

// WithSymbol adds a symbol to the logger context.
func WithSymbol(logger zerolog.Logger, symbol string) zerolog.Logger {
	return logger.With().Str("symbol", symbol).Logger()
}

// WithOperation adds an operation name to the logger context.
func WithOperation(logger zerolog.Logger, operation string) zerolog.Logger {
	return logger.With().Str("operation", operation).Logger()
}

// WithDetectorSet adds a detector-set name to the logger context.
func WithDetectorSet(logger zerolog.Logger, set string) zerolog.Logger {
	return logger.With().Str("detector_set", set).Logger()
}

// WithDetector adds a detector set and detector name to the logger context.
func WithDetector(logger zerolog.Logger, set, detector string) zerolog.Logger {
	return logger.With().Str("detector_set", set).Str("detector", detector).Logger()
}

// WithCycle adds a cycle id to the logger context.
func WithCycle(logger zerolog.Logger, cycleID string) zerolog.Logger {
	return logger.With().Str("cycle_id", cycleID).Logger()
}

// LogDecision logs the scoring decision of one cycle.
func LogDecision(logger zerolog.Logger, symbol, priority, alignment string, total, confidence float64, notify bool) {
	logger.Info().
		Str("event", "decision").
		Str("symbol", symbol).
		Str("priority", priority).
		Str("alignment", alignment).
		Float64("total_score", total).
		Float64("confidence_pct", confidence).
		Bool("notify", notify).
		Msg("Cycle scored")
}

// LogSignal logs one recorded signal at debug level.
func LogSignal(logger zerolog.Logger, sentiment, analysisType, summary string) {
	logger.Debug().
		Str("event", "signal").
		Str("sentiment", sentiment).
		Str("type", analysisType).
		Msg(summary)
}

// LogDetectorFailure logs a detector that failed and was isolated.
func LogDetectorFailure(logger zerolog.Logger, set, detector string, err error) {
	logger.Warn().
		Str("event", "detector_failure").
		Str("detector_set", set).
		Str("detector", detector).
		Err(err).
		Msg("Detector failed, treated as no signal")
}
