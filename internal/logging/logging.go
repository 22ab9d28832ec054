// Package logging provides structured logging functionality.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days

	// Secrets are masked wherever they appear in a log record.
	Secrets []string
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(home, ".config", "market-minds", "logs", "marketminds.log"),
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// NewLoggerWithConfig builds the process logger. Console output goes to
// stderr so answers printed on stdout stay clean; the file copy is rotated by
// lumberjack. Both copies pass through a RedactWriter.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, NewRedactWriter(consoleWriter(os.Stderr), cfg.Secrets...))
	}
	if cfg.File {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err == nil {
			writers = append(writers, NewRedactWriter(&lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			}, cfg.Secrets...))
		}
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = io.Discard
	case 1:
		writer = writers[0]
	default:
		writer = zerolog.MultiLevelWriter(writers...)
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	return zerolog.New(writer).With().Timestamp().Caller().Logger()
}

var levelLabels = map[string]string{
	"debug": "\033[36mDBG\033[0m",
	"info":  "\033[32mINF\033[0m",
	"warn":  "\033[33mWRN\033[0m",
	"error": "\033[31mERR\033[0m",
}

func consoleWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.Kitchen,
		FormatLevel: func(i interface{}) string {
			ll, ok := i.(string)
			if !ok {
				return "???"
			}
			if label, ok := levelLabels[ll]; ok {
				return label
			}
			return ll
		},
	}
}

func parseLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || l == zerolog.NoLevel || l < zerolog.DebugLevel || l > zerolog.ErrorLevel {
		return zerolog.InfoLevel
	}
	return l
}

// SetDebugLevel lowers the global level to debug.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// ContextKey is the type for context keys.
type ContextKey string

// LoggerKey is the context key for the logger.
const LoggerKey ContextKey = "logger"

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

// WithSession adds a session ID to the logger context.
func WithSession(logger zerolog.Logger, sessionID string) zerolog.Logger {
	return logger.With().Str("session_id", sessionID).Logger()
}

// WithNode adds a workflow node name to the logger context.
func WithNode(logger zerolog.Logger, node string) zerolog.Logger {
	return logger.With().Str("node", node).Logger()
}

// WithTool adds a tool name to the logger context.
func WithTool(logger zerolog.Logger, tool string) zerolog.Logger {
	return logger.With().Str("tool", tool).Logger()
}

// WithOperation adds an operation name to the logger context.
func WithOperation(logger zerolog.Logger, operation string) zerolog.Logger {
	return logger.With().Str("operation", operation).Logger()
}

// LogToolCall logs a tool execution.
func LogToolCall(logger zerolog.Logger, tool string, args []byte, duration time.Duration, err error) {
	event := logger.Debug().
		Str("event", "tool_call").
		Str("tool", tool).
		Bytes("args", args).
		Dur("duration", duration)

	if err != nil {
		event.Err(err).Msg("Tool call failed")
	} else {
		event.Msg("Tool call completed")
	}
}

// LogModelCall logs a request to a language model backend.
func LogModelCall(logger zerolog.Logger, provider, model string, messages int, duration time.Duration, err error) {
	event := logger.Debug().
		Str("event", "model_call").
		Str("provider", provider).
		Str("model", model).
		Int("messages", messages).
		Dur("duration", duration)

	if err != nil {
		event.Err(err).Msg("Model call failed")
	} else {
		event.Msg("Model call completed")
	}
}

// LogTurn logs the completion of a conversation turn.
func LogTurn(logger zerolog.Logger, sessionID string, steps, hops, messages int, summarized bool) {
	logger.Info().
		Str("event", "turn").
		Str("session_id", sessionID).
		Int("steps", steps).
		Int("tool_hops", hops).
		Int("messages", messages).
		Bool("summarized", summarized).
		Msg("Turn completed")
}

// LogAPICall logs an API call.
func LogAPICall(logger zerolog.Logger, method, endpoint string, duration time.Duration, err error) {
	event := logger.Debug().
		Str("event", "api_call").
		Str("method", method).
		Str("endpoint", endpoint).
		Dur("duration", duration)

	if err != nil {
		event.Err(err).Msg("API call failed")
	} else {
		event.Msg("API call completed")
	}
}
