// Package logging provides structured logging for the memory engine: a
// log/slog wrapper with one logger per component (retain, recall,
// consolidate, ...) and LogBankOperation/LogBankOperationError helpers for
// the bank-scoped entry points those components expose.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum log level: debug, info, warn, error
	Level string
	// Format is the output format: console, json
	Format string
	// Output is the output destination: stderr, stdout, or a file path
	Output string
}

var (
	defaultLogger *slog.Logger
	loggerMu      sync.RWMutex
)

func init() {
	defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// Init initializes the global logger with the given configuration.
// This should be called once at application startup.
func Init(cfg Config) {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		output = os.Stdout
	case "", "stderr":
		output = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			output = os.Stderr
		} else {
			output = f
		}
	}

	level := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	defaultLogger = slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetLogger returns a logger for the specified component.
// The component name is added as an attribute to all log entries.
func GetLogger(component string) *Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return &Logger{
		slog:      defaultLogger.With("component", component),
		component: component,
	}
}

// Logger wraps slog.Logger with convenience methods.
type Logger struct {
	slog      *slog.Logger
	component string
}

// With returns a new Logger with the given attributes added.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		slog:      l.slog.With(args...),
		component: l.component,
	}
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, args ...any) {
	l.slog.Debug(msg, args...)
}

// Info logs at info level.
func (l *Logger) Info(msg string, args ...any) {
	l.slog.Info(msg, args...)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, args ...any) {
	l.slog.Warn(msg, args...)
}

// Error logs at error level.
func (l *Logger) Error(msg string, args ...any) {
	l.slog.Error(msg, args...)
}

// LogBankOperation logs a completed bank-scoped operation (retain, recall,
// consolidate, ...), tagging every entry with bank_id so log lines for one
// bank can be grepped out of a multi-tenant process.
func (l *Logger) LogBankOperation(bankID, operation string, args ...any) {
	allArgs := append([]any{"bank_id", bankID, "operation", operation}, args...)
	l.slog.Info("bank_operation", allArgs...)
}

// LogBankOperationError is LogBankOperation's failure counterpart.
func (l *Logger) LogBankOperationError(bankID, operation string, err error, args ...any) {
	allArgs := append([]any{"bank_id", bankID, "operation", operation, "error", err.Error()}, args...)
	l.slog.Error("bank_operation_failed", allArgs...)
}
