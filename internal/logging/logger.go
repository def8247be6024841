package logging

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// LogLevel represents the logging level
type LogLevel string

const (
	LevelInfo  LogLevel = "info"
	LevelError LogLevel = "error"
)

// LogFormat represents the output format for logs
type LogFormat string

const (
	FormatJSON LogFormat = "json"
	FormatText LogFormat = "text"
)

// Config holds logging configuration
type Config struct {
	Level  LogLevel  // Minimum log level to output
	Format LogFormat // Output format (json or text)
	Output io.Writer // Output destination (defaults to stderr)
	Quiet  bool      // If true, suppress non-error output
}

// Logger wraps slog.Logger with batch-execution log helpers
type Logger struct {
	logger *slog.Logger
	config Config
}

// NewLogger creates a new logger instance
func NewLogger(config Config) *Logger {
	// Set default output to stderr if not specified
	if config.Output == nil {
		config.Output = os.Stderr
	}

	// Create handler based on format
	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: convertLogLevel(config.Level),
	}

	switch config.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(config.Output, opts)
	case FormatText:
		handler = slog.NewTextHandler(config.Output, opts)
	default:
		// Default to text format
		handler = slog.NewTextHandler(config.Output, opts)
	}

	return &Logger{
		logger: slog.New(handler),
		config: config,
	}
}

// convertLogLevel converts our LogLevel to slog.Level
func convertLogLevel(level LogLevel) slog.Level {
	switch level {
	case LevelError:
		return slog.LevelError
	case LevelInfo:
		return slog.LevelInfo
	default:
		return slog.LevelInfo
	}
}

// Info logs an informational message
func (l *Logger) Info(msg string, args ...any) {
	if l.config.Quiet {
		return // Suppress non-error output in quiet mode
	}
	l.logger.Info(msg, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string, args ...any) {
	l.logger.Error(msg, args...)
}

// IsQuiet returns whether the logger is in quiet mode
func (l *Logger) IsQuiet() bool {
	return l.config.Quiet
}

// LogBinaryValidated logs a successful ssh executable check
func (l *Logger) LogBinaryValidated(path, version string) {
	l.Info("ssh executable validated",
		"path", path,
		"version", version,
	)
}

// LogBatchStart logs the start of a batch
func (l *Logger) LogBatchStart(targetCount, maxProcs int, timeout time.Duration, expectedExit int) {
	l.Info("batch started",
		"target_count", targetCount,
		"max_procs", maxProcs,
		"timeout", timeout.String(),
		"expected_exit", expectedExit,
	)
}

// LogBatchComplete logs the completion of a batch
func (l *Logger) LogBatchComplete(targetCount, successCount, failureCount int, duration time.Duration) {
	l.Info("batch completed",
		"target_count", targetCount,
		"success_count", successCount,
		"failure_count", failureCount,
		"total_duration_ms", duration.Milliseconds(),
	)
}

// LogLaunch logs a target entering the run set
func (l *Logger) LogLaunch(host string, runSetSize, queued int) {
	l.Info("target launched",
		"host", host,
		"run_set", runSetSize,
		"queued", queued,
	)
}

// LogLaunchError logs a target whose process could not be spawned
func (l *Logger) LogLaunchError(host string, err error) {
	l.Error("target launch failed",
		"host", host,
		"error", err.Error(),
	)
}

// LogExit logs a target whose process has exited
func (l *Logger) LogExit(host string, exitCode int, expected bool, duration time.Duration) {
	l.Info("target finished",
		"host", host,
		"exit_code", exitCode,
		"expected", expected,
		"duration_ms", duration.Milliseconds(),
		// Note: Never log captured output, it may contain sensitive data
	)
}

// LogTimeout logs a target killed for exceeding the deadline
func (l *Logger) LogTimeout(host string, timeout time.Duration) {
	l.Info("target timed out",
		"host", host,
		"timeout", timeout.String(),
	)
}

// LogConfigLoad logs configuration loading events
func (l *Logger) LogConfigLoad(source string) {
	l.Info("configuration loaded",
		"source", source,
	)
}

// LogConfigError logs configuration errors
func (l *Logger) LogConfigError(source string, err error) {
	l.Error("configuration error",
		"source", source,
		"error", err.Error(),
	)
}

// LogTargetParsing logs target parsing information
func (l *Logger) LogTargetParsing(source string, count int) {
	l.Info("targets parsed",
		"source", source,
		"count", count,
	)
}

// LogTargetParsingError logs target parsing errors
func (l *Logger) LogTargetParsingError(source string, err error) {
	l.Error("target parsing failed",
		"source", source,
		"error", err.Error(),
	)
}

// NewLoggerFromConfig creates a logger from application configuration
func NewLoggerFromConfig(logLevel, logFormat string, quiet bool) *Logger {
	var level LogLevel
	switch logLevel {
	case "error":
		level = LevelError
	case "info":
		level = LevelInfo
	default:
		level = LevelInfo // Default to info level
	}

	var format LogFormat
	switch logFormat {
	case "json":
		format = FormatJSON
	case "text":
		format = FormatText
	default:
		format = FormatText // Default to text format
	}

	config := Config{
		Level:  level,
		Format: format,
		Quiet:  quiet,
	}

	return NewLogger(config)
}
