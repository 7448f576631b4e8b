// Package logging provides structured logging with zerolog.
// It supports simple text, console and JSON formats, log levels, optional
// file output and automatic masking of sensitive fields.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/thalib/dock/cmd/dock/internal/constants"
)

// simpleWriter is a custom writer that formats logs as: [LEVEL](TIMESTAMP): {MESSAGE}
// Extra fields are appended as key=value pairs.
type simpleWriter struct {
	out io.Writer
}

func (sw *simpleWriter) Write(p []byte) (n int, err error) {
	var logEntry map[string]any
	if err := json.Unmarshal(p, &logEntry); err != nil {
		// If not JSON, just write as-is
		return sw.out.Write(p)
	}

	level, _ := logEntry["level"].(string)
	timestamp, _ := logEntry["time"].(string)
	message, _ := logEntry["message"].(string)

	var b strings.Builder
	fmt.Fprintf(&b, "[%s](%s): %s", strings.ToUpper(level), timestamp, message)
	for _, k := range sortedKeys(logEntry) {
		switch k {
		case "level", "time", "message":
			continue
		}
		fmt.Fprintf(&b, " %s=%v", k, logEntry[k])
	}
	b.WriteByte('\n')

	if _, err := sw.out.Write([]byte(b.String())); err != nil {
		return 0, err
	}
	return len(p), nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Level represents logging levels
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// ParseLevel validates a level name from the command line.
func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToLower(s)); l {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return l, nil
	case "":
		return LevelInfo, nil
	default:
		return "", fmt.Errorf("invalid log level %q (want debug, info, warn or error)", s)
	}
}

// Formats accepted by LoggerConfig.Format.
const (
	FormatSimple  = "simple"
	FormatConsole = "console"
	FormatJSON    = "json"
)

// LoggerConfig holds configuration for the logger
type LoggerConfig struct {
	// Level is the minimum log level (debug, info, warn, error)
	Level Level

	// Format is the output format (simple, console or json)
	Format string

	// Output is the writer for logs (default: os.Stderr)
	Output io.Writer

	// FilePath is the path to the log file (if specified, Output is ignored)
	FilePath string

	// Version is the version of dock
	Version string

	// SensitiveFields are field names that should be masked in logs
	SensitiveFields []string
}

// Logger wraps zerolog for structured logging
type Logger struct {
	logger          zerolog.Logger
	config          LoggerConfig
	sensitiveFields map[string]bool
}

// NewLogger creates a new structured logger
func NewLogger(config LoggerConfig) *Logger {
	output := config.Output
	if output == nil {
		output = os.Stderr
	}

	if config.FilePath != "" {
		dir := filepath.Dir(config.FilePath)
		if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create log directory %s: %v\n", dir, err)
		} else if file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, constants.FilePermissions); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v\n", config.FilePath, err)
		} else {
			output = file
		}
	}

	if config.Level == "" {
		config.Level = LevelInfo
	}

	var zeroLevel zerolog.Level
	switch config.Level {
	case LevelDebug:
		zeroLevel = zerolog.DebugLevel
	case LevelWarn:
		zeroLevel = zerolog.WarnLevel
	case LevelError:
		zeroLevel = zerolog.ErrorLevel
	default:
		zeroLevel = zerolog.InfoLevel
	}

	var w io.Writer
	switch config.Format {
	case FormatJSON:
		w = output
	case FormatConsole:
		w = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	default:
		w = &simpleWriter{out: output}
	}
	logger := zerolog.New(w).Level(zeroLevel).With().Timestamp().Logger()

	if config.Version != "" && config.Format == FormatJSON {
		logger = logger.With().Str("version", config.Version).Logger()
	}

	// Build sensitive fields map (case-insensitive)
	sensitiveFields := make(map[string]bool)
	for _, field := range config.SensitiveFields {
		sensitiveFields[strings.ToLower(field)] = true
	}
	for _, field := range constants.SensitiveFields {
		sensitiveFields[field] = true
	}

	return &Logger{
		logger:          logger,
		config:          config,
		sensitiveFields: sensitiveFields,
	}
}

// Zerolog exposes the underlying logger for packages that take a zerolog.Logger.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.logger
}

// WithField returns a logger with an additional field
func (l *Logger) WithField(key string, value any) *Logger {
	newLogger := *l
	newLogger.logger = l.logger.With().Interface(key, l.maskSensitive(key, value)).Logger()
	return &newLogger
}

// WithFields returns a logger with additional fields
func (l *Logger) WithFields(fields map[string]any) *Logger {
	newLogger := *l
	ctx := l.logger.With()
	for key, value := range fields {
		ctx = ctx.Interface(key, l.maskSensitive(key, value))
	}
	newLogger.logger = ctx.Logger()
	return &newLogger
}

// IsSensitive reports whether values of key are masked.
func (l *Logger) IsSensitive(key string) bool {
	return l.sensitiveFields[strings.ToLower(key)]
}

func (l *Logger) maskSensitive(key string, value any) any {
	if l.IsSensitive(key) {
		return constants.RedactedPlaceholder
	}
	return value
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) {
	l.logger.Debug().Msg(msg)
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...any) {
	l.logger.Debug().Msgf(format, args...)
}

// Info logs an info message
func (l *Logger) Info(msg string) {
	l.logger.Info().Msg(msg)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...any) {
	l.logger.Info().Msgf(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) {
	l.logger.Warn().Msg(msg)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...any) {
	l.logger.Warn().Msgf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string) {
	l.logger.Error().Msg(msg)
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...any) {
	l.logger.Error().Msgf(format, args...)
}

// ErrorWithErr logs an error with the error object
func (l *Logger) ErrorWithErr(msg string, err error) {
	l.logger.Error().Err(err).Msg(msg)
}

// Global logger instance
var globalLogger *Logger

// Init replaces the global logger. The command line calls it once the
// persistent flags are parsed.
func Init(config LoggerConfig) {
	globalLogger = NewLogger(config)
}

// GetLogger returns the global logger
func GetLogger() *Logger {
	if globalLogger == nil {
		globalLogger = NewLogger(LoggerConfig{Level: LevelInfo})
	}
	return globalLogger
}
