package common

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// Severity represents log message severity levels
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "DEBUG"
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (s Severity) level() slog.Level {
	switch s {
	case SeverityDebug:
		return slog.LevelDebug
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// ParseSeverity maps a command line level name to a Severity.
func ParseSeverity(name string) (Severity, error) {
	switch strings.ToUpper(name) {
	case "DEBUG":
		return SeverityDebug, nil
	case "INFO":
		return SeverityInfo, nil
	case "WARN", "WARNING":
		return SeverityWarning, nil
	case "ERROR":
		return SeverityError, nil
	default:
		return SeverityError, fmt.Errorf("invalid log level: %s", name)
	}
}

// Logger interface defines the logging contract for the decoder
type Logger interface {
	// Log logs a message with the specified severity
	Log(severity Severity, msg string)

	// Logf logs a formatted message with the specified severity
	Logf(severity Severity, format string, args ...any)

	// Error logs an error
	Error(err error)

	// Debug logs a debug message
	Debug(msg string)

	// Info logs an info message
	Info(msg string)

	// Warning logs a warning message
	Warning(msg string)
}

// SlogLogger implements the Logger interface on log/slog. Records are fanned
// out to a text handler on the given writer plus any extra handlers.
type SlogLogger struct {
	logger   *slog.Logger
	minLevel Severity
}

// NewSlogLogger creates a logger writing text records to w.
func NewSlogLogger(w io.Writer, minLevel Severity, extra ...slog.Handler) *SlogLogger {
	if w == nil {
		w = os.Stderr
	}
	handlers := []slog.Handler{
		slog.NewTextHandler(w, &slog.HandlerOptions{Level: minLevel.level()}),
	}
	handlers = append(handlers, extra...)
	return &SlogLogger{
		logger:   slog.New(slogmulti.Fanout(handlers...)),
		minLevel: minLevel,
	}
}

// NewJSONHandler returns a handler suitable for a machine readable log file.
func NewJSONHandler(w io.Writer, minLevel Severity) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: minLevel.level()})
}

// Slog exposes the underlying structured logger.
func (l *SlogLogger) Slog() *slog.Logger {
	return l.logger
}

// Log logs a message with the specified severity
func (l *SlogLogger) Log(severity Severity, msg string) {
	if severity < l.minLevel {
		return
	}
	l.logger.Log(context.Background(), severity.level(), msg)
}

// Logf logs a formatted message with the specified severity
func (l *SlogLogger) Logf(severity Severity, format string, args ...any) {
	if severity < l.minLevel {
		return
	}
	l.Log(severity, fmt.Sprintf(format, args...))
}

// Error logs an error
func (l *SlogLogger) Error(err error) {
	if err != nil {
		l.Log(SeverityError, err.Error())
	}
}

// Debug logs a debug message
func (l *SlogLogger) Debug(msg string) {
	l.Log(SeverityDebug, msg)
}

// Info logs an info message
func (l *SlogLogger) Info(msg string) {
	l.Log(SeverityInfo, msg)
}

// Warning logs a warning message
func (l *SlogLogger) Warning(msg string) {
	l.Log(SeverityWarning, msg)
}

// NoOpLogger is a logger that doesn't log anything
type NoOpLogger struct{}

// NewNoOpLogger creates a new no-op logger
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (l *NoOpLogger) Log(severity Severity, msg string)                 {}
func (l *NoOpLogger) Logf(severity Severity, format string, args ...any) {}
func (l *NoOpLogger) Error(err error)                                    {}
func (l *NoOpLogger) Debug(msg string)                                   {}
func (l *NoOpLogger) Info(msg string)                                    {}
func (l *NoOpLogger) Warning(msg string)                                 {}
