package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Log levels accepted in configuration
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// LogFileName is the name of the log file created inside a log directory.
const LogFileName = "wormhole.log"

var slogLevels = map[string]slog.Level{
	LevelDebug: slog.LevelDebug,
	LevelInfo:  slog.LevelInfo,
	LevelWarn:  slog.LevelWarn,
	LevelError: slog.LevelError,
}

// logFile is the file behind a Logger and all of its children.
type logFile struct {
	mu sync.Mutex
	f  *os.File
}

func (lf *logFile) close() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if lf.f == nil {
		return nil
	}
	if err := lf.f.Sync(); err != nil {
		return fmt.Errorf("failed to sync log file: %w", err)
	}
	err := lf.f.Close()
	lf.f = nil
	if err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	return nil
}

// Logger writes JSON log lines tagged with the transport, identifier and
// session role they concern. It is safe for concurrent use.
type Logger struct {
	logger *slog.Logger
	sink   *logFile // nil unless the logger owns a file
}

// NewLogger creates a Logger that appends to {logDir}/wormhole.log. With an
// empty logDir it writes to stderr instead.
//
// Messages below level are dropped; unknown levels mean INFO.
func NewLogger(logDir string, level string) (*Logger, error) {
	if logDir == "" {
		return NewWriterLogger(os.Stderr, level), nil
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(logDir, LogFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := NewWriterLogger(f, level)
	l.sink = &logFile{f: f}
	return l, nil
}

// NewWriterLogger creates a Logger that writes to w. Close leaves w open.
func NewWriterLogger(w io.Writer, level string) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slogLevels[ParseLevel(level)]})
	return &Logger{logger: slog.New(handler)}
}

// NopLogger returns a Logger that discards everything.
func NopLogger() *Logger {
	return &Logger{logger: slog.New(slog.DiscardHandler)}
}

// OrNop returns l, or a discarding Logger when l is nil.
func OrNop(l *Logger) *Logger {
	if l == nil {
		return NopLogger()
	}
	return l
}

// WithTransport tags the child logger with a transport kind.
func (l *Logger) WithTransport(kind string) *Logger {
	return l.with(slog.String("transport", kind))
}

// WithIdentifier tags the child logger with a message identifier.
func (l *Logger) WithIdentifier(identifier string) *Logger {
	return l.with(slog.String("identifier", identifier))
}

// WithRole tags the child logger with this process's session role, such as
// "host" or "watch".
func (l *Logger) WithRole(role string) *Logger {
	return l.with(slog.String("role", role))
}

// With returns a child logger carrying alternating key-value pairs. Pairs
// whose key is not a string are skipped.
func (l *Logger) With(args ...any) *Logger {
	if len(args) == 0 {
		return l
	}
	attrs := make([]any, 0, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		if key, ok := args[i].(string); ok {
			attrs = append(attrs, slog.Any(key, args[i+1]))
		}
	}
	return l.with(attrs...)
}

func (l *Logger) with(attrs ...any) *Logger {
	return &Logger{logger: l.logger.With(attrs...), sink: l.sink}
}

// Debug logs at DEBUG level.
func (l *Logger) Debug(msg string, args ...any) {
	l.logger.Log(context.Background(), slog.LevelDebug, msg, args...)
}

// Info logs at INFO level.
func (l *Logger) Info(msg string, args ...any) {
	l.logger.Log(context.Background(), slog.LevelInfo, msg, args...)
}

// Warn logs at WARN level.
func (l *Logger) Warn(msg string, args ...any) {
	l.logger.Log(context.Background(), slog.LevelWarn, msg, args...)
}

// Error logs at ERROR level.
func (l *Logger) Error(msg string, args ...any) {
	l.logger.Log(context.Background(), slog.LevelError, msg, args...)
}

// Close flushes and closes the log file shared with every child logger.
// It is a no-op for loggers that do not own a file, and after the first call.
func (l *Logger) Close() error {
	if l.sink == nil {
		return nil
	}
	return l.sink.close()
}

// ParseLevel normalizes a configured level to one of the Level constants,
// falling back to LevelInfo.
func ParseLevel(level string) string {
	up := strings.ToUpper(strings.TrimSpace(level))
	if _, ok := slogLevels[up]; ok {
		return up
	}
	return LevelInfo
}

// ValidLevels returns the accepted level names.
func ValidLevels() []string {
	return []string{LevelDebug, LevelInfo, LevelWarn, LevelError}
}
