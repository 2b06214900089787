// Package logger is a thin module-aware wrapper around logrus.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

const (
	FormatJSON = "json"
	FormatText = "text"
)

var (
	std     = logrus.New()
	mu      sync.Mutex
	logFile *os.File
)

func init() {
	std.SetOutput(os.Stderr)
	std.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	std.SetLevel(logrus.InfoLevel)
}

// InitLog tees log output into the file at path. An empty path keeps stderr only.
func InitLog(path string) error {
	if path == "" {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = f
	std.SetOutput(io.MultiWriter(os.Stderr, f))
	return nil
}

// FlushLog syncs and closes the log file opened by InitLog.
func FlushLog() {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return
	}
	_ = logFile.Sync()
	_ = logFile.Close()
	logFile = nil
	std.SetOutput(os.Stderr)
}

// SetFormat switches between json and text output.
func SetFormat(format string) {
	switch format {
	case FormatText:
		std.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		std.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	}
}

// SetLevel parses level and applies it. Unknown levels fall back to info.
func SetLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	std.SetLevel(lvl)
}

// SetOutput replaces the destination writer.
func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

// WithFields returns an entry carrying structured fields.
func WithFields(fields map[string]any) *logrus.Entry {
	return std.WithFields(fields)
}

func Debug(format string, args ...any) { std.Debugf(format, args...) }
func Info(format string, args ...any)  { std.Infof(format, args...) }
func Warn(format string, args ...any)  { std.Warnf(format, args...) }
func Error(format string, args ...any) { std.Errorf(format, args...) }

func module(name string) *logrus.Entry {
	return std.WithField("module", name)
}

func DebugX(name, format string, args ...any) { module(name).Debugf(format, args...) }
func InfoX(name, format string, args ...any)  { module(name).Infof(format, args...) }
func WarnX(name, format string, args ...any)  { module(name).Warnf(format, args...) }
func ErrorX(name, format string, args ...any) { module(name).Errorf(format, args...) }

// Redact keeps a short prefix of a secret for correlation in logs.
func Redact(secret string) string {
	if len(secret) <= 6 {
		return "***"
	}
	return secret[:6] + "***"
}
