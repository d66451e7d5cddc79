// Package logger provides leveled logging for the CLI and services.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Level represents a logging level.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Logger writes leveled messages to a single destination.
type Logger struct {
	level Level
	out   *log.Logger
}

// New creates a logger writing to w. The "text" format adds caller
// file:line to each entry.
func New(w io.Writer, level Level, format string) *Logger {
	flags := log.LstdFlags | log.Lmicroseconds
	if strings.ToLower(format) == "text" {
		flags |= log.Lshortfile
	}
	return &Logger{level: level, out: log.New(w, "", flags)}
}

func (l *Logger) logf(min Level, tag, format string, args ...any) {
	if l == nil || l.level > min {
		return
	}
	// 3 skips logf and the exported wrapper, pointing at the call site.
	_ = l.out.Output(3, fmt.Sprintf(tag+" "+format, args...))
}

func (l *Logger) Debug(format string, args ...any) { l.logf(DebugLevel, "[DEBUG]", format, args...) }
func (l *Logger) Info(format string, args ...any)  { l.logf(InfoLevel, "[INFO]", format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.logf(WarnLevel, "[WARN]", format, args...) }
func (l *Logger) Error(format string, args ...any) { l.logf(ErrorLevel, "[ERROR]", format, args...) }

var defaultLogger *Logger

// Init installs the process-wide default logger used by the
// package-level helpers. Before Init, the helpers are no-ops.
func Init(level string, format string) {
	defaultLogger = New(os.Stderr, ParseLevel(level), format)
}

func Debug(format string, args ...any) {
	defaultLogger.logf(DebugLevel, "[DEBUG]", format, args...)
}

func Info(format string, args ...any) {
	defaultLogger.logf(InfoLevel, "[INFO]", format, args...)
}

func Warn(format string, args ...any) {
	defaultLogger.logf(WarnLevel, "[WARN]", format, args...)
}

func Error(format string, args ...any) {
	defaultLogger.logf(ErrorLevel, "[ERROR]", format, args...)
}

// Fatal logs at error level and exits.
func Fatal(format string, args ...any) {
	defaultLogger.logf(ErrorLevel, "[FATAL]", format, args...)
	os.Exit(1)
}
