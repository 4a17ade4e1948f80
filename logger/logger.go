// Package logger is the process log for calc. The history ledger reports
// storage failures through it and the transports report connection
// errors; `calc serve` raises or lowers the level when the config file is
// edited. Output goes to the file named by [log] path, one timestamped
// line per call.
package logger

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level orders messages by severity. LevelNone silences a logger.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelNone
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelNone:  "NONE",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// ErrUnknownLevel is returned by ParseLevel for a name it does not know.
var ErrUnknownLevel = errors.New("unknown log level")

// ParseLevel parses a level name, ignoring case. "warning" and "off" are
// accepted as aliases.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "none", "off":
		return LevelNone, nil
	}
	return LevelInfo, fmt.Errorf("%w %q", ErrUnknownLevel, s)
}

// sink is shared by a logger and every child made with WithPrefix.
type sink struct {
	mu     sync.RWMutex
	level  Level
	out    *log.Logger
	closer io.Closer
}

// Logger writes leveled lines tagged with a component prefix.
type Logger struct {
	sink   *sink
	prefix string
}

var (
	globalMu sync.Mutex
	global   *Logger
)

// Init replaces the global logger with one appending to logPath.
func Init(level Level, logPath string) error {
	l, err := New(level, logPath, "")
	if err != nil {
		return err
	}
	globalMu.Lock()
	old := global
	global = l
	globalMu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

// New creates a logger appending to logPath. With an empty path or
// LevelNone nothing is written and no file is created.
func New(level Level, logPath string, prefix string) (*Logger, error) {
	if level == LevelNone || logPath == "" {
		return NewWriter(LevelNone, io.Discard, prefix), nil
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	l := NewWriter(level, f, prefix)
	l.sink.closer = f
	return l, nil
}

// NewWriter creates a logger writing to w.
func NewWriter(level Level, w io.Writer, prefix string) *Logger {
	return &Logger{
		sink:   &sink{level: level, out: log.New(w, "", 0)},
		prefix: prefix,
	}
}

// Global returns the process logger. Before Init it discards everything.
func Global() *Logger {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		global = NewWriter(LevelNone, io.Discard, "")
	}
	return global
}

// WithPrefix returns a child that shares this logger's output and level.
// Prefixes nest as "parent:child".
func (l *Logger) WithPrefix(prefix string) *Logger {
	if l.prefix != "" {
		prefix = l.prefix + ":" + prefix
	}
	return &Logger{sink: l.sink, prefix: prefix}
}

// SetLevel changes the level for this logger and all its relatives.
func (l *Logger) SetLevel(level Level) {
	l.sink.mu.Lock()
	l.sink.level = level
	l.sink.mu.Unlock()
}

// Level returns the current level.
func (l *Logger) Level() Level {
	l.sink.mu.RLock()
	defer l.sink.mu.RUnlock()
	return l.sink.level
}

func (l *Logger) logf(level Level, format string, args ...interface{}) {
	l.sink.mu.RLock()
	defer l.sink.mu.RUnlock()
	if l.sink.level == LevelNone || level < l.sink.level {
		return
	}
	tag := ""
	if l.prefix != "" {
		tag = "[" + l.prefix + "] "
	}
	l.sink.out.Printf("%s [%s] %s%s",
		time.Now().Format("2006-01-02 15:04:05.000"), level, tag, fmt.Sprintf(format, args...))
}

func (l *Logger) Debug(format string, args ...interface{}) { l.logf(LevelDebug, format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.logf(LevelInfo, format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.logf(LevelWarn, format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.logf(LevelError, format, args...) }

// Close closes the log file, if the logger owns one.
func (l *Logger) Close() error {
	if l.sink.closer == nil {
		return nil
	}
	return l.sink.closer.Close()
}

// Debug logs through the global logger.
func Debug(format string, args ...interface{}) { Global().Debug(format, args...) }

// Info logs through the global logger.
func Info(format string, args ...interface{}) { Global().Info(format, args...) }

// Warn logs through the global logger.
func Warn(format string, args ...interface{}) { Global().Warn(format, args...) }
