// Package log provides named loggers for cartsync components.
//
// Each component (hub, reconcile, agent, ...) gets its own logger via
// ForComponent(name); messages are prefixed with "[name]". Info, Warn and
// Error are always emitted; Debug only when enabled globally or for the
// specific component. Output defaults to stderr and can be redirected with
// SetOutput (used by tests to capture log lines).
package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"
)

// Logger is a named logger. Obtain instances via ForComponent.
type Logger struct {
	name string
	std  *log.Logger
}

// writerHolder keeps atomic.Value happy when the concrete writer type
// changes between stores (os.File in production, bytes.Buffer in tests).
type writerHolder struct {
	w io.Writer
}

var (
	globalDebug    atomic.Bool
	componentDebug sync.Map // map[string]*atomic.Bool
	loggers        sync.Map // map[string]*Logger
	outputWriter   atomic.Value
)

func init() {
	outputWriter.Store(writerHolder{w: os.Stderr})
}

// ForComponent returns (and memoizes) the logger named name. Names should be
// stable, short identifiers such as "hub" or "reconcile".
func ForComponent(name string) *Logger {
	if name == "" {
		name = "unknown"
	}
	if l, ok := loggers.Load(name); ok {
		return l.(*Logger)
	}
	w := outputWriter.Load().(writerHolder).w
	logger := &Logger{
		name: name,
		std:  log.New(w, "", log.LstdFlags|log.Lmicroseconds),
	}
	actual, _ := loggers.LoadOrStore(name, logger)
	return actual.(*Logger)
}

// SetGlobalDebug enables or disables debug logging for every component.
func SetGlobalDebug(enabled bool) {
	globalDebug.Store(enabled)
}

// EnableDebugFor enables debug logging for a single component.
func EnableDebugFor(name string) {
	if name == "" {
		return
	}
	val, _ := componentDebug.LoadOrStore(name, &atomic.Bool{})
	val.(*atomic.Bool).Store(true)
}

// DebugEnabledFor reports whether debug output is active for name, either
// globally or via EnableDebugFor.
func DebugEnabledFor(name string) bool {
	if globalDebug.Load() {
		return true
	}
	if val, ok := componentDebug.Load(name); ok {
		return val.(*atomic.Bool).Load()
	}
	return false
}

// SetOutput redirects all existing and future loggers to w.
func SetOutput(w io.Writer) {
	if w == nil {
		return
	}
	outputWriter.Store(writerHolder{w: w})
	loggers.Range(func(_, v any) bool {
		v.(*Logger).std.SetOutput(w)
		return true
	})
}

const (
	levelInfo  = "INFO"
	levelWarn  = "WARN"
	levelError = "ERROR"
	levelDebug = "DEBUG"
)

func (l *Logger) emit(level, msg string) {
	l.std.Println(level + " [" + l.name + "] " + msg)
}

// Infof logs an informational message with fmt.Sprintf semantics.
func (l *Logger) Infof(format string, args ...any) {
	l.emit(levelInfo, fmt.Sprintf(format, args...))
}

// Warnf logs a warning.
func (l *Logger) Warnf(format string, args ...any) {
	l.emit(levelWarn, fmt.Sprintf(format, args...))
}

// Errorf logs an error.
func (l *Logger) Errorf(format string, args ...any) {
	l.emit(levelError, fmt.Sprintf(format, args...))
}

// Debugf logs a debug message when debug is enabled for this component.
func (l *Logger) Debugf(format string, args ...any) {
	if !DebugEnabledFor(l.name) {
		return
	}
	l.emit(levelDebug, fmt.Sprintf(format, args...))
}
