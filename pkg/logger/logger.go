// Package logger provides structured logging for all FloatChat components.
// Every call site names its component so host UIs can filter noise.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu  sync.RWMutex
	log = newLogger(os.Stderr)
)

func newLogger(w io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	if lvl := os.Getenv("FLOATCHAT_LOG_LEVEL"); lvl != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(lvl)); err == nil {
			level = parsed
		}
	}
	out := io.Writer(zerolog.ConsoleWriter{Out: w})
	if path := os.Getenv("FLOATCHAT_LOG_FILE"); path != "" {
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
			out = f
		}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// SetOutput redirects all subsequent log lines. The TUI host calls this to
// keep log output off the terminal it is drawing on.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	log = newLogger(w)
}

// Silence discards all log output. Used by the TUI when no log file is set.
func Silence() {
	SetOutput(io.Discard)
}

func emit(ev *zerolog.Event, component, msg string, fields map[string]interface{}) {
	ev = ev.Str("component", component)
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

// Debug logs a debug-level message for the given component.
func Debug(component, msg string, fields map[string]interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	emit(log.Debug(), component, msg, fields)
}

// Info logs an info-level message for the given component.
func Info(component, msg string, fields map[string]interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	emit(log.Info(), component, msg, fields)
}

// Warn logs a warning for the given component.
func Warn(component, msg string, fields map[string]interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	emit(log.Warn(), component, msg, fields)
}

// Error logs an error for the given component.
func Error(component, msg string, fields map[string]interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	emit(log.Error(), component, msg, fields)
}
