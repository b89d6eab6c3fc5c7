// Package logger provides module-scoped, level-filtered logging.
//
// Every record carries the module it was created for, so output from the
// chat route, the migration runner and the websocket hub can be told apart
// and filtered by level at runtime.
package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// LevelNone sits above every real level and silences all output.
const LevelNone = slog.Level(100)

var (
	level = new(slog.LevelVar)

	mu   sync.RWMutex
	base = newHandler(os.Stderr)
)

func newHandler(w io.Writer) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
}

// ParseLevel maps debug, info, warn, error and none to a level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "none", "off":
		return LevelNone, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// Configure sets the process-wide minimum level.
func Configure(levelName string) error {
	lvl, err := ParseLevel(levelName)
	level.Set(lvl)
	return err
}

// SetOutput redirects all loggers, including ones already handed out.
func SetOutput(w io.Writer) {
	mu.Lock()
	base = newHandler(w)
	mu.Unlock()
}

func handler() slog.Handler {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

type Logger struct {
	module string
}

// Get returns the logger for a module, e.g. Get("chat-api").
func Get(module string) *Logger {
	return &Logger{module: module}
}

// Group returns a nested logger whose module is "<parent>.<name>".
func (l *Logger) Group(name string) *Logger {
	return &Logger{module: l.module + "." + name}
}

// End closes a group. Records are not buffered, so there is nothing to flush.
func (l *Logger) End() {}

func (l *Logger) Enabled(lvl slog.Level) bool {
	return lvl >= level.Level()
}

func (l *Logger) log(lvl slog.Level, msg string, args ...any) {
	if !l.Enabled(lvl) {
		return
	}
	slog.New(handler()).With("module", l.module).Log(context.Background(), lvl, msg, args...)
}

func (l *Logger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.log(slog.LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(slog.LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }

// Data logs a large value (request payloads, upstream responses) as indented
// JSON under the "data" key. Values that cannot be marshalled are logged
// with %v.
func (l *Logger) Data(lvl slog.Level, msg string, v any) {
	if !l.Enabled(lvl) {
		return
	}
	var rendered string
	switch val := v.(type) {
	case string:
		rendered = val
	default:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			rendered = fmt.Sprintf("%v", v)
		} else {
			rendered = string(b)
		}
	}
	l.log(lvl, msg, "data", rendered)
}
