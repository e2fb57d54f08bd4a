// Package log is the leveled output channel shared by every component.
// Lines look like "2024-05-01T10:00:00Z [INFO] message".
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
)

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

var (
	level atomic.Int64

	mu  sync.Mutex
	out io.Writer = os.Stderr

	tags = map[slog.Level]string{
		LevelDebug: color.New(color.Faint).Sprint("[DEBUG]"),
		LevelInfo:  color.New(color.FgCyan).Sprint("[INFO]"),
		LevelWarn:  color.New(color.FgYellow).Sprint("[WARN]"),
		LevelError: color.New(color.FgRed).Sprint("[ERROR]"),
	}
)

func init() {
	level.Store(int64(LevelInfo))
}

func SetLevel(l slog.Level) {
	level.Store(int64(l))
}

func GetLevel() slog.Level {
	return slog.Level(level.Load())
}

// ParseLevel maps debug/info/warn/error to a level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// SetOutput redirects log lines and returns the previous writer.
func SetOutput(w io.Writer) io.Writer {
	mu.Lock()
	defer mu.Unlock()
	prev := out
	out = w
	return prev
}

func Debug(format string, args ...any) { write(LevelDebug, format, args...) }

func Info(format string, args ...any) { write(LevelInfo, format, args...) }

func Warn(format string, args ...any) { write(LevelWarn, format, args...) }

// Error is always emitted.
func Error(format string, args ...any) { write(LevelError, format, args...) }

func write(l slog.Level, format string, args ...any) {
	if l < LevelError && slog.Level(level.Load()) > l {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if msg == "" {
		return
	}

	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(out, "%s %s %s\n", time.Now().UTC().Format(time.RFC3339), tags[l], msg)
}
