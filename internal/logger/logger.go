package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Log is the process-wide logger. Nil until Init, and the helpers below
// drop messages until then so packages can log from tests without setup.
var Log *slog.Logger

// level backs every handler created here, so SetLevel applies immediately
var level slog.LevelVar

// Init points the logger at stdout.
func Init(levelStr string) {
	InitWriter(levelStr, os.Stdout)
}

// InitWriter points the logger at w. The terminal replay logs to stderr
// so the alternate screen stays clean.
func InitWriter(levelStr string, w io.Writer) {
	SetLevel(levelStr)
	Log = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: &level}))
}

// SetLevel changes the level at runtime. Unknown names mean info.
func SetLevel(levelStr string) {
	level.Set(ParseLevel(levelStr))
}

// ParseLevel maps debug, info, warn(ing) or error to a slog.Level.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// ValidLevel reports whether name is one ParseLevel recognizes.
func ValidLevel(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

// Level returns the current level name in lower case.
func Level() string {
	return strings.ToLower(level.Level().String())
}

func Debug(msg string, args ...any) { emit(slog.LevelDebug, msg, args) }
func Info(msg string, args ...any)  { emit(slog.LevelInfo, msg, args) }
func Warn(msg string, args ...any)  { emit(slog.LevelWarn, msg, args) }
func Error(msg string, args ...any) { emit(slog.LevelError, msg, args) }

func emit(lvl slog.Level, msg string, args []any) {
	if Log == nil {
		return
	}
	switch lvl {
	case slog.LevelDebug:
		Log.Debug(msg, args...)
	case slog.LevelWarn:
		Log.Warn(msg, args...)
	case slog.LevelError:
		Log.Error(msg, args...)
	default:
		Log.Info(msg, args...)
	}
}
