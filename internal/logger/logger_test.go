package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWriter("info", &buf)

	// Debug should NOT appear at info level
	Debug("hidden")
	if buf.Len() > 0 {
		t.Error("debug message should not appear at info level")
	}

	// Switch to debug level at runtime
	SetLevel("debug")

	buf.Reset()
	Debug("visible")
	if buf.Len() == 0 {
		t.Error("debug message should appear after SetLevel(debug)")
	}

	// Switch back to error level
	SetLevel("error")

	buf.Reset()
	Info("hidden again")
	if buf.Len() > 0 {
		t.Error("info message should not appear at error level")
	}
	if Level() != "error" {
		t.Errorf("Level() = %s, expected error", Level())
	}
}

func TestSetLevelInvalidFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	InitWriter("debug", &buf)
	SetLevel("garbage")

	buf.Reset()
	Debug("should be hidden")
	if buf.Len() > 0 {
		t.Error("invalid level should fall back to info, hiding debug")
	}

	buf.Reset()
	Info("should be visible", "job_id", "abc")
	if buf.Len() == 0 {
		t.Error("info should be visible at info level")
	}
	if !strings.Contains(buf.String(), "job_id=abc") {
		t.Errorf("expected key/value attributes, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		" error ": slog.LevelError,
		"":        slog.LevelInfo,
	}
	for in, expected := range tests {
		if got := ParseLevel(in); got != expected {
			t.Errorf("ParseLevel(%q) = %v, expected %v", in, got, expected)
		}
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	saved := Log
	Log = nil
	defer func() { Log = saved }()

	Info("no logger configured")
	Error("still fine")
}

func TestValidLevel(t *testing.T) {
	for _, name := range []string{"debug", "info", "warn", "warning", "error", " ERROR "} {
		if !ValidLevel(name) {
			t.Errorf("ValidLevel(%q) = false", name)
		}
	}
	for _, name := range []string{"", "trace", "fatal"} {
		if ValidLevel(name) {
			t.Errorf("ValidLevel(%q) = true", name)
		}
	}
}
