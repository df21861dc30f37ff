package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v; want %v", tt.in, got, tt.want)
		}
	}
}

func TestSetupLoggingWritesFile(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	cfg := defaultConfig()
	cfg.Log.File = filepath.Join(t.TempDir(), "nested", "valentine.log")
	cfg.Log.Level = "warn"

	closer, err := setupLogging(cfg)
	assertNoError(t, err)

	slog.Info("hidden")
	slog.Warn("seek failed", "position", 42)
	assertNoError(t, closer.Close())

	data, err := os.ReadFile(cfg.Log.File)
	assertNoError(t, err)
	out := string(data)
	if strings.Contains(out, "hidden") {
		t.Error("info record written at warn level")
	}
	if !strings.Contains(out, "seek failed") || !strings.Contains(out, "position=42") {
		t.Errorf("warn record missing from log: %q", out)
	}
}

func TestSetupLoggingDisabled(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	cfg := defaultConfig()
	cfg.Log.File = "-"
	closer, err := setupLogging(cfg)
	assertNoError(t, err)
	assertNoError(t, closer.Close())
}

func TestDefaultLogPath(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/tmp/state")
	assertEqual(t, defaultLogPath(), filepath.Join("/tmp/state", "valentine", "valentine.log"), "log path")
}
