package logger

import (
	"context"
	"log/slog"
	"testing"
)

func TestSetLevel(t *testing.T) {
	defer SetLevel("info")

	SetLevel("error")
	if Get().Enabled(context.Background(), slog.LevelInfo) {
		t.Error("Expected info to be suppressed after SetLevel(\"error\")")
	}
	if !Get().Enabled(context.Background(), slog.LevelError) {
		t.Error("Expected error to stay enabled after SetLevel(\"error\")")
	}

	SetLevel("debug")
	if !Get().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Expected debug to be enabled after SetLevel(\"debug\")")
	}
}

func TestSetLevel_IgnoresUnknownValues(t *testing.T) {
	defer SetLevel("info")

	SetLevel("warn")
	SetLevel("verbose")
	if Get().Enabled(context.Background(), slog.LevelInfo) {
		t.Error("Expected unknown level to leave the previous level in place")
	}
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"Warn", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"", slog.LevelInfo, false},
		{"trace", slog.LevelInfo, false},
	}
	for _, c := range cases {
		got, ok := parseLevel(c.in)
		if got != c.want || ok != c.ok {
			t.Errorf("parseLevel(%q) = %v, %v, want %v, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}
