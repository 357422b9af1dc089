package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/menta2k/banknote-assistant/internal/config"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.LogConfig{Level: "info", Format: "json"}, &buf)

	logger.Debug("hidden")
	logger.Info("prediction", "total", 70)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("Expected 1 line, got %d: %q", len(lines), buf.String())
	}

	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("Expected JSON output: %v", err)
	}
	if record["msg"] != "prediction" {
		t.Errorf("Expected msg prediction, got %v", record["msg"])
	}
	if record["total"] != float64(70) {
		t.Errorf("Expected total 70, got %v", record["total"])
	}
}

func TestNewTextDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.LogConfig{Level: "debug", Format: "text"}, &buf)

	logger.Debug("filtered", "kept", 2)
	if !strings.Contains(buf.String(), "msg=filtered") || !strings.Contains(buf.String(), "kept=2") {
		t.Errorf("Unexpected text output %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q): expected %v, got %v", in, want, got)
		}
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	if logger == nil {
		t.Fatal("Expected a logger")
	}
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("Expected the discard logger to drop error records")
	}
	logger.With("component", "test").Error("dropped")
}
