package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestConfigure_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Configure("debug", "json", &buf); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	Debug("batch planned", "batches", 3)
	Error("batch failed", errors.New("boom"), "index", 1)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 log lines, got %d: %s", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &entry); err != nil {
		t.Fatalf("Log line is not JSON: %v", err)
	}
	if entry["msg"] != "batch failed" || entry["error"] != "boom" {
		t.Errorf("Unexpected entry: %v", entry)
	}
}

func TestConfigure_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	if err := Configure("warn", "text", &buf); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	Info("hidden")
	Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("Info should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("Warn should be logged at warn level")
	}
}

func TestConfigure_Invalid(t *testing.T) {
	if err := Configure("loud", "text", nil); err == nil {
		t.Error("Expected error for unknown level")
	}
	if err := Configure("info", "xml", nil); err == nil {
		t.Error("Expected error for unknown format")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
}
