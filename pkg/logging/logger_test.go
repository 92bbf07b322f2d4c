package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dougsko/ddstune/pkg/config"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLogLevel(tt.in); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if LevelWarn.String() != "WARN" {
		t.Errorf("Expected WARN, got %s", LevelWarn.String())
	}
}

func TestFileLogger(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.File = filepath.Join(t.TempDir(), "logs", "ddstune.log")
	cfg.Logging.Level = "warn"
	cfg.Logging.Structured = true

	logger, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Info("dds", "filtered out")
	logger.Warn("dds", "tuning word written", map[string]interface{}{"word": 747238406})
	logger.Errorf("ui", "display error: %s", "bus stuck")

	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(cfg.Logging.File)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	out := string(data)

	if strings.Contains(out, "filtered out") {
		t.Error("Info entry should be below the configured level")
	}
	for _, want := range []string{`"component":"dds"`, `"word":747238406`, "display error: bus stuck", `"component":"ui"`} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected log to contain %s, got:\n%s", want, out)
		}
	}
}

func TestGlobalLogger(t *testing.T) {
	SetGlobalLogger(NewNopLogger())
	defer SetGlobalLogger(nil)

	// must not panic with a discarding logger
	Info("test", "hello", map[string]interface{}{"k": 1})
	Debugf("test", "value %d", 2)

	if GetGlobalLogger().Level() != LevelError {
		t.Errorf("Expected nop logger level, got %v", GetGlobalLogger().Level())
	}

	SetGlobalLogger(nil)
	if GetGlobalLogger() == nil {
		t.Error("Expected fallback logger")
	}
}
