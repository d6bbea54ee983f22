package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yndnr/webhost-go/internal/server/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"default config", Config{Level: "info"}, "level=INFO"},
		{"text format", Config{Level: "debug", Format: "text"}, "level=INFO"},
		{"json format", Config{Level: "info", Format: "JSON"}, `"level":"INFO"`},
		{"unknown format falls back to text", Config{Level: "info", Format: "console"}, "level=INFO"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.cfg.Output = &buf

			l, err := New(tt.cfg)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			defer l.Close()

			l.Info("hello")
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output %q does not contain %q", buf.String(), tt.want)
			}
		})
	}
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "warn", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	l.Debug("dropped")
	l.Info("dropped")
	l.Warn("kept")
	l.Error("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), buf.String())
	}
	for _, line := range lines {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid JSON %q: %v", line, err)
		}
		if entry["msg"] != "kept" {
			t.Errorf("msg = %v, want kept", entry["msg"])
		}
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	l, _ := New(Config{Level: "error", Output: &buf})
	defer SetLevel("info")

	l.Info("before")
	if buf.Len() != 0 {
		t.Fatalf("info logged at error level: %q", buf.String())
	}

	SetLevel("debug")
	if GetLevel() != "debug" {
		t.Errorf("GetLevel() = %q, want debug", GetLevel())
	}

	l.Info("after")
	if !strings.Contains(buf.String(), "after") {
		t.Errorf("info not logged after SetLevel(debug): %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]string{
		"debug":   "debug",
		"INFO":    "info",
		"warn":    "warn",
		"warning": "warn",
		"error":   "error",
		"bogus":   "info",
	}
	for in, want := range tests {
		SetLevel(in)
		if got := GetLevel(); got != want {
			t.Errorf("SetLevel(%q): GetLevel() = %q, want %q", in, got, want)
		}
	}
	SetLevel("info")
}

func TestNew_FileSink(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "webhost.log")

	var console bytes.Buffer
	l, err := New(Config{
		Level:      "info",
		Output:     &console,
		File:       path,
		MaxSizeMB:  1,
		MaxBackups: 2,
		MaxAgeDays: 1,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	l.Info("to both sinks")
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), "to both sinks") {
		t.Errorf("file content %q missing message", data)
	}
	if !strings.Contains(console.String(), "to both sinks") {
		t.Errorf("console content %q missing message", console.String())
	}
}

func TestLogger_CloseWithoutFile(t *testing.T) {
	l, _ := New(Config{Output: &bytes.Buffer{}})
	if err := l.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestFromSettings(t *testing.T) {
	s := config.Default(config.ProfileDevelopment).Log
	cfg := FromSettings(s)

	if cfg.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Level)
	}
	if cfg.File != s.File || cfg.MaxSizeMB != s.MaxSizeMB || cfg.MaxBackups != s.MaxBackups || cfg.MaxAgeDays != s.MaxAgeDays {
		t.Errorf("rotation settings not mapped: %+v", cfg)
	}
	if cfg.Output != os.Stderr {
		t.Error("Output should default to stderr")
	}
}

func TestDefault(t *testing.T) {
	original := Default()
	defer SetDefault(original)

	var buf bytes.Buffer
	l, _ := New(Config{Level: "debug", Output: &buf})
	SetDefault(l.Logger)

	Debug("d")
	Info("i")
	Warn("w")
	Error("e")

	for _, lvl := range []string{"DEBUG", "INFO", "WARN", "ERROR"} {
		if !strings.Contains(buf.String(), "level="+lvl) {
			t.Errorf("missing %s entry in %q", lvl, buf.String())
		}
	}
	SetLevel("info")
}
