package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		wantErr  bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"none", LevelNone, false},
		{"off", LevelNone, false},
		{"invalid", LevelInfo, true},
		{"dbug", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
			if tt.wantErr != errors.Is(err, ErrUnknownLevel) {
				t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(LevelWarn, &buf, "ledger")

	l.Info("hidden")
	l.Warn("storage failed: %s", "disk full")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered, got %q", out)
	}
	if !strings.Contains(out, "[WARN] [ledger] storage failed: disk full") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestWithPrefixSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	root := NewWriter(LevelError, &buf, "calc")
	child := root.WithPrefix("tcp")

	child.Info("before")
	root.SetLevel(LevelDebug)
	child.Debug("after")

	out := buf.String()
	if strings.Contains(out, "before") {
		t.Errorf("expected info to be filtered before SetLevel, got %q", out)
	}
	if !strings.Contains(out, "[calc:tcp] after") {
		t.Errorf("expected child prefix in output, got %q", out)
	}
}

func TestNewLoggerFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "calc.log")

	l, err := New(LevelInfo, logPath, "test")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	l.Info("test message")
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "[INFO] [test] test message") {
		t.Errorf("log file missing message: %q", content)
	}
}

func TestDisabledLogger(t *testing.T) {
	l, err := New(LevelNone, "", "")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	l.Error("nothing")
	if l.Level() != LevelNone {
		t.Errorf("expected LevelNone, got %v", l.Level())
	}
}
