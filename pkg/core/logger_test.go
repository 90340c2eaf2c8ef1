package core

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewDefaultLogger(t *testing.T) {
	logger := NewDefaultLogger()
	if logger == nil {
		t.Fatal("NewDefaultLogger() should not return nil")
	}
	logger.Debugf("test debug: %s", "message")
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: "warn", Output: &buf})

	logger.Info("hidden")
	logger.Debug("hidden")
	logger.Warnf("shown %d", 1)
	logger.Error("also shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info/debug entries leaked below warn level: %s", out)
	}
	if !strings.Contains(out, "shown 1") || !strings.Contains(out, "also shown") {
		t.Errorf("missing warn/error entries: %s", out)
	}
}

func TestLogger_JSONFieldsAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Format: "json", Output: &buf})

	ctx := WithRequestID(context.Background(), "req-1")
	logger.WithFields(map[string]interface{}{"user_id": "u1"}).WithContext(ctx).Info("hello")

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if entry["msg"] != "hello" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["user_id"] != "u1" {
		t.Errorf("user_id = %v", entry["user_id"])
	}
	if entry["request_id"] != "req-1" {
		t.Errorf("request_id = %v", entry["request_id"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
