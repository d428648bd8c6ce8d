package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/pithecene-io/mirabel/types"
)

func TestLogger_IncludesSessionContext(t *testing.T) {
	var buf bytes.Buffer
	meta := &types.SessionMeta{SessionID: "sess-1", Room: "kiosk-abcd", Identity: "user-1"}
	logger := NewLoggerWithLevel(meta, zapcore.DebugLevel, &buf)

	logger.Info("hello", map[string]any{"k": "v"})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["session_id"] != "sess-1" {
		t.Errorf("session_id = %v, want sess-1", entry["session_id"])
	}
	if entry["room"] != "kiosk-abcd" {
		t.Errorf("room = %v, want kiosk-abcd", entry["room"])
	}
	if entry["identity"] != "user-1" {
		t.Errorf("identity = %v, want user-1", entry["identity"])
	}
	if entry["message"] != "hello" {
		t.Errorf("message = %v, want hello", entry["message"])
	}
}

func TestLogger_OmitsEmptyRoom(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithLevel(&types.SessionMeta{SessionID: "s", Identity: "u"}, zapcore.DebugLevel, &buf)
	logger.Info("x", nil)
	if strings.Contains(buf.String(), `"room"`) {
		t.Errorf("expected no room field, got %s", buf.String())
	}
}

func TestLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithLevel(&types.SessionMeta{SessionID: "s", Identity: "u"}, zapcore.WarnLevel, &buf)
	logger.Debug("dropped", nil)
	logger.Info("dropped", nil)
	if buf.Len() != 0 {
		t.Fatalf("expected no output below warn, got %s", buf.String())
	}
	logger.Warn("kept", nil)
	if !strings.Contains(buf.String(), "kept") {
		t.Errorf("expected warn entry, got %s", buf.String())
	}
}

func TestLogger_NilIsSafe(t *testing.T) {
	var logger *Logger
	logger.Info("noop", nil)
	logger.With("x").Warn("noop", nil)
	logger.Sugar().Infof("noop %d", 1)
	logger.Sync()
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"", zapcore.InfoLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{"INFO", zapcore.InfoLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
