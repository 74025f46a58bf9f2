package telemetry

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{" error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSetupLogger_JSONFormat(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	setupLogger(&buf, "json", "info")
	buf.Reset()

	slog.Info("request created", "request_id", 7)

	var obj map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &obj); err != nil {
		t.Fatalf("output is not valid JSON: %v\noutput: %s", err, buf.String())
	}
	if obj["msg"] != "request created" {
		t.Errorf("msg = %v", obj["msg"])
	}
	if obj["request_id"] != float64(7) {
		t.Errorf("request_id = %v", obj["request_id"])
	}
}

func TestSetupLogger_TextFormat(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	setupLogger(&buf, "text", "info")
	buf.Reset()

	slog.Info("text test", "env", "dev")
	if !strings.Contains(buf.String(), "env=dev") {
		t.Errorf("text output missing key=value pair: %q", buf.String())
	}
}

func TestSetupLogger_LevelVarIsLive(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	lvl := setupLogger(&buf, "text", "error")
	buf.Reset()

	slog.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info record written at error level: %q", buf.String())
	}

	lvl.Set(ParseLevel("debug"))
	slog.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("debug record missing after level change: %q", buf.String())
	}
}
