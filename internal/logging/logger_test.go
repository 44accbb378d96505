package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"riego-dashboard/internal/config"
)

func TestNew_ReleaseWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(&buf, config.Config{AppEnv: "prod", LogLevel: slog.LevelInfo}, "1.2.3", "riego")

	logger.Info("node connection state changed", "state", "RECEIVING")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v; got %q", err, buf.String())
	}
	for key, want := range map[string]string{
		"msg":     "node connection state changed",
		"app":     "riego",
		"version": "1.2.3",
		"env":     "prod",
		"state":   "RECEIVING",
	} {
		if rec[key] != want {
			t.Errorf("%s = %v; want %q", key, rec[key], want)
		}
	}
}

func TestNew_DevUsesTint(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(&buf, config.Config{AppEnv: "prod", LogLevel: slog.LevelDebug}, "dev", "riego")

	logger.Debug("datagram decoded", "fields", 5)

	out := buf.String()
	if !strings.Contains(out, "datagram decoded") {
		t.Errorf("output missing message; got %q", out)
	}
	if !strings.Contains(out, "app=riego") {
		t.Errorf("output missing app attr; got %q", out)
	}
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("dev output should not be JSON; got %q", out)
	}
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(&buf, config.Config{AppEnv: "prod", LogLevel: slog.LevelWarn}, "1.0.0", "riego")

	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info logged at warn level: %q", buf.String())
	}
}
