package log_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/skyrules/skyrules/internal/log"
)

func TestNewWithWriterText(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithWriter(&buf, log.Config{Level: slog.LevelInfo})

	logger.Info("query routed", "path", "rules")

	out := buf.String()
	if !strings.Contains(out, "query routed") {
		t.Errorf("log output missing message: %q", out)
	}
	if !strings.Contains(out, "path=rules") {
		t.Errorf("log output missing attribute: %q", out)
	}
}

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithWriter(&buf, log.Config{JSON: true})

	logger.Info("indexed", "count", 12)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["msg"] != "indexed" {
		t.Errorf("msg = %v, want %q", entry["msg"], "indexed")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithWriter(&buf, log.Config{Level: slog.LevelWarn})

	logger.Debug("hidden")
	logger.Info("hidden too")
	logger.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("below-level entries leaked: %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("warn entry missing: %q", out)
	}
}

func TestNewNop(t *testing.T) {
	logger := log.NewNop()
	// Must not panic and must accept any level.
	logger.Debug("discarded")
	logger.Error("discarded")
}
