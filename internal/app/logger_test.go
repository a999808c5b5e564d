package app

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	_ "github.com/dabir-id/dabir-id/testing"
)

func TestLoggerJSONFormatCarriesServiceName(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{LogFormat: "json"})

	logger.Info("starting up")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected json output, got %q: %v", buf.String(), err)
	}
	if entry["service"] != "dabir-id" {
		t.Fatalf("expected service attribute, got %v", entry["service"])
	}
	if entry["msg"] != "starting up" {
		t.Fatalf("unexpected message %v", entry["msg"])
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{LogLevel: "warn"})

	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level, got %q", buf.String())
	}

	logger.Warn("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Fatalf("warn record missing: %q", buf.String())
	}
}

func TestLoggerDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{LogLevel: "debug"})

	logger.Debug("verbose")
	if !strings.Contains(buf.String(), "verbose") {
		t.Fatalf("debug record missing at debug level: %q", buf.String())
	}
}
