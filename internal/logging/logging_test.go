package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"
)

func TestLogEntryFormat(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	Info("export complete", F("service", "checkout-api", "bytes", 128))

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not valid JSON: %v", err)
	}
	if entry.SeverityText != "INFO" {
		t.Errorf("expected severity INFO, got %s", entry.SeverityText)
	}
	if entry.SeverityNumber != 9 {
		t.Errorf("expected severity number 9, got %d", entry.SeverityNumber)
	}
	if entry.Body != "export complete" {
		t.Errorf("unexpected body: %s", entry.Body)
	}
	if entry.Attributes["service"] != "checkout-api" {
		t.Errorf("missing service attribute: %v", entry.Attributes)
	}
}

func TestDebugSuppressedByDefault(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	SetDebug(false)
	Debug("should not appear")
	if buf.Len() != 0 {
		t.Errorf("debug output emitted while disabled: %s", buf.String())
	}

	SetDebug(true)
	defer SetDebug(false)
	Debug("should appear")
	if !strings.Contains(buf.String(), "should appear") {
		t.Errorf("debug output missing while enabled: %s", buf.String())
	}
}

func TestResourceAttached(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	SetResource(map[string]string{"service.name": "trace-governor"})
	defer SetResource(nil)

	Warn("poll failed")

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not valid JSON: %v", err)
	}
	if entry.Resource["service.name"] != "trace-governor" {
		t.Errorf("resource not attached: %v", entry.Resource)
	}
}

func TestHookInvoked(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	var gotLevel Level
	var gotMsg string
	SetHook(func(level Level, msg string, attrs map[string]interface{}) {
		gotLevel = level
		gotMsg = msg
	})
	defer SetHook(nil)

	Error("submit rejected")

	if gotLevel != LevelError || gotMsg != "submit rejected" {
		t.Errorf("hook not invoked correctly: level=%s msg=%q", gotLevel, gotMsg)
	}
}

func TestF(t *testing.T) {
	fields := F("a", 1, "b", "two")
	if fields["a"] != 1 || fields["b"] != "two" {
		t.Errorf("unexpected fields: %v", fields)
	}

	// Odd trailing value is dropped
	fields = F("a", 1, "dangling")
	if len(fields) != 1 {
		t.Errorf("expected 1 field, got %v", fields)
	}
}

func TestSeverityNumber(t *testing.T) {
	if SeverityNumber(LevelDebug) != 5 {
		t.Errorf("unexpected DEBUG severity number")
	}
	if SeverityNumber(LevelFatal) != 21 {
		t.Errorf("unexpected FATAL severity number")
	}
}
