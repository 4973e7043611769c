package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func TestGetGlobalEventLoggerReturnsSingletonNoopWhenUnset(t *testing.T) {
	SetGlobalEventLogger(nil)

	a := GetGlobalEventLogger()
	b := GetGlobalEventLogger()

	if a == nil || b == nil {
		t.Fatal("expected non-nil noop logger")
	}
	if a != b {
		t.Fatal("expected singleton noop logger instance")
	}
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("invalid JSON log line: %v", err)
	}
	return m
}

func TestLogVerdictIncludesRunID(t *testing.T) {
	var buf bytes.Buffer
	el := NewEventLoggerWithWriter("run-1", &buf)

	el.LogVerdict("CPU", "PASS")

	m := decodeLine(t, &buf)
	if m["msg"] != "verdict" {
		t.Errorf("msg = %v, want verdict", m["msg"])
	}
	if m["run_id"] != "run-1" {
		t.Errorf("run_id = %v, want run-1", m["run_id"])
	}
	if m["category"] != "CPU" || m["verdict"] != "PASS" {
		t.Errorf("unexpected attributes: %v", m)
	}
}

func TestLogWorkerStoppedErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	el := NewEventLoggerWithWriter("run-1", &buf)

	el.LogWorkerStopped("STORAGE", errors.New("checksum mismatch"))

	m := decodeLine(t, &buf)
	if m["level"] != "WARN" {
		t.Errorf("level = %v, want WARN", m["level"])
	}
	if m["error"] != "checksum mismatch" {
		t.Errorf("error = %v, want checksum mismatch", m["error"])
	}
}

func TestLogJoinTimeoutOutcome(t *testing.T) {
	var buf bytes.Buffer
	el := NewEventLoggerWithWriter("run-1", &buf)

	el.LogJoinTimeout("CPU", "process-isolated", "killed")

	m := decodeLine(t, &buf)
	if m["msg"] != "join_timeout" || m["outcome"] != "killed" {
		t.Errorf("unexpected attributes: %v", m)
	}
}
