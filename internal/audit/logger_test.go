package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoggerWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audit.log")
	l := NewLogger(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	l.nowFunc = func() time.Time { return time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC) }

	if err := l.Record(Event{Actor: "ada@example.com", Action: ActionLogin, Outcome: OutcomeSuccess, RequestID: "rid-1"}); err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	if err := l.Record(Event{Actor: "ada@example.com", Action: ActionLogout, Outcome: OutcomeSuccess}); err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer f.Close()

	var events []Event
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Event
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("decode audit line: %v", err)
		}
		events = append(events, e)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 audit lines, got %d", len(events))
	}
	if events[0].Action != ActionLogin || events[0].At != "2026-10-19T09:00:00Z" || events[0].RequestID != "rid-1" {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
}

func TestLoggerWithoutFileOnlyLogs(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("", slog.New(slog.NewJSONHandler(&buf, nil)))

	if err := l.Record(Event{Actor: "x", Action: ActionBroadcast, Outcome: OutcomeSuccess}); err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	if !strings.Contains(buf.String(), ActionBroadcast) {
		t.Fatalf("expected audit mirrored to slog, got %q", buf.String())
	}

	var nilLogger *Logger
	if err := nilLogger.Record(Event{}); err != nil {
		t.Fatalf("nil logger must be a no-op, got %v", err)
	}
}
