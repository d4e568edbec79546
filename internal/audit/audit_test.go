package audit

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/saferm/saferm/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func readEvents(t *testing.T, path string) []Event {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var events []Event
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var ev Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("bad JSONL line %q: %v", sc.Text(), err)
		}
		events = append(events, ev)
	}
	return events
}

func TestOpenDisabledReturnsNil(t *testing.T) {
	l := Open(config.AuditConfig{Enabled: false}, testLogger())
	if l != nil {
		t.Fatal("disabled audit must return nil")
	}
	// Nil methods must be no-ops.
	l.Record(Event{Path: "/x", Verdict: "block"})
	l.Close()
}

func TestRecordDeniedOnly(t *testing.T) {
	out := filepath.Join(t.TempDir(), "audit.log")
	l := Open(config.AuditConfig{Enabled: true, Output: out, LogDenied: true}, testLogger())
	if l == nil {
		t.Fatal("Open returned nil")
	}

	l.Record(Event{Path: "/p/ok.txt", Verdict: "allow"})
	l.Record(Event{Path: "/p/.git", Verdict: "block", Reason: "protected-path"})
	l.Close()

	events := readEvents(t, out)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Verdict != "block" || events[0].Reason != "protected-path" {
		t.Errorf("event = %+v", events[0])
	}
	if events[0].Time.IsZero() {
		t.Error("event time must be filled in")
	}
}

func TestRecordAppends(t *testing.T) {
	out := filepath.Join(t.TempDir(), "audit.log")
	cfg := config.AuditConfig{Enabled: true, Output: out, LogAllowed: true, LogDenied: true}

	l := Open(cfg, testLogger())
	l.Record(Event{Path: "/p/a", Verdict: "allow", Bypassed: true})
	l.Close()

	// A second run must append, not truncate.
	l = Open(cfg, testLogger())
	l.Record(Event{Path: "/p/b", Verdict: "block", Reason: "outside-project"})
	l.Close()

	events := readEvents(t, out)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if !events[0].Bypassed {
		t.Error("first event must keep its bypassed flag")
	}
	if events[1].Path != "/p/b" {
		t.Errorf("second event path = %q", events[1].Path)
	}
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	out := filepath.Join(t.TempDir(), "state", "saferm", "audit.log")
	l := Open(config.AuditConfig{Enabled: true, Output: out, LogDenied: true}, testLogger())
	if l == nil {
		t.Fatal("Open must create missing parent directories")
	}
	l.Close()
}
