package events

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAuditLog_WritesJSONLEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l, err := NewAuditLog(path, 0)
	if err != nil {
		t.Fatalf("NewAuditLog: %v", err)
	}
	defer l.Close()

	events := []Event{
		{Kind: StreamAlerts, CommandID: "", Timestamp: time.Now().UTC(), Payload: map[string]string{"rule": "r1"}},
		{Kind: StreamNotifications, CommandID: "cmd-1", Timestamp: time.Now().UTC()},
	}
	for _, ev := range events {
		if err := l.Write(ev); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit file: %v", err)
	}
	defer file.Close()

	var entries []AuditEntry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var entry AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("malformed audit line %q: %v", scanner.Text(), err)
		}
		entries = append(entries, entry)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Stream != StreamAlerts {
		t.Errorf("entries[0].Stream = %s, want %s", entries[0].Stream, StreamAlerts)
	}
	if entries[1].CommandID != "cmd-1" {
		t.Errorf("entries[1].CommandID = %s, want cmd-1", entries[1].CommandID)
	}
}

func TestAuditLog_RotatesAtSizeCap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")
	// Cap small enough that the second write must rotate.
	l, err := NewAuditLog(path, 150)
	if err != nil {
		t.Fatalf("NewAuditLog: %v", err)
	}
	defer l.Close()

	ev := Event{Kind: StreamProgress, CommandID: "cmd-1", Timestamp: time.Now().UTC(), Payload: "xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx"}
	for i := 0; i < 3; i++ {
		if err := l.Write(ev); err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}

	archives, err := filepath.Glob(filepath.Join(dir, "archive", "audit.*.jsonl"))
	if err != nil {
		t.Fatalf("glob archives: %v", err)
	}
	if len(archives) == 0 {
		t.Fatal("expected at least one rotated archive file")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("active audit file should exist after rotation: %v", err)
	}
}

func TestAuditLog_SubscriberWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l, err := NewAuditLog(path, 0)
	if err != nil {
		t.Fatalf("NewAuditLog: %v", err)
	}
	defer l.Close()

	bus := NewBus(10)
	bus.Subscribe(StreamAlerts, l.Subscriber())
	bus.Publish(StreamAlerts, "cmd-1", "payload")

	deadline := time.After(time.Second)
	for {
		stat, err := os.Stat(path)
		if err == nil && stat.Size() > 0 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("audit entry was not written by the subscriber")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
