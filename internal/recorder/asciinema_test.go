package recorder

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestRecorder_WritesHeaderAndEvents(t *testing.T) {
	var buf bytes.Buffer

	rec, err := NewWithWriter(&buf, 120, 40)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := rec.WriteOutput([]byte("$ ls\r\n")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := rec.WriteInput([]byte("ls\n")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	scanner := bufio.NewScanner(&buf)

	if !scanner.Scan() {
		t.Fatal("missing header line")
	}
	var header Header
	if err := json.Unmarshal(scanner.Bytes(), &header); err != nil {
		t.Fatalf("failed to parse header: %v", err)
	}
	if header.Version != 2 || header.Width != 120 || header.Height != 40 {
		t.Errorf("unexpected header: %+v", header)
	}

	want := []struct {
		eventType string
		data      string
	}{
		{"o", "$ ls\r\n"},
		{"i", "ls\n"},
	}
	for _, w := range want {
		if !scanner.Scan() {
			t.Fatalf("missing %q event line", w.eventType)
		}
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			t.Fatalf("failed to parse event: %v", err)
		}
		if event.EventType != w.eventType || event.Data != w.data {
			t.Errorf("expected (%q, %q), got (%q, %q)", w.eventType, w.data, event.EventType, event.Data)
		}
		if event.TimeOffset < 0 {
			t.Errorf("negative time offset: %f", event.TimeOffset)
		}
	}
}

func TestRecorder_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.cast")

	rec, err := New(path, 80, 24)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := rec.WriteOutput([]byte("hello")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 event, got %d lines", len(lines))
	}
}

func TestEvent_RoundTrip(t *testing.T) {
	event := Event{TimeOffset: 1.25, EventType: "o", Data: "output\r\n"}

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `[1.25,"o","output\r\n"]` {
		t.Errorf("unexpected serialized form: %s", data)
	}

	var decoded Event
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded != event {
		t.Errorf("round-trip mismatch: %+v", decoded)
	}

	if err := json.Unmarshal([]byte(`[1.0,"o"]`), &decoded); err == nil {
		t.Error("expected error for short array")
	}
}
