package main

import (
	"bytes"
	"encoding/json"
	"sync"
	"testing"
)

func TestProgressBus_EmitsJSONL(t *testing.T) {
	var buf bytes.Buffer
	bus := NewProgressBus(&buf)

	bus.Start([]string{"acme/core"})
	bus.PackageStart("acme/core", StatusResolving)
	bus.PackageComplete("acme/core", false)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 3 {
		t.Fatalf("expected 3 JSONL records, got %d:\n%s", len(lines), buf.String())
	}

	var first Event
	if err := json.Unmarshal(lines[0], &first); err != nil {
		t.Fatalf("failed to decode first event: %v", err)
	}
	if first.Type != EventStart || len(first.Packages) != 1 || first.Packages[0] != "acme/core" {
		t.Errorf("unexpected start event: %+v", first)
	}
}

func TestProgressBus_SubscriberReceivesAllEvents(t *testing.T) {
	bus := NewProgressBus(nil)

	var mu sync.Mutex
	var received []Event
	bus.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, e)
	})

	bus.PackageStart("acme/core", StatusDownloading)
	bus.PackageProgress("acme/core", 50, 100)
	bus.PackageComplete("acme/core", false)

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 3 {
		t.Fatalf("expected 3 events, got %d", len(received))
	}
	if received[1].BytesReceived != 50 || received[1].TotalBytes != 100 {
		t.Errorf("unexpected progress event: %+v", received[1])
	}
}

func TestProgressBus_PackageErrorCarriesMessage(t *testing.T) {
	bus := NewProgressBus(nil)
	var got Event
	bus.Subscribe(func(e Event) { got = e })

	bus.PackageError("acme/core", &NotFoundError{Owner: "acme", Repo: "core", Ref: "v9.9.9"})

	if got.Type != EventPackageError || got.Error == "" {
		t.Errorf("unexpected error event: %+v", got)
	}
}
