package tui

import (
	"context"
	"testing"
	"time"

	"github.com/legio/legio/internal/store"
)

func TestStorePollerEmitsExistingEventsAndMail(t *testing.T) {
	dir := t.TempDir()

	events, err := store.OpenEventStore(dir)
	if err != nil {
		t.Fatalf("OpenEventStore: %v", err)
	}
	defer events.Close()

	mailStore, err := store.OpenMailStore(dir)
	if err != nil {
		t.Fatalf("OpenMailStore: %v", err)
	}
	defer mailStore.Close()

	ctx := context.Background()
	if _, err := events.Insert(ctx, store.Event{
		AgentName: "coder-1",
		Type:      store.EventToolStart,
		ToolName:  "bash",
		Data:      "running tests",
	}); err != nil {
		t.Fatalf("inserting event: %v", err)
	}
	if _, err := mailStore.Insert(ctx, store.Message{
		From:    "coder-1",
		To:      "coordinator",
		Subject: "done",
		Type:    store.MsgStatus,
	}); err != nil {
		t.Fatalf("inserting mail: %v", err)
	}

	poller := NewStorePoller(events, mailStore, 20*time.Millisecond)
	defer poller.Close()

	seen := map[string]bool{}
	deadline := time.After(2 * time.Second)
	for len(seen) < 2 {
		select {
		case e, ok := <-poller.Events():
			if !ok {
				t.Fatal("event channel closed before seeing both rows")
			}
			seen[e.Type] = true
		case <-deadline:
			t.Fatalf("timed out waiting for both events, saw: %v", seen)
		}
	}

	if !seen[string(store.EventToolStart)] {
		t.Error("expected a tool_start event from the event store")
	}
	if !seen["mail"] {
		t.Error("expected a mail event from the mail store")
	}
}

func TestStorePollerCloseStopsChannel(t *testing.T) {
	dir := t.TempDir()

	events, err := store.OpenEventStore(dir)
	if err != nil {
		t.Fatalf("OpenEventStore: %v", err)
	}
	defer events.Close()

	poller := NewStorePoller(events, nil, 10*time.Millisecond)
	poller.Close()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-poller.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("event channel did not close after Close")
		}
	}
}
