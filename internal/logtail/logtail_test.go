package logtail

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSessionLog(t *testing.T, projectRoot, agent, sessionTS, content string) {
	t.Helper()
	dir := filepath.Join(projectRoot, ".legio", "logs", agent, sessionTS)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "session.log"), []byte(content), 0o644); err != nil {
		t.Fatalf("write session.log: %v", err)
	}
}

func TestTailReturnsLastNLines(t *testing.T) {
	root := t.TempDir()
	writeSessionLog(t, root, "builder-1", "2026-07-30T10-00-00", "line1\nline2\nline3\nline4\nline5\n")

	f := New(root)
	got, err := f.Tail("builder-1", 2)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	want := "line4\nline5"
	if got != want {
		t.Errorf("Tail() = %q, want %q", got, want)
	}
}

func TestTailFewerLinesThanRequested(t *testing.T) {
	root := t.TempDir()
	writeSessionLog(t, root, "builder-1", "2026-07-30T10-00-00", "only\ntwo\n")

	f := New(root)
	got, err := f.Tail("builder-1", 10)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	want := "only\ntwo"
	if got != want {
		t.Errorf("Tail() = %q, want %q", got, want)
	}
}

func TestTailPicksMostRecentSessionDir(t *testing.T) {
	root := t.TempDir()
	writeSessionLog(t, root, "builder-1", "2026-07-30T09-00-00", "older")
	writeSessionLog(t, root, "builder-1", "2026-07-30T11-00-00", "newest")

	f := New(root)
	got, err := f.Tail("builder-1", 5)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if got != "newest" {
		t.Errorf("Tail() = %q, want %q (most recent session dir)", got, "newest")
	}
}

func TestTailUnknownAgent(t *testing.T) {
	root := t.TempDir()
	f := New(root)
	if _, err := f.Tail("nobody", 5); err == nil {
		t.Error("Tail() for unknown agent = nil error, want error")
	}
}

func TestEventsReturnsPathUnderLatestSessionDir(t *testing.T) {
	root := t.TempDir()
	writeSessionLog(t, root, "builder-1", "2026-07-30T09-00-00", "x")
	writeSessionLog(t, root, "builder-1", "2026-07-30T11-00-00", "y")

	f := New(root)
	path, err := f.Events("builder-1")
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	want := filepath.Join(root, ".legio", "logs", "builder-1", "2026-07-30T11-00-00", "events.ndjson")
	if path != want {
		t.Errorf("Events() = %q, want %q", path, want)
	}
}
