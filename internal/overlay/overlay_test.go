package overlay

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/legio/legio/internal/session"
)

func TestLoadIdentityDefaultsWhenMissing(t *testing.T) {
	dir := t.TempDir()
	id, err := LoadIdentity(dir, "builder-abcd1234", session.CapabilityBuilder)
	if err != nil {
		t.Fatalf("LoadIdentity: %v", err)
	}
	if id.AgentName != "builder-abcd1234" || id.Capability != "builder" {
		t.Fatalf("unexpected default identity: %+v", id)
	}
	if id.SessionsCompleted != 0 {
		t.Fatalf("expected zero sessions completed, got %d", id.SessionsCompleted)
	}
}

func TestSaveAndLoadIdentityRoundTrip(t *testing.T) {
	dir := t.TempDir()
	id := Identity{
		AgentName:        "reviewer-1234abcd",
		Capability:       string(session.CapabilityReviewer),
		ExpertiseDomains: []string{"go", "sql"},
	}
	if err := SaveIdentity(dir, id); err != nil {
		t.Fatalf("SaveIdentity: %v", err)
	}

	path := identityPath(dir, id.AgentName)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected identity file at %s: %v", path, err)
	}

	got, err := LoadIdentity(dir, id.AgentName, session.CapabilityReviewer)
	if err != nil {
		t.Fatalf("LoadIdentity: %v", err)
	}
	if got.AgentName != id.AgentName || len(got.ExpertiseDomains) != 2 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Fatal("expected UpdatedAt to be stamped on save")
	}
}

func TestRecordTaskCompletionBoundsHistory(t *testing.T) {
	id := Identity{AgentName: "scout-1"}
	for i := 0; i < maxRecentTasks+5; i++ {
		id = id.RecordTaskCompletion("task")
	}
	if id.SessionsCompleted != maxRecentTasks+5 {
		t.Fatalf("expected %d sessions completed, got %d", maxRecentTasks+5, id.SessionsCompleted)
	}
	if len(id.RecentTasks) != maxRecentTasks {
		t.Fatalf("expected recent tasks bounded to %d, got %d", maxRecentTasks, len(id.RecentTasks))
	}
}

func TestCheckpointRoundTripAndClear(t *testing.T) {
	dir := t.TempDir()

	_, ok, err := LoadCheckpoint(dir, "builder-1")
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	if ok {
		t.Fatal("expected no checkpoint for missing file")
	}

	cp := Checkpoint{
		Progress:      "halfway through refactor",
		FilesModified: []string{"a.go", "b.go"},
		PendingWork:   "finish tests",
		Branch:        "legio/builder-1/task-9",
	}
	if err := SaveCheckpoint(dir, "builder-1", cp); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}

	got, ok, err := LoadCheckpoint(dir, "builder-1")
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	if !ok || got.Progress != cp.Progress || len(got.FilesModified) != 2 {
		t.Fatalf("checkpoint round trip mismatch: %+v", got)
	}

	if err := ClearCheckpoint(dir, "builder-1"); err != nil {
		t.Fatalf("ClearCheckpoint: %v", err)
	}
	_, ok, err = LoadCheckpoint(dir, "builder-1")
	if err != nil {
		t.Fatalf("LoadCheckpoint after clear: %v", err)
	}
	if ok {
		t.Fatal("expected checkpoint cleared")
	}

	if err := ClearCheckpoint(dir, "builder-1"); err != nil {
		t.Fatalf("ClearCheckpoint on already-missing file should be a no-op: %v", err)
	}
}

func TestOverlayRenderIncludesScopeAndBriefing(t *testing.T) {
	o := Overlay{
		AgentName:         "builder-abcd1234",
		Capability:        session.CapabilityBuilder,
		TaskID:            "task-9",
		ParentAgentName:   "lead-1",
		Depth:             1,
		FileScope:         []string{"internal/store/mail.go"},
		ActivationContext: "implement the mail router",
		CapabilityDoc:     "builders write code and tests",
	}
	rendered := o.Render()

	for _, want := range []string{
		"builder-abcd1234", "task-9", "lead-1", "Depth: 1",
		"internal/store/mail.go", "implement the mail router",
		"builders write code and tests",
	} {
		if !strings.Contains(rendered, want) {
			t.Fatalf("rendered overlay missing %q:\n%s", want, rendered)
		}
	}
}

func TestWriteOverlayCreatesInstructionFile(t *testing.T) {
	worktree := t.TempDir()
	o := Overlay{AgentName: "scout-1", Capability: session.CapabilityScout, TaskID: "task-1"}
	if err := Write(worktree, o); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(worktree, OverlayFileName))
	if err != nil {
		t.Fatalf("reading overlay file: %v", err)
	}
	if !strings.Contains(string(data), "scout-1") {
		t.Fatalf("overlay file missing agent name: %s", data)
	}
}

func TestLoadCapabilityDocMissingReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	doc, err := LoadCapabilityDoc(dir, session.CapabilityBuilder)
	if err != nil {
		t.Fatalf("LoadCapabilityDoc: %v", err)
	}
	if doc != "" {
		t.Fatalf("expected empty doc for missing template, got %q", doc)
	}
}

func TestLoadCapabilityDocReadsTemplate(t *testing.T) {
	dir := t.TempDir()
	defsDir := filepath.Join(dir, agentDefsDir)
	if err := os.MkdirAll(defsDir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(defsDir, "builder.md"), []byte("own your files\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	doc, err := LoadCapabilityDoc(dir, session.CapabilityBuilder)
	if err != nil {
		t.Fatalf("LoadCapabilityDoc: %v", err)
	}
	if doc != "own your files\n" {
		t.Fatalf("unexpected doc content: %q", doc)
	}
}
