package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/legio/legio/internal/config"
	"github.com/legio/legio/internal/overlay"
	"github.com/legio/legio/internal/store"
)

func TestPeekCompletionsFlagSpaceForm(t *testing.T) {
	shell, ok := peekCompletionsFlag([]string{"--completions", "zsh"})
	if !ok || shell != "zsh" {
		t.Fatalf("peekCompletionsFlag() = (%q, %v), want (zsh, true)", shell, ok)
	}
}

func TestPeekCompletionsFlagEqualsForm(t *testing.T) {
	shell, ok := peekCompletionsFlag([]string{"--completions=fish"})
	if !ok || shell != "fish" {
		t.Fatalf("peekCompletionsFlag() = (%q, %v), want (fish, true)", shell, ok)
	}
}

func TestPeekCompletionsFlagAbsent(t *testing.T) {
	if _, ok := peekCompletionsFlag([]string{"up", "--port", "4717"}); ok {
		t.Fatal("peekCompletionsFlag() = true, want false when flag absent")
	}
}

func TestPeekCompletionsFlagTrailingWithNoValue(t *testing.T) {
	if _, ok := peekCompletionsFlag([]string{"--completions"}); ok {
		t.Fatal("peekCompletionsFlag() = true, want false when no value follows")
	}
}

func TestPrintCompletionRejectsUnknownShell(t *testing.T) {
	if err := printCompletion("powershell"); err == nil {
		t.Fatal("printCompletion(\"powershell\") = nil, want error")
	}
}

func TestParseRFC3339Empty(t *testing.T) {
	if got := parseRFC3339(""); !got.IsZero() {
		t.Fatalf("parseRFC3339(\"\") = %v, want zero time", got)
	}
}

func TestParseRFC3339Invalid(t *testing.T) {
	if got := parseRFC3339("not-a-time"); !got.IsZero() {
		t.Fatalf("parseRFC3339(invalid) = %v, want zero time", got)
	}
}

func TestParseRFC3339Valid(t *testing.T) {
	want := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	got := parseRFC3339(want.Format(time.RFC3339))
	if !got.Equal(want) {
		t.Fatalf("parseRFC3339() = %v, want %v", got, want)
	}
}

func TestBlockedBashCommandMatchesDenyList(t *testing.T) {
	cases := []string{
		"rm -rf /",
		"rm -rf / ",
		"git push origin main --force",
		"git branch -D main",
		"git branch -D master",
	}
	for _, c := range cases {
		if _, blocked := blockedBashCommand(c); !blocked {
			t.Errorf("blockedBashCommand(%q) = false, want true", c)
		}
	}
}

func TestBlockedBashCommandAllowsSafeCommands(t *testing.T) {
	cases := []string{
		"ls -la",
		"rm -rf ./build",
		"git push origin feature-branch",
		"git branch -D legio/builder-1/task-1",
	}
	for _, c := range cases {
		if _, blocked := blockedBashCommand(c); blocked {
			t.Errorf("blockedBashCommand(%q) = true, want false", c)
		}
	}
}

func TestAgentNameFromWorktreeCwd(t *testing.T) {
	root := "/proj"
	cases := []struct {
		cwd       string
		wantName  string
		wantFound bool
	}{
		{"/proj/.legio/worktrees/builder-1", "builder-1", true},
		{"/proj/.legio/worktrees/builder-1/src/pkg", "builder-1", true},
		{"/proj", "", false},
		{"/elsewhere", "", false},
	}
	for _, c := range cases {
		name, ok := agentNameFromWorktreeCwd(root, c.cwd)
		if ok != c.wantFound || name != c.wantName {
			t.Errorf("agentNameFromWorktreeCwd(%q, %q) = (%q, %v), want (%q, %v)",
				root, c.cwd, name, ok, c.wantName, c.wantFound)
		}
	}
}

func TestSaveCompactionCheckpointRoundTrip(t *testing.T) {
	root := t.TempDir()
	if err := config.Save(root, config.Defaults()); err != nil {
		t.Fatalf("config.Save: %v", err)
	}

	sessions, err := store.OpenSessionStore(storeDirFor(root))
	if err != nil {
		t.Fatalf("OpenSessionStore: %v", err)
	}
	defer sessions.Close()
	if err := sessions.Upsert(context.Background(), store.Session{
		ID:        "sess-builder-1",
		AgentName: "builder-1",
		Branch:    "legio/builder-1/task-1",
		State:     store.StateWorking,
		StartedAt: time.Now(),
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	worktree := filepath.Join(root, ".legio", "worktrees", "builder-1")
	if err := os.MkdirAll(worktree, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	oldwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	defer os.Chdir(oldwd)
	if err := os.Chdir(worktree); err != nil {
		t.Fatalf("Chdir: %v", err)
	}

	payload := hookPayload{
		HookEvent:     hookPreCompact,
		Progress:      "implemented the parser",
		FilesModified: []string{"parser.go"},
		PendingWork:   "add tests",
	}
	if err := saveCompactionCheckpoint(payload); err != nil {
		t.Fatalf("saveCompactionCheckpoint: %v", err)
	}

	cp, ok, err := overlay.LoadCheckpoint(root, "builder-1")
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	if !ok {
		t.Fatal("expected checkpoint to exist after PreCompact hook")
	}
	if cp.Progress != payload.Progress || cp.PendingWork != payload.PendingWork {
		t.Fatalf("unexpected checkpoint %+v", cp)
	}
	if cp.Branch != "legio/builder-1/task-1" {
		t.Fatalf("expected checkpoint to carry session branch, got %q", cp.Branch)
	}
}
