package worktree

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v: %s", args, err, out)
		}
	}
	run("init", "-q", "-b", "main")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	if err := exec.Command("touch", filepath.Join(dir, "README.md")).Run(); err != nil {
		t.Fatalf("touch: %v", err)
	}
	run("add", "README.md")
	run("commit", "-q", "-m", "init")
	return dir
}

func TestBranchName(t *testing.T) {
	got := BranchName("builder-abc123", "task-42")
	want := "legio/builder-abc123/task-42"
	if got != want {
		t.Fatalf("BranchName() = %q, want %q", got, want)
	}
}

func TestCreateListRemove(t *testing.T) {
	repo := initRepo(t)
	m := New(repo, repo)
	ctx := context.Background()

	path, branch, err := m.Create(ctx, "builder-abc123", "task-42", "main")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if branch != "legio/builder-abc123/task-42" {
		t.Fatalf("unexpected branch %s", branch)
	}
	if path != m.PathFor("builder-abc123") {
		t.Fatalf("unexpected path %s", path)
	}

	entries, err := m.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	found := false
	for _, e := range entries {
		if e.Path == path {
			found = true
			if e.Branch != branch {
				t.Fatalf("expected entry branch %s, got %s", branch, e.Branch)
			}
		}
	}
	if !found {
		t.Fatalf("expected to find created worktree in list, got %+v", entries)
	}
	for _, e := range entries {
		if e.Branch == "main" {
			t.Fatalf("expected primary checkout (branch main) excluded from List, got %+v", entries)
		}
	}

	if err := m.Remove(ctx, "builder-abc123", true); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	entries, err = m.List(ctx)
	if err != nil {
		t.Fatalf("List after remove: %v", err)
	}
	for _, e := range entries {
		if e.Path == path {
			t.Fatalf("expected worktree removed, still present: %+v", e)
		}
	}
}
