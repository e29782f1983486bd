package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir string) {
	t.Helper()
	legioDir := filepath.Join(dir, ".legio")
	if err := os.MkdirAll(legioDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(legioDir, "config.yaml"), []byte("project: demo\n"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestFindPrimaryMarker(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root)

	sub := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}

	got, err := Find(sub)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got != root {
		t.Errorf("Find = %q, want %q", got, root)
	}
}

func TestFindFromWorktreeContinuesToOutermost(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root)

	worktree := filepath.Join(root, ".legio", "worktrees", "scout-1")
	if err := os.MkdirAll(worktree, 0755); err != nil {
		t.Fatal(err)
	}

	got, err := Find(worktree)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got != root {
		t.Errorf("Find = %q, want %q", got, root)
	}
}

func TestFindNotFound(t *testing.T) {
	dir := t.TempDir()
	got, err := Find(dir)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got != "" {
		t.Errorf("Find = %q, want empty", got)
	}
}

func TestFindOrError(t *testing.T) {
	dir := t.TempDir()
	if _, err := FindOrError(dir); err != ErrNotFound {
		t.Errorf("FindOrError err = %v, want ErrNotFound", err)
	}
}

func TestIsWorkspace(t *testing.T) {
	root := t.TempDir()
	if ok, _ := IsWorkspace(root); ok {
		t.Error("expected not a workspace before config written")
	}
	writeConfig(t, root)
	if ok, err := IsWorkspace(root); err != nil || !ok {
		t.Errorf("IsWorkspace = %v, %v; want true, nil", ok, err)
	}
}

func TestGetProjectName(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root)

	name, err := GetProjectName(root)
	if err != nil {
		t.Fatalf("GetProjectName: %v", err)
	}
	if name != "demo" {
		t.Errorf("GetProjectName = %q, want %q", name, "demo")
	}
}

func TestCwdEnvOverride(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root)

	t.Setenv(CwdEnv, root)

	got, err := FindFromCwdOrError()
	if err != nil {
		t.Fatalf("FindFromCwdOrError: %v", err)
	}
	if got != root {
		t.Errorf("FindFromCwdOrError = %q, want %q", got, root)
	}
}
