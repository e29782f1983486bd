package lifecycle

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/legio/legio/internal/process"
	"github.com/legio/legio/internal/session"
	"github.com/legio/legio/internal/store"
	"github.com/legio/legio/internal/worktree"
)

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v: %s", args, err, out)
	}
}

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	runGit(t, dir, "init", "-b", "main")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0644); err != nil {
		t.Fatalf("writing README: %v", err)
	}
	runGit(t, dir, "add", "README.md")
	runGit(t, dir, "commit", "-m", "initial")
	return dir
}

func TestFormatBeaconIncludesFields(t *testing.T) {
	text := FormatBeacon(BeaconFields{AgentName: "builder-abcd1234", TaskID: "task-1", Parent: "lead-1", Depth: 1})
	for _, want := range []string{"[LEGIO]", "builder-abcd1234", "task-1", "lead-1", "depth: 1"} {
		if !strings.Contains(text, want) {
			t.Fatalf("beacon missing %q:\n%s", want, text)
		}
	}
}

func TestFormatBeaconOmitsParentWhenRoot(t *testing.T) {
	text := FormatBeacon(BeaconFields{AgentName: "scout-1", TaskID: "task-1"})
	if strings.Contains(text, "parent:") {
		t.Fatalf("expected no parent line for root agent:\n%s", text)
	}
}

func TestSpawnRejectsInvalidCapability(t *testing.T) {
	e := &Engine{cfg: Config{}}
	_, err := e.Spawn(context.Background(), SpawnRequest{Capability: "not-a-real-capability"})
	if err == nil {
		t.Fatal("expected error for invalid capability")
	}
}

func TestSpawnRejectsDepthAtMax(t *testing.T) {
	e := &Engine{cfg: Config{MaxDepth: 2}}
	_, err := e.Spawn(context.Background(), SpawnRequest{Capability: session.CapabilityBuilder, Depth: 2})
	if err == nil {
		t.Fatal("expected error for depth at configured max")
	}
}

func TestSpawnRejectsParentAtCapacity(t *testing.T) {
	storeDir := t.TempDir()
	sessions, err := store.OpenSessionStore(storeDir)
	if err != nil {
		t.Fatalf("OpenSessionStore: %v", err)
	}
	t.Cleanup(func() { sessions.Close() })

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := sessions.Upsert(ctx, store.Session{
			ID: "child-" + string(rune('a'+i)), AgentName: "child-" + string(rune('a'+i)),
			ParentAgentName: "lead-1", State: store.StateWorking,
		}); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	e := &Engine{sessions: sessions, cfg: Config{MaxDepth: 5, MaxConcurrent: 2}}
	_, err = e.Spawn(ctx, SpawnRequest{Capability: session.CapabilityBuilder, ParentAgentName: "lead-1", Depth: 1})
	if err == nil {
		t.Fatal("expected error when parent is at max concurrent children")
	}
}

// fakeTerminal records CreateSession/SendKeys calls instead of shelling
// out to a real tmux server.
type fakeTerminal struct {
	created  map[string]string // session -> workdir
	sentKeys map[string]string // session -> last text
}

func newFakeTerminal() *fakeTerminal {
	return &fakeTerminal{created: map[string]string{}, sentKeys: map[string]string{}}
}

func (f *fakeTerminal) CreateSession(ctx context.Context, name, workdir, cmd string) error {
	f.created[name] = workdir
	return nil
}

func (f *fakeTerminal) PanePID(ctx context.Context, name string) (int, error) {
	return 4242, nil
}

func (f *fakeTerminal) SendKeys(ctx context.Context, session, text string) error {
	f.sentKeys[session] = text
	return nil
}

func (f *fakeTerminal) ApplyTheme(ctx context.Context, sessionName string, theme process.Theme) error {
	return nil
}

func TestSpawnCreatesWorktreeSessionAndOverlay(t *testing.T) {
	repoDir := initRepo(t)
	projectRoot := repoDir
	storeDir := t.TempDir()

	sessions, err := store.OpenSessionStore(storeDir)
	if err != nil {
		t.Fatalf("OpenSessionStore: %v", err)
	}
	t.Cleanup(func() { sessions.Close() })

	events, err := store.OpenEventStore(storeDir)
	if err != nil {
		t.Fatalf("OpenEventStore: %v", err)
	}
	t.Cleanup(func() { events.Close() })

	wt := worktree.New(projectRoot, repoDir)
	term := newFakeTerminal()

	e := New(projectRoot, "proj", sessions, events, wt, term, nil, Config{MaxDepth: 5, BeaconDelay: time.Millisecond})

	req := SpawnRequest{
		Capability:        session.CapabilityBuilder,
		TaskID:            "task-1",
		StartPoint:        "main",
		FileScope:         []string{"README.md"},
		ActivationContext: "add a feature",
	}

	sess, err := e.Spawn(context.Background(), req)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if sess.State != store.StateBooting {
		t.Fatalf("expected booting state, got %s", sess.State)
	}
	if sess.Branch != "legio/"+sess.AgentName+"/task-1" {
		t.Fatalf("unexpected branch: %s", sess.Branch)
	}
	if sess.RootPID != 4242 {
		t.Fatalf("expected root pid recorded from PanePID, got %d", sess.RootPID)
	}

	if _, err := os.Stat(filepath.Join(wt.PathFor(sess.AgentName), "AGENTS.md")); err != nil {
		t.Fatalf("expected overlay file: %v", err)
	}

	if _, ok := term.created[sess.TmuxSession]; !ok {
		t.Fatalf("expected terminal session %s to be created", sess.TmuxSession)
	}
	if !strings.Contains(term.sentKeys[sess.TmuxSession], "[LEGIO]") {
		t.Fatalf("expected activation beacon sent, got %q", term.sentKeys[sess.TmuxSession])
	}

	stored, err := sessions.GetByName(context.Background(), sess.AgentName)
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if stored.WorktreePath != sess.WorktreePath {
		t.Fatalf("expected persisted session to match returned session")
	}
}

func TestSpawnRollsBackWorktreeOnUpsertFailure(t *testing.T) {
	repoDir := initRepo(t)
	storeDir := t.TempDir()

	sessions, err := store.OpenSessionStore(storeDir)
	if err != nil {
		t.Fatalf("OpenSessionStore: %v", err)
	}
	sessions.Close() // closed store makes Upsert fail, forcing the rollback path

	wt := worktree.New(repoDir, repoDir)
	term := newFakeTerminal()
	e := New(repoDir, "proj", sessions, nil, wt, term, nil, Config{MaxDepth: 5, BeaconDelay: time.Millisecond})

	_, err = e.Spawn(context.Background(), SpawnRequest{Capability: session.CapabilityScout, TaskID: "task-1", StartPoint: "main"})
	if err == nil {
		t.Fatal("expected error when session store is closed")
	}

	entries, listErr := wt.List(context.Background())
	if listErr != nil {
		t.Fatalf("List: %v", listErr)
	}
	if len(entries) != 0 {
		t.Fatalf("expected worktree rolled back after failed spawn, got %+v", entries)
	}
}
