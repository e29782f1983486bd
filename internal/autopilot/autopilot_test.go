package autopilot

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/legio/legio/internal/merge"
	"github.com/legio/legio/internal/store"
)

func TestExtractBranchPrefersPayload(t *testing.T) {
	m := store.Message{
		Subject: "merge ready",
		Body:    "no branch mentioned here",
		Payload: `{"branch":"legio/builder-1/task-1"}`,
	}
	if got := extractBranch(m); got != "legio/builder-1/task-1" {
		t.Fatalf("extractBranch() = %q, want legio/builder-1/task-1", got)
	}
}

func TestExtractBranchFallsBackToSubjectThenBody(t *testing.T) {
	m := store.Message{Subject: "merge ready: legio/builder-2/task-2"}
	if got := extractBranch(m); got != "legio/builder-2/task-2" {
		t.Fatalf("extractBranch() subject fallback = %q", got)
	}

	m = store.Message{Subject: "merge ready", Body: "please merge legio/builder-3/task-3 now"}
	if got := extractBranch(m); got != "legio/builder-3/task-3" {
		t.Fatalf("extractBranch() body fallback = %q", got)
	}
}

func TestExtractBranchReturnsEmptyWhenNothingMatches(t *testing.T) {
	m := store.Message{Subject: "merge ready", Body: "go ahead"}
	if got := extractBranch(m); got != "" {
		t.Fatalf("extractBranch() = %q, want empty", got)
	}
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v: %s", args, err, out)
	}
}

func initMergeRepo(t *testing.T) string {
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

func TestTickRecordsActionForErrorAndEscalationMail(t *testing.T) {
	dir := t.TempDir()
	mailStore, err := store.OpenMailStore(dir)
	if err != nil {
		t.Fatalf("OpenMailStore: %v", err)
	}
	t.Cleanup(func() { mailStore.Close() })

	ctx := context.Background()
	if _, err := mailStore.Insert(ctx, store.Message{From: "builder-1", To: "coordinator", Type: store.MsgError, Subject: "build broke"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := mailStore.Insert(ctx, store.Message{From: "builder-2", To: "orchestrator", Type: store.MsgEscalation, Subject: "stuck"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	a := New(mailStore, nil, nil, nil, nil, nil, Config{})
	a.Tick(ctx)

	state := a.GetState()
	if len(state.Actions) != 2 {
		t.Fatalf("expected 2 recorded actions, got %d: %+v", len(state.Actions), state.Actions)
	}
	if state.TickCount != 1 {
		t.Fatalf("expected tick count 1, got %d", state.TickCount)
	}

	unread, err := mailStore.GetUnread(ctx, "coordinator")
	if err != nil {
		t.Fatalf("GetUnread: %v", err)
	}
	if len(unread) != 0 {
		t.Fatal("expected error mail marked read after handling")
	}
}

func TestTickIgnoresMergeReadyWhenAutoMergeDisabled(t *testing.T) {
	dir := t.TempDir()
	mailStore, err := store.OpenMailStore(dir)
	if err != nil {
		t.Fatalf("OpenMailStore: %v", err)
	}
	t.Cleanup(func() { mailStore.Close() })

	ctx := context.Background()
	if _, err := mailStore.Insert(ctx, store.Message{
		From: "builder-1", To: "coordinator", Type: store.MsgMergeReady,
		Subject: "merge ready", Payload: `{"branch":"legio/builder-1/task-1"}`,
	}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	a := New(mailStore, nil, nil, nil, nil, nil, Config{AutoMerge: false})
	a.Tick(ctx)

	state := a.GetState()
	if len(state.Actions) != 0 {
		t.Fatalf("expected no actions recorded with autoMerge disabled, got %+v", state.Actions)
	}
	unread, err := mailStore.GetUnread(ctx, "coordinator")
	if err != nil {
		t.Fatalf("GetUnread: %v", err)
	}
	if len(unread) != 0 {
		t.Fatal("expected merge_ready mail marked read even without auto-merge")
	}
}

func TestTickMergesReadyBranchWhenAutoMergeEnabled(t *testing.T) {
	repoDir := initMergeRepo(t)
	runGit(t, repoDir, "checkout", "-b", "legio/builder-1/task-1")
	if err := os.WriteFile(filepath.Join(repoDir, "feature.txt"), []byte("new feature\n"), 0644); err != nil {
		t.Fatalf("writing feature file: %v", err)
	}
	runGit(t, repoDir, "add", "feature.txt")
	runGit(t, repoDir, "commit", "-m", "add feature")
	runGit(t, repoDir, "checkout", "main")

	storesDir := t.TempDir()
	mailStore, err := store.OpenMailStore(storesDir)
	if err != nil {
		t.Fatalf("OpenMailStore: %v", err)
	}
	t.Cleanup(func() { mailStore.Close() })

	queue, err := store.OpenMergeQueueStore(storesDir)
	if err != nil {
		t.Fatalf("OpenMergeQueueStore: %v", err)
	}
	t.Cleanup(func() { queue.Close() })

	ctx := context.Background()
	if _, err := queue.Enqueue(ctx, store.QueueEntry{Branch: "legio/builder-1/task-1", AgentName: "builder-1"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := mailStore.Insert(ctx, store.Message{
		From: "builder-1", To: "coordinator", Type: store.MsgMergeReady,
		Subject: "merge ready", Payload: `{"branch":"legio/builder-1/task-1"}`,
	}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	resolver := merge.New(queue, repoDir, nil, nil)
	a := New(mailStore, queue, nil, resolver, nil, nil, Config{AutoMerge: true, CanonicalBranch: "main"})
	a.Tick(ctx)

	state := a.GetState()
	if len(state.Actions) != 1 || state.Actions[0].Type != "merge" {
		t.Fatalf("expected a merge action, got %+v", state.Actions)
	}

	entries, err := queue.List(ctx, store.QueueMerged)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected branch marked merged, got %+v", entries)
	}
}

func TestCheckStalledAssignmentsEscalatesStaleBoundTask(t *testing.T) {
	dir := t.TempDir()
	mailStore, err := store.OpenMailStore(dir)
	if err != nil {
		t.Fatalf("OpenMailStore: %v", err)
	}
	t.Cleanup(func() { mailStore.Close() })

	sessions, err := store.OpenSessionStore(dir)
	if err != nil {
		t.Fatalf("OpenSessionStore: %v", err)
	}
	t.Cleanup(func() { sessions.Close() })

	ctx := context.Background()
	stale := store.Session{
		ID:           "sess-builder-1",
		AgentName:    "builder-1",
		State:        store.StateWorking,
		TaskID:       "task-1",
		LastActivity: time.Now().Add(-time.Hour),
	}
	coordinator := store.Session{
		ID:           "sess-coordinator",
		AgentName:    "coordinator",
		Capability:   "coordinator",
		State:        store.StateWorking,
		LastActivity: time.Now(),
	}
	if err := sessions.Upsert(ctx, stale); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := sessions.Upsert(ctx, coordinator); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	a := New(mailStore, nil, sessions, nil, nil, nil, Config{AssignmentStallTimeout: time.Minute})
	a.CheckStalledAssignments(ctx)

	unread, err := mailStore.GetUnread(ctx, "coordinator")
	if err != nil {
		t.Fatalf("GetUnread: %v", err)
	}
	if len(unread) != 1 || unread[0].Type != store.MsgEscalation {
		t.Fatalf("expected one escalation mail to coordinator, got %+v", unread)
	}

	got, err := sessions.GetByName(ctx, "builder-1")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if got.EscalationLevel != 1 {
		t.Fatalf("expected escalation level bumped to 1, got %d", got.EscalationLevel)
	}

	state := a.GetState()
	if len(state.Actions) != 1 || state.Actions[0].Type != "stalled_assignment" {
		t.Fatalf("expected a stalled_assignment action, got %+v", state.Actions)
	}
}

func TestCheckStalledAssignmentsSkipsRecentActivityAndTerminalSessions(t *testing.T) {
	dir := t.TempDir()
	mailStore, err := store.OpenMailStore(dir)
	if err != nil {
		t.Fatalf("OpenMailStore: %v", err)
	}
	t.Cleanup(func() { mailStore.Close() })

	sessions, err := store.OpenSessionStore(dir)
	if err != nil {
		t.Fatalf("OpenSessionStore: %v", err)
	}
	t.Cleanup(func() { sessions.Close() })

	ctx := context.Background()
	fresh := store.Session{
		ID:           "sess-builder-1",
		AgentName:    "builder-1",
		State:        store.StateWorking,
		TaskID:       "task-1",
		LastActivity: time.Now(),
	}
	terminal := store.Session{
		ID:           "sess-builder-2",
		AgentName:    "builder-2",
		State:        store.StateCompleted,
		TaskID:       "task-2",
		LastActivity: time.Now().Add(-time.Hour),
	}
	if err := sessions.Upsert(ctx, fresh); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := sessions.Upsert(ctx, terminal); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	a := New(mailStore, nil, sessions, nil, nil, nil, Config{AssignmentStallTimeout: time.Minute})
	a.CheckStalledAssignments(ctx)

	unread, err := mailStore.GetUnread(ctx, "coordinator")
	if err != nil {
		t.Fatalf("GetUnread: %v", err)
	}
	if len(unread) != 0 {
		t.Fatalf("expected no escalation mail, got %+v", unread)
	}
}

func TestCheckStalledAssignmentsNoOpWhenTimeoutUnset(t *testing.T) {
	dir := t.TempDir()
	mailStore, err := store.OpenMailStore(dir)
	if err != nil {
		t.Fatalf("OpenMailStore: %v", err)
	}
	t.Cleanup(func() { mailStore.Close() })

	sessions, err := store.OpenSessionStore(dir)
	if err != nil {
		t.Fatalf("OpenSessionStore: %v", err)
	}
	t.Cleanup(func() { sessions.Close() })

	a := New(mailStore, nil, sessions, nil, nil, nil, Config{})
	a.CheckStalledAssignments(context.Background())

	state := a.GetState()
	if len(state.Actions) != 0 {
		t.Fatalf("expected no actions when AssignmentStallTimeout unset, got %+v", state.Actions)
	}
}
