package store

import (
	"context"
	"testing"
)

func TestEnqueueDequeueFIFO(t *testing.T) {
	s, err := OpenMergeQueueStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenMergeQueueStore: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if _, err := s.Enqueue(ctx, QueueEntry{Branch: "legio/scout-1/task-a", AgentName: "scout-1"}); err != nil {
		t.Fatalf("Enqueue a: %v", err)
	}
	if _, err := s.Enqueue(ctx, QueueEntry{Branch: "legio/builder-2/task-b", AgentName: "builder-2"}); err != nil {
		t.Fatalf("Enqueue b: %v", err)
	}

	first, err := s.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue first: %v", err)
	}
	if first.Branch != "legio/scout-1/task-a" {
		t.Fatalf("expected FIFO order, got %s first", first.Branch)
	}
	if first.Status != QueueMerging {
		t.Fatalf("expected dequeued entry marked merging, got %s", first.Status)
	}

	second, err := s.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue second: %v", err)
	}
	if second.Branch != "legio/builder-2/task-b" {
		t.Fatalf("expected second branch next, got %s", second.Branch)
	}

	if _, err := s.Dequeue(ctx); err == nil {
		t.Fatal("expected NotFound once queue is drained of pending entries")
	}
}

func TestEnqueueDuplicateBranchFails(t *testing.T) {
	s, err := OpenMergeQueueStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenMergeQueueStore: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	entry := QueueEntry{Branch: "legio/scout-1/task-a", AgentName: "scout-1"}
	if _, err := s.Enqueue(ctx, entry); err != nil {
		t.Fatalf("first Enqueue: %v", err)
	}
	if _, err := s.Enqueue(ctx, entry); err == nil {
		t.Fatal("expected duplicate branch enqueue to fail")
	}
}

func TestUpdateStatusUnknownBranch(t *testing.T) {
	s, err := OpenMergeQueueStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenMergeQueueStore: %v", err)
	}
	defer s.Close()

	if err := s.UpdateStatus(context.Background(), "no-such-branch", QueueMerged, TierCleanMerge); err == nil {
		t.Fatal("expected NotFound for unknown branch")
	}
}

func TestUpdateStatusMarksMergedWithTier(t *testing.T) {
	s, err := OpenMergeQueueStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenMergeQueueStore: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if _, err := s.Enqueue(ctx, QueueEntry{Branch: "legio/scout-1/task-a", AgentName: "scout-1"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := s.Dequeue(ctx); err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if err := s.UpdateStatus(ctx, "legio/scout-1/task-a", QueueMerged, TierAutoResolve); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	entries, err := s.List(ctx, QueueMerged)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].ResolvedTier != TierAutoResolve {
		t.Fatalf("expected one merged entry with auto-resolve tier, got %+v", entries)
	}
}

func TestRecentFailedTiersUsesMostRecentOutcomePerTier(t *testing.T) {
	s, err := OpenMergeQueueStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenMergeQueueStore: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	const file = "internal/server/routes.go"

	if err := s.RecordConflictOutcome(ctx, ConflictOutcome{FilePath: file, Tier: TierAutoResolve, Outcome: "failed"}); err != nil {
		t.Fatalf("RecordConflictOutcome 1: %v", err)
	}
	if err := s.RecordConflictOutcome(ctx, ConflictOutcome{FilePath: file, Tier: TierAutoResolve, Outcome: "success"}); err != nil {
		t.Fatalf("RecordConflictOutcome 2: %v", err)
	}

	failed, err := s.RecentFailedTiers(ctx, file)
	if err != nil {
		t.Fatalf("RecentFailedTiers: %v", err)
	}
	if failed[TierAutoResolve] {
		t.Fatal("expected most recent (successful) outcome to win, tier should not be marked failed")
	}
}
