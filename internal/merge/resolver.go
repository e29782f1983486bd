// Package merge implements the tiered merge resolver (spec §4.G): one
// queue entry is integrated at a time, trying clean-merge, then
// auto-resolve, then reimagine, then falling back to manual escalation.
package merge

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/legio/legio/internal/legioerr"
	"github.com/legio/legio/internal/store"
)

// Triager synthesizes a conflict-hunk resolution via an external LLM tool
// (the "reimagine" tier). Implemented by internal/triage in production;
// kept as an interface here so the resolver has no direct CLI dependency.
type Triager interface {
	ResolveConflict(ctx context.Context, filePath, conflictedContent string) (resolved string, ok bool)
}

// Notifier sends the merge_failed/escalation mail on manual fallback.
// Best-effort: a Notifier failure must never block a status transition
// (spec §4.G "Failure semantics").
type Notifier interface {
	NotifyMergeFailed(ctx context.Context, branch string, tier store.Tier, reason string)
}

// Resolver integrates one merge-queue entry at a time into a target
// branch.
type Resolver struct {
	queue    *store.MergeQueueStore
	gitDir   string
	triage   Triager
	notifier Notifier
}

// New returns a Resolver operating git commands against gitDir.
func New(queue *store.MergeQueueStore, gitDir string, triage Triager, notifier Notifier) *Resolver {
	return &Resolver{queue: queue, gitDir: gitDir, triage: triage, notifier: notifier}
}

func (r *Resolver) git(ctx context.Context, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.gitDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// Target resolves the branch a merge integrates into: explicit override >
// a per-session branch file written at session start > the project's
// canonical branch (spec §4.G).
func Target(explicitInto, sessionBranchFile, canonicalBranch string) (string, error) {
	if explicitInto != "" {
		return explicitInto, nil
	}
	if sessionBranchFile != "" {
		return sessionBranchFile, nil
	}
	if canonicalBranch == "" {
		return "", fmt.Errorf("resolving merge target: no explicit, session, or canonical branch available")
	}
	return canonicalBranch, nil
}

// Resolve attempts to integrate entry into targetBranch, trying each tier
// in order and recording a conflict-history row per attempt. It returns the
// tier that succeeded, or an error describing the manual-fallback state.
func (r *Resolver) Resolve(ctx context.Context, entry store.QueueEntry, targetBranch string) (store.Tier, error) {
	if err := r.checkoutClean(ctx, targetBranch); err != nil {
		return "", legioerr.Merge(entry.Branch, "", err)
	}

	skip, err := r.skippedTiers(ctx, entry.FilesModified)
	if err != nil {
		return "", legioerr.Merge(entry.Branch, "", err)
	}

	for _, tier := range []store.Tier{store.TierCleanMerge, store.TierAutoResolve, store.TierReimagine} {
		if skip[tier] {
			continue
		}
		ok, err := r.attempt(ctx, tier, entry, targetBranch)
		if err != nil {
			return "", legioerr.Merge(entry.Branch, string(tier), err)
		}
		if ok {
			r.recordOutcome(ctx, entry.FilesModified, tier, "success", "")
			if err := r.queue.UpdateStatus(ctx, entry.Branch, store.QueueMerged, tier); err != nil {
				return tier, fmt.Errorf("marking %s merged: %w", entry.Branch, err)
			}
			return tier, nil
		}
		r.recordOutcome(ctx, entry.FilesModified, tier, "failed", "")
		r.abortMerge(ctx)
	}

	if err := r.queue.UpdateStatus(ctx, entry.Branch, store.QueueFailed, store.TierManual); err != nil {
		return "", fmt.Errorf("marking %s failed: %w", entry.Branch, err)
	}
	if r.notifier != nil {
		r.notifier.NotifyMergeFailed(ctx, entry.Branch, store.TierManual, "all automated tiers exhausted")
	}
	return store.TierManual, legioerr.Merge(entry.Branch, string(store.TierManual), fmt.Errorf("left in conflict state for manual resolution"))
}

// skippedTiers computes, for the set of files a merge touches, the tiers
// that should be skipped because they most recently failed on at least one
// of those files (spec §4.G "tie-breaks").
func (r *Resolver) skippedTiers(ctx context.Context, files []string) (map[store.Tier]bool, error) {
	skip := map[store.Tier]bool{}
	for _, f := range files {
		failed, err := r.queue.RecentFailedTiers(ctx, f)
		if err != nil {
			return nil, err
		}
		for tier, isFailed := range failed {
			if isFailed {
				skip[tier] = true
			}
		}
	}
	return skip, nil
}

func (r *Resolver) recordOutcome(ctx context.Context, files []string, tier store.Tier, outcome, strategy string) {
	for _, f := range files {
		_ = r.queue.RecordConflictOutcome(ctx, store.ConflictOutcome{
			FilePath: f, Tier: tier, Outcome: outcome, Strategy: strategy,
		})
	}
}

func (r *Resolver) checkoutClean(ctx context.Context, branch string) error {
	if _, stderr, err := r.git(ctx, "checkout", branch); err != nil {
		return fmt.Errorf("checking out %s: %w: %s", branch, err, stderr)
	}
	status, _, err := r.git(ctx, "status", "--porcelain")
	if err != nil {
		return fmt.Errorf("checking working tree status: %w", err)
	}
	if strings.TrimSpace(status) != "" {
		return fmt.Errorf("working tree for %s has uncommitted changes; refusing to merge", branch)
	}
	return nil
}

func (r *Resolver) abortMerge(ctx context.Context) {
	_, _, _ = r.git(ctx, "merge", "--abort")
}

func (r *Resolver) attempt(ctx context.Context, tier store.Tier, entry store.QueueEntry, targetBranch string) (bool, error) {
	switch tier {
	case store.TierCleanMerge:
		return r.attemptCleanMerge(ctx, entry.Branch)
	case store.TierAutoResolve:
		return r.attemptAutoResolve(ctx, entry)
	case store.TierReimagine:
		return r.attemptReimagine(ctx, entry)
	default:
		return false, fmt.Errorf("unknown tier %s", tier)
	}
}

func (r *Resolver) attemptCleanMerge(ctx context.Context, branch string) (bool, error) {
	_, stderr, err := r.git(ctx, "merge", "--no-ff", "--no-edit", branch)
	if err == nil {
		return r.verifyNoUncommittedTracked(ctx)
	}
	if strings.Contains(stderr, "CONFLICT") || strings.Contains(stderr, "Automatic merge failed") {
		return false, nil
	}
	return false, fmt.Errorf("merging %s: %w: %s", branch, err, stderr)
}

// verifyNoUncommittedTracked guards spec §4.G's "a merge that changes the
// working tree but leaves uncommitted tracked changes is treated as
// failure and rolled back".
func (r *Resolver) verifyNoUncommittedTracked(ctx context.Context) (bool, error) {
	status, _, err := r.git(ctx, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("verifying merge result: %w", err)
	}
	if strings.TrimSpace(status) != "" {
		r.abortMerge(ctx)
		_, _, _ = r.git(ctx, "reset", "--hard", "HEAD")
		return false, nil
	}
	return true, nil
}
