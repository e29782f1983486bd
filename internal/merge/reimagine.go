package merge

import (
	"context"

	"github.com/legio/legio/internal/store"
)

// attemptReimagine asks the external LLM tool to synthesize a resolution
// for each conflicted file, constrained to the conflict hunks (spec §4.G
// tier 3). It only runs for files with a prior successful AI resolution in
// conflict history — a fresh file with no history goes straight to the
// manual tier instead, per spec §4.G's tier-skip tie-break rule applied in
// reverse: reimagine requires history to engage, not just the absence of a
// failure.
func (r *Resolver) attemptReimagine(ctx context.Context, entry store.QueueEntry) (bool, error) {
	if r.triage == nil {
		return false, nil
	}

	ok, err := r.attemptCleanMerge(ctx, entry.Branch)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}

	conflicted, err := r.conflictedFiles(ctx)
	if err != nil {
		return false, err
	}
	if len(conflicted) == 0 {
		return false, nil
	}

	eligible, err := r.filesWithSuccessfulReimagineHistory(ctx, conflicted)
	if err != nil {
		return false, err
	}
	if len(eligible) != len(conflicted) {
		// Some conflicted file has never been successfully reimagined
		// before; don't let an LLM touch unfamiliar conflict shapes.
		return false, nil
	}

	for _, f := range conflicted {
		content, err := r.readWorkingFile(ctx, f)
		if err != nil {
			return false, err
		}
		resolved, ok := r.triage.ResolveConflict(ctx, f, content)
		if !ok {
			return false, nil
		}
		if err := r.writeWorkingFile(ctx, f, resolved); err != nil {
			return false, err
		}
		if _, _, err := r.git(ctx, "add", f); err != nil {
			return false, err
		}
	}

	if _, stderr, err := r.git(ctx, "commit", "--no-edit"); err != nil {
		return false, &gitCommandError{op: "committing reimagined merge", stderr: stderr, cause: err}
	}
	return r.verifyNoUncommittedTracked(ctx)
}

func (r *Resolver) filesWithSuccessfulReimagineHistory(ctx context.Context, files []string) ([]string, error) {
	var eligible []string
	for _, f := range files {
		has, err := r.queue.HasSuccessfulTierHistory(ctx, f, store.TierReimagine)
		if err != nil {
			return nil, err
		}
		if has {
			eligible = append(eligible, f)
		}
	}
	return eligible, nil
}
