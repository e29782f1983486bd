package merge

import (
	"bufio"
	"context"
	"strings"

	"github.com/legio/legio/internal/store"
)

const (
	conflictStartMarker = "<<<<<<<"
	conflictMidMarker   = "======="
	conflictEndMarker   = ">>>>>>>"
)

// conflictHunk is one <<<<<<</=======/>>>>>>> region of a conflicted file.
type conflictHunk struct {
	ours   []string
	theirs []string
}

// splitConflictHunks parses a conflicted file's text into its conflict
// hunks in a single marker-aware pass, reporting whether any were found;
// the non-conflicted lines around them are not returned.
func splitConflictHunks(content string) (hunks []conflictHunk, hasConflict bool) {
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var cur *conflictHunk
	inOurs := false
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, conflictStartMarker):
			cur = &conflictHunk{}
			inOurs = true
		case strings.HasPrefix(line, conflictMidMarker) && cur != nil:
			inOurs = false
		case strings.HasPrefix(line, conflictEndMarker) && cur != nil:
			hunks = append(hunks, *cur)
			cur = nil
		case cur != nil:
			if inOurs {
				cur.ours = append(cur.ours, line)
			} else {
				cur.theirs = append(cur.theirs, line)
			}
		}
	}
	return hunks, len(hunks) > 0
}

// deterministicResolution attempts to resolve a single hunk without any
// LLM involvement, per spec §4.G tier 2: whitespace-only differences,
// identical-both-sides conflicts, or strict additions in disjoint regions.
func deterministicResolution(h conflictHunk) (resolved []string, ok bool) {
	if linesEqualIgnoringWhitespace(h.ours, h.theirs) {
		return h.ours, true
	}
	if oneSideEmpty(h.ours) {
		return h.theirs, true
	}
	if oneSideEmpty(h.theirs) {
		return h.ours, true
	}
	// Strict addition in disjoint regions: one side is a superset that
	// simply appends to the other, so unioning is non-destructive.
	if isPrefixOf(h.ours, h.theirs) {
		return h.theirs, true
	}
	if isPrefixOf(h.theirs, h.ours) {
		return h.ours, true
	}
	return nil, false
}

func linesEqualIgnoringWhitespace(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if strings.TrimSpace(a[i]) != strings.TrimSpace(b[i]) {
			return false
		}
	}
	return true
}

func oneSideEmpty(side []string) bool {
	for _, l := range side {
		if strings.TrimSpace(l) != "" {
			return false
		}
	}
	return true
}

func isPrefixOf(short, long []string) bool {
	if len(short) > len(long) {
		return false
	}
	for i := range short {
		if short[i] != long[i] {
			return false
		}
	}
	return true
}

// attemptAutoResolve resolves a conflicted merge deterministically when
// every conflict hunk in every conflicted file qualifies (spec §4.G tier
// 2). Any hunk it cannot resolve deterministically causes the whole
// attempt to fail, leaving the conflict for the next tier.
func (r *Resolver) attemptAutoResolve(ctx context.Context, entry store.QueueEntry) (bool, error) {
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

	for _, f := range conflicted {
		content, err := r.readWorkingFile(ctx, f)
		if err != nil {
			return false, err
		}
		resolved, resolvedOK := resolveFileDeterministically(content)
		if !resolvedOK {
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
		return false, &gitCommandError{op: "committing auto-resolved merge", stderr: stderr, cause: err}
	}
	return r.verifyNoUncommittedTracked(ctx)
}

// resolveFileDeterministically replaces every conflict hunk in content
// with its deterministic resolution, failing if any hunk cannot be
// resolved this way.
func resolveFileDeterministically(content string) (string, bool) {
	hunks, hasConflict := splitConflictHunks(content)
	if !hasConflict {
		return content, true
	}

	lines := strings.Split(content, "\n")
	var out []string
	hunkIdx := 0
	inConflict := false
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, conflictStartMarker):
			inConflict = true
		case strings.HasPrefix(line, conflictEndMarker) && inConflict:
			inConflict = false
			resolved, ok := deterministicResolution(hunks[hunkIdx])
			if !ok {
				return "", false
			}
			out = append(out, resolved...)
			hunkIdx++
		case inConflict:
			// consumed by splitConflictHunks already; skip raw marker lines
		default:
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n"), true
}

type gitCommandError struct {
	op     string
	stderr string
	cause  error
}

func (e *gitCommandError) Error() string {
	return e.op + ": " + e.cause.Error() + ": " + e.stderr
}

func (e *gitCommandError) Unwrap() error { return e.cause }
