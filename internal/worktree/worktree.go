// Package worktree manages per-agent git worktrees (spec §4.B "Worktree
// manager"). Each agent works in its own checkout at
// .legio/worktrees/{agentName}, on a branch named
// legio/{agentName}/{taskId}, so concurrent agents never collide on the
// primary checkout's index or working tree.
package worktree

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// BranchName returns the branch an agent's worktree is created on,
// following the legio/{agentName}/{taskId} convention (spec §3).
func BranchName(agentName, taskID string) string {
	return fmt.Sprintf("legio/%s/%s", agentName, taskID)
}

// Manager creates, lists, and removes worktrees under a project's
// .legio/worktrees directory.
type Manager struct {
	projectRoot string
	gitDir      string // the repo git operates against; defaults to projectRoot
}

// New returns a Manager rooted at projectRoot, operating git commands
// against gitDir (usually projectRoot itself).
func New(projectRoot, gitDir string) *Manager {
	if gitDir == "" {
		gitDir = projectRoot
	}
	return &Manager{projectRoot: projectRoot, gitDir: gitDir}
}

// Root returns the directory worktrees are created under.
func (m *Manager) Root() string {
	return filepath.Join(m.projectRoot, ".legio", "worktrees")
}

// PathFor returns the worktree path for an agent.
func (m *Manager) PathFor(agentName string) string {
	return filepath.Join(m.Root(), agentName)
}

func (m *Manager) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = m.gitDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// Create adds a new worktree for agentName on a fresh branch
// legio/{agentName}/{taskId}, branched from startPoint (typically the
// project's default branch or another agent's merged branch).
func (m *Manager) Create(ctx context.Context, agentName, taskID, startPoint string) (path, branch string, err error) {
	if err := os.MkdirAll(m.Root(), 0o755); err != nil {
		return "", "", fmt.Errorf("creating worktree root: %w", err)
	}
	path = m.PathFor(agentName)
	branch = BranchName(agentName, taskID)

	if _, err := m.git(ctx, "worktree", "add", "-b", branch, path, startPoint); err != nil {
		return "", "", fmt.Errorf("creating worktree for %s: %w", agentName, err)
	}
	return path, branch, nil
}

// Entry describes one git worktree as reported by `git worktree list`.
type Entry struct {
	Path   string
	Branch string
	HEAD   string
}

// List returns every legio-managed worktree for this repo: entries whose
// branch starts with the legio/ namespace prefix (spec §4.B), excluding
// the primary checkout and any worktree this manager didn't create.
func (m *Manager) List(ctx context.Context) ([]Entry, error) {
	out, err := m.git(ctx, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("listing worktrees: %w", err)
	}
	var entries []Entry
	for _, e := range parsePorcelain(out) {
		if strings.HasPrefix(e.Branch, "legio/") {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func parsePorcelain(out string) []Entry {
	var entries []Entry
	var cur Entry
	flush := func() {
		if cur.Path != "" {
			entries = append(entries, cur)
		}
		cur = Entry{}
	}
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.HasPrefix(line, "worktree "):
			flush()
			cur.Path = strings.TrimPrefix(line, "worktree ")
		case strings.HasPrefix(line, "HEAD "):
			cur.HEAD = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			cur.Branch = strings.TrimPrefix(strings.TrimPrefix(line, "branch "), "refs/heads/")
		}
	}
	flush()
	return entries
}

// Remove deletes an agent's worktree. force discards uncommitted changes
// in the worktree, matching git worktree remove --force.
func (m *Manager) Remove(ctx context.Context, agentName string, force bool) error {
	path := m.PathFor(agentName)
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)
	if _, err := m.git(ctx, args...); err != nil {
		return fmt.Errorf("removing worktree for %s: %w", agentName, err)
	}
	return nil
}

// Prune cleans up worktree administrative files for worktrees whose
// directories have been deleted outside of git (spec §6 "worktree clean").
func (m *Manager) Prune(ctx context.Context) error {
	if _, err := m.git(ctx, "worktree", "prune"); err != nil {
		return fmt.Errorf("pruning worktrees: %w", err)
	}
	return nil
}

// CopySeed copies arbitrary non-git seed state (e.g. an overlay directory)
// into a freshly created worktree, preserving permissions and symlinks via
// cp -a on unix / robocopy on windows.
func CopySeed(src, dest string) error {
	return copyDirPreserving(src, dest)
}
