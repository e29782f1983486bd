package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/legio/legio/internal/config"
	"github.com/legio/legio/internal/util"
	"github.com/legio/legio/internal/worktree"
)

var (
	cleanAll       bool
	cleanMail      bool
	cleanSessions  bool
	cleanMetrics   bool
	cleanLogs      bool
	cleanWorktrees bool
	cleanBranches  bool
	cleanAgents    bool
	cleanSpecs     bool
)

var cleanCmd = &cobra.Command{
	Use:     "clean",
	GroupID: GroupOps,
	Short:   "Remove local project state",
	RunE:    runClean,
}

func init() {
	cleanCmd.Flags().BoolVar(&cleanAll, "all", false, "remove everything below")
	cleanCmd.Flags().BoolVar(&cleanMail, "mail", false, "remove mail.db")
	cleanCmd.Flags().BoolVar(&cleanSessions, "sessions", false, "remove sessions.db")
	cleanCmd.Flags().BoolVar(&cleanMetrics, "metrics", false, "remove metrics.db")
	cleanCmd.Flags().BoolVar(&cleanLogs, "logs", false, "remove logs/")
	cleanCmd.Flags().BoolVar(&cleanWorktrees, "worktrees", false, "prune stale git worktrees")
	cleanCmd.Flags().BoolVar(&cleanBranches, "branches", false, "delete merged legio/* branches with no worktree")
	cleanCmd.Flags().BoolVar(&cleanAgents, "agents", false, "remove agents/ identity and checkpoint state")
	cleanCmd.Flags().BoolVar(&cleanSpecs, "specs", false, "remove agent-defs/ capability templates")
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	_, root, err := config.LoadFromCwd()
	if err != nil {
		return err
	}
	dir := storeDirFor(root)

	if cleanMail || cleanAll {
		removeAndReport(cmd, filepath.Join(dir, "mail.db"))
	}
	if cleanSessions || cleanAll {
		removeAndReport(cmd, filepath.Join(dir, "sessions.db"))
	}
	if cleanMetrics || cleanAll {
		removeAndReport(cmd, filepath.Join(dir, "metrics.db"))
	}
	if cleanLogs || cleanAll {
		removeAndReport(cmd, filepath.Join(dir, "logs"))
	}
	if cleanAgents || cleanAll {
		removeAndReport(cmd, filepath.Join(dir, "agents"))
	}
	if cleanSpecs || cleanAll {
		removeAndReport(cmd, filepath.Join(dir, "agent-defs"))
	}
	if cleanWorktrees || cleanAll {
		wt := worktree.New(root, "")
		if err := wt.Prune(context.Background()); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "pruning worktrees:", err)
		} else {
			fmt.Println("pruned stale worktrees")
		}
	}
	if cleanBranches || cleanAll {
		if err := cleanMergedBranches(root); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "cleaning branches:", err)
		}
	}
	return nil
}

// cleanMergedBranches deletes local legio/* branches that have no
// worktree checked out and are fully merged into the current branch.
func cleanMergedBranches(root string) error {
	out, err := util.ExecWithOutput(root, "git", "branch", "--merged", "--list", "legio/*")
	if err != nil {
		return fmt.Errorf("listing merged legio branches: %w", err)
	}
	for _, line := range strings.Split(out, "\n") {
		branch := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "*"))
		if branch == "" {
			continue
		}
		if err := util.ExecRun(root, "git", "branch", "-d", branch); err != nil {
			fmt.Println("skipping", branch, ":", err)
			continue
		}
		fmt.Println("deleted branch", branch)
	}
	return nil
}

func removeAndReport(cmd *cobra.Command, path string) {
	if err := os.RemoveAll(path); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "removing", path, ":", err)
		return
	}
	fmt.Println("removed", path)
}
