package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/legio/legio/internal/config"
	"github.com/legio/legio/internal/mail"
	"github.com/legio/legio/internal/merge"
	"github.com/legio/legio/internal/store"
	"github.com/legio/legio/internal/triage"
)

var (
	mergeBranch string
	mergeInto   string
)

var mergeCmd = &cobra.Command{
	Use:     "merge",
	GroupID: GroupOps,
	Short:   "Integrate one merge-queue entry into its target branch",
	RunE:    runMerge,
}

func init() {
	mergeCmd.Flags().StringVar(&mergeBranch, "branch", "", "branch to merge; defaults to the next pending queue entry")
	mergeCmd.Flags().StringVar(&mergeInto, "into", "", "explicit merge target, overriding session-branch.txt and the canonical branch")
	rootCmd.AddCommand(mergeCmd)
}

// sessionBranchFile reads the per-session merge target override written at
// session start (spec §6 on-disk layout: session-branch.txt).
func sessionBranchFile(root string) string {
	b, err := os.ReadFile(filepath.Join(root, ".legio", "session-branch.txt"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func runMerge(cmd *cobra.Command, args []string) error {
	cfg, root, err := config.LoadFromCwd()
	if err != nil {
		return err
	}

	dir := storeDirFor(root)
	queue, err := store.OpenMergeQueueStore(dir)
	if err != nil {
		return err
	}
	defer queue.Close()

	ctx := context.Background()

	var entry store.QueueEntry
	if mergeBranch != "" {
		entry, err = queue.ClaimByBranch(ctx, mergeBranch)
	} else {
		entry, err = queue.Dequeue(ctx)
	}
	if err != nil {
		return fmt.Errorf("selecting merge-queue entry: %w", err)
	}

	target, err := merge.Target(mergeInto, sessionBranchFile(root), cfg.Worktrees.CanonicalBranch)
	if err != nil {
		return err
	}

	mailStore, err := store.OpenMailStore(dir)
	if err != nil {
		return err
	}
	defer mailStore.Close()

	sessions, err := store.OpenSessionStore(dir)
	if err != nil {
		return err
	}
	defer sessions.Close()

	triager := triage.New(cfg.Models.TriageCommand, cfg.Models.TriageArgs)
	notifier := newMailNotifier(mail.NewRouter(mailStore, sessions))

	resolver := merge.New(queue, root, triager, notifier)
	tier, err := resolver.Resolve(ctx, entry, target)

	if jsonOutput {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{
			"branch": entry.Branch,
			"target": target,
			"tier":   string(tier),
			"error":  errString(err),
		})
	}
	if err != nil {
		return err
	}
	fmt.Printf("merged %s into %s via %s\n", entry.Branch, target, tier)
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
