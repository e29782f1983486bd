package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/legio/legio/internal/config"
	"github.com/legio/legio/internal/worktree"
)

var worktreeCmd = &cobra.Command{
	Use:     "worktree",
	GroupID: GroupOps,
	Short:   "Inspect and clean agent worktrees",
}

var worktreeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every agent worktree",
	RunE:  runWorktreeList,
}

var worktreeCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Prune worktrees left behind by removed branches",
	RunE:  runWorktreeClean,
}

func init() {
	worktreeCmd.AddCommand(worktreeListCmd, worktreeCleanCmd)
	rootCmd.AddCommand(worktreeCmd)
}

func runWorktreeList(cmd *cobra.Command, args []string) error {
	_, root, err := config.LoadFromCwd()
	if err != nil {
		return err
	}

	wt := worktree.New(root, "")
	entries, err := wt.List(context.Background())
	if err != nil {
		return err
	}

	if jsonOutput {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(entries)
	}
	for _, e := range entries {
		fmt.Printf("%s\t%s\n", e.Path, e.Branch)
	}
	return nil
}

func runWorktreeClean(cmd *cobra.Command, args []string) error {
	_, root, err := config.LoadFromCwd()
	if err != nil {
		return err
	}

	wt := worktree.New(root, "")
	if err := wt.Prune(context.Background()); err != nil {
		return err
	}
	fmt.Println("pruned stale worktrees")
	return nil
}
