package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/legio/legio/internal/config"
	"github.com/legio/legio/internal/store"
)

var statusVerbose bool

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: GroupInfo,
	Short:   "Show active agent sessions",
	RunE:    runStatus,
}

func init() {
	statusCmd.Flags().BoolVarP(&statusVerbose, "verbose", "v", false, "include worktree and branch detail")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	_, root, err := config.LoadFromCwd()
	if err != nil {
		return err
	}

	sessions, err := store.OpenSessionStore(storeDirFor(root))
	if err != nil {
		return err
	}
	defer sessions.Close()

	active, err := sessions.GetActive(context.Background())
	if err != nil {
		return err
	}

	if jsonOutput {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(active)
	}

	if len(active) == 0 {
		fmt.Println("no active sessions")
		return nil
	}
	for _, s := range active {
		if statusVerbose {
			fmt.Printf("%s\t%s\t%s\t%s\t%s\n", s.AgentName, s.Capability, s.State, s.Branch, s.WorktreePath)
		} else {
			fmt.Printf("%s\t%s\t%s\n", s.AgentName, s.Capability, s.State)
		}
	}
	return nil
}
