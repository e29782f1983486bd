package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/legio/legio/internal/config"
	"github.com/legio/legio/internal/nudge"
	"github.com/legio/legio/internal/process"
	"github.com/legio/legio/internal/session"
	"github.com/legio/legio/internal/store"
)

var nudgeForce bool

var nudgeCmd = &cobra.Command{
	Use:     "nudge <agent> [message]",
	GroupID: GroupComms,
	Short:   "Send a re-prompt directly into an agent's terminal session",
	Args:    cobra.RangeArgs(1, 2),
	RunE:    runNudge,
}

func init() {
	nudgeCmd.Flags().BoolVar(&nudgeForce, "force", false, "bypass the debounce window")
	rootCmd.AddCommand(nudgeCmd)
}

func runNudge(cmd *cobra.Command, args []string) error {
	cfg, root, err := config.LoadFromCwd()
	if err != nil {
		return err
	}

	agentName := args[0]
	text := "please continue"
	if len(args) == 2 {
		text = args[1]
	}

	dir := storeDirFor(root)
	events, err := store.OpenEventStore(dir)
	if err != nil {
		return err
	}
	defer events.Close()

	tmux := process.New("tmux")
	dispatcher := nudge.New(tmux, events)

	tmuxSession := session.TmuxName(cfg.Project, agentName)
	result := dispatcher.Nudge(context.Background(), agentName, tmuxSession, text, nudgeForce)

	if jsonOutput {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(result)
	}
	if !result.Delivered {
		return fmt.Errorf("nudge not delivered: %s", strings.TrimSpace(result.Reason))
	}
	fmt.Println("nudged", agentName)
	return nil
}
