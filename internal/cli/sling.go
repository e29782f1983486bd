package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/legio/legio/internal/config"
	"github.com/legio/legio/internal/lifecycle"
	"github.com/legio/legio/internal/logx"
	"github.com/legio/legio/internal/process"
	"github.com/legio/legio/internal/session"
	"github.com/legio/legio/internal/store"
	"github.com/legio/legio/internal/worktree"
)

var (
	slingTask   string
	slingParent string
)

var slingCmd = &cobra.Command{
	Use:     "sling <capability>",
	GroupID: GroupLifecycle,
	Short:   "Spawn a new agent session bound to a task",
	Args:    cobra.ExactArgs(1),
	RunE:    runSling,
}

func init() {
	slingCmd.Flags().StringVar(&slingTask, "task", "", "task id this agent works on")
	slingCmd.Flags().StringVar(&slingParent, "parent", "", "parent agent name, if this is a child spawn")
	slingCmd.MarkFlagRequired("task")
	rootCmd.AddCommand(slingCmd)
}

func runSling(cmd *cobra.Command, args []string) error {
	capability := session.Capability(args[0])

	cfg, root, err := config.LoadFromCwd()
	if err != nil {
		return err
	}

	log, err := logx.New(logx.Options{Level: cfg.Logging.Level})
	if err != nil {
		return err
	}
	defer log.Sync()

	dir := storeDirFor(root)
	sessions, err := store.OpenSessionStore(dir)
	if err != nil {
		return err
	}
	defer sessions.Close()

	events, err := store.OpenEventStore(dir)
	if err != nil {
		return err
	}
	defer events.Close()

	wt := worktree.New(root, "")
	tmux := process.New("tmux")

	engine := lifecycle.New(root, cfg.Project, sessions, events, wt, tmux, log.Sugar(), lifecycle.Config{
		MaxDepth:      cfg.Agents.MaxDepth,
		MaxConcurrent: cfg.Agents.MaxConcurrent,
		StaggerDelay:  cfg.StaggerDelay(),
		LLMCommand:    cfg.Models.AgentCommand,
	})

	var parentDepth int
	if slingParent != "" {
		parent, err := sessions.GetByName(context.Background(), slingParent)
		if err != nil {
			return fmt.Errorf("looking up parent %s: %w", slingParent, err)
		}
		parentDepth = parent.Depth + 1
	}

	sess, err := engine.Spawn(context.Background(), lifecycle.SpawnRequest{
		Capability:      capability,
		TaskID:          slingTask,
		ParentAgentName: slingParent,
		Depth:           parentDepth,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(sess)
	}
	fmt.Printf("spawned %s (%s) on branch %s\n", sess.AgentName, sess.Capability, sess.Branch)
	return nil
}
