package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/legio/legio/internal/config"
	"github.com/legio/legio/internal/lifecycle"
	"github.com/legio/legio/internal/logx"
	"github.com/legio/legio/internal/process"
	"github.com/legio/legio/internal/session"
	"github.com/legio/legio/internal/store"
	"github.com/legio/legio/internal/worktree"
)

// coordinatorAgentName is the well-known agent name the coordinator session
// runs under, matching the mail alias autopilot drains every tick.
const coordinatorAgentName = "coordinator"

var coordinatorAttach bool

var coordinatorCmd = &cobra.Command{
	Use:     "coordinator",
	GroupID: GroupLifecycle,
	Short:   "Start, stop, or inspect the coordinator agent session",
}

var coordinatorStartCmd = &cobra.Command{
	Use:  "start",
	RunE: runCoordinatorStart,
}

var coordinatorStopCmd = &cobra.Command{
	Use:  "stop",
	RunE: runCoordinatorStop,
}

var coordinatorStatusCmd = &cobra.Command{
	Use:  "status",
	RunE: runCoordinatorStatus,
}

func init() {
	coordinatorStartCmd.Flags().BoolVar(&coordinatorAttach, "attach", false, "attach to the coordinator's terminal session after starting it")

	coordinatorCmd.AddCommand(coordinatorStartCmd, coordinatorStopCmd, coordinatorStatusCmd)
	rootCmd.AddCommand(coordinatorCmd)
}

func runCoordinatorStart(cmd *cobra.Command, args []string) error {
	cfg, root, err := config.LoadFromCwd()
	if err != nil {
		return err
	}

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

	log, err := logx.New(logx.Options{Level: cfg.Logging.Level})
	if err != nil {
		return err
	}
	defer log.Sync()

	if existing, err := sessions.GetByName(context.Background(), coordinatorAgentName); err == nil && !existing.State.IsTerminal() {
		fmt.Println("coordinator already running:", existing.State)
		return nil
	}

	wt := worktree.New(root, "")
	tmux := process.New("tmux")
	engine := lifecycle.New(root, cfg.Project, sessions, events, wt, tmux, log.Sugar(), lifecycle.Config{
		MaxDepth:      cfg.Agents.MaxDepth,
		MaxConcurrent: cfg.Agents.MaxConcurrent,
		StaggerDelay:  cfg.StaggerDelay(),
		LLMCommand:    cfg.Models.AgentCommand,
	})

	sess, err := engine.Spawn(context.Background(), lifecycle.SpawnRequest{
		Capability: session.CapabilityCoordinator,
		TaskID:     "coordinator",
	})
	if err != nil {
		return err
	}

	if coordinatorAttach {
		tmuxSession := session.TmuxName(cfg.Project, sess.AgentName)
		fmt.Println("attach with: tmux attach -t", tmuxSession)
	}

	if jsonOutput {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(sess)
	}
	fmt.Println("coordinator started:", sess.AgentName)
	return nil
}

func runCoordinatorStop(cmd *cobra.Command, args []string) error {
	_, root, err := config.LoadFromCwd()
	if err != nil {
		return err
	}

	dir := storeDirFor(root)
	sessions, err := store.OpenSessionStore(dir)
	if err != nil {
		return err
	}
	defer sessions.Close()

	tmux := process.New("tmux")
	existing, err := sessions.GetByName(context.Background(), coordinatorAgentName)
	if err != nil {
		return fmt.Errorf("coordinator is not running: %w", err)
	}

	if err := tmux.KillSession(context.Background(), existing.TmuxSession); err != nil {
		return err
	}
	return sessions.MarkTerminal(context.Background(), coordinatorAgentName, store.StateCompleted, time.Now())
}

func runCoordinatorStatus(cmd *cobra.Command, args []string) error {
	_, root, err := config.LoadFromCwd()
	if err != nil {
		return err
	}

	dir := storeDirFor(root)
	sessions, err := store.OpenSessionStore(dir)
	if err != nil {
		return err
	}
	defer sessions.Close()

	existing, err := sessions.GetByName(context.Background(), coordinatorAgentName)
	if err != nil {
		fmt.Println("coordinator: not running")
		return nil
	}

	if jsonOutput {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(existing)
	}
	fmt.Printf("coordinator: %s (%s)\n", existing.AgentName, existing.State)
	return nil
}
