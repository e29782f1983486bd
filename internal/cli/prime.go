package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/legio/legio/internal/config"
	"github.com/legio/legio/internal/overlay"
	"github.com/legio/legio/internal/session"
	"github.com/legio/legio/internal/store"
)

var (
	primeAgent   string
	primeCompact bool
)

var primeCmd = &cobra.Command{
	Use:     "prime",
	GroupID: GroupLifecycle,
	Short:   "Re-render an agent's worktree instruction file from its current state",
	RunE:    runPrime,
}

func init() {
	primeCmd.Flags().StringVar(&primeAgent, "agent", "", "agent to re-prime")
	primeCmd.Flags().BoolVar(&primeCompact, "compact", false, "brief from the saved checkpoint instead of full history, for resume-after-compaction")
	primeCmd.MarkFlagRequired("agent")
	rootCmd.AddCommand(primeCmd)
}

func runPrime(cmd *cobra.Command, args []string) error {
	_, root, err := config.LoadFromCwd()
	if err != nil {
		return err
	}

	sessions, err := store.OpenSessionStore(storeDirFor(root))
	if err != nil {
		return err
	}
	defer sessions.Close()

	sess, err := sessions.GetByName(cmd.Context(), primeAgent)
	if err != nil {
		return fmt.Errorf("looking up %s: %w", primeAgent, err)
	}

	capability := session.Capability(sess.Capability)
	doc, err := overlay.LoadCapabilityDoc(root, capability)
	if err != nil {
		return err
	}

	activation := ""
	if primeCompact {
		cp, ok, err := overlay.LoadCheckpoint(root, primeAgent)
		if err != nil {
			return err
		}
		if ok {
			activation = fmt.Sprintf("Resuming from checkpoint.\nProgress: %s\nPending: %s", cp.Progress, cp.PendingWork)
		}
	}

	o := overlay.Overlay{
		AgentName:          sess.AgentName,
		Capability:         capability,
		TaskID:             sess.TaskID,
		ParentAgentName:    sess.ParentAgentName,
		Depth:              sess.Depth,
		CapabilityDoc:      doc,
		ActivationContext: activation,
	}
	if err := overlay.Write(sess.WorktreePath, o); err != nil {
		return err
	}
	fmt.Println("primed", sess.AgentName)
	return nil
}
