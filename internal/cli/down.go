package cli

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/legio/legio/internal/config"
	"github.com/legio/legio/internal/lock"
)

var downCmd = &cobra.Command{
	Use:     "down",
	GroupID: GroupLifecycle,
	Short:   "Stop a running `legio up` orchestrator",
	RunE:    runDown,
}

func init() {
	rootCmd.AddCommand(downCmd)
}

func runDown(cmd *cobra.Command, args []string) error {
	_, root, err := config.LoadFromCwd()
	if err != nil {
		return err
	}

	dir := storeDirFor(root)
	l := lock.New(orchestratorLockDir(dir))
	info, err := l.Read()
	if err != nil {
		return fmt.Errorf("no running orchestrator found: %w", err)
	}
	if info.IsStale() {
		fmt.Println("orchestrator already stopped")
		return l.ForceRelease()
	}

	if err := syscall.Kill(info.PID, syscall.SIGTERM); err != nil {
		return fmt.Errorf("stopping orchestrator (pid %d): %w", info.PID, err)
	}
	fmt.Println("sent shutdown signal to orchestrator (pid", info.PID, ")")
	return nil
}
