package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/legio/legio/internal/config"
	"github.com/legio/legio/internal/workspace"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:     "init",
	GroupID: GroupLifecycle,
	Short:   "Scaffold .legio/ in the current directory",
	RunE:    runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "reinitialize even if .legio already exists")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	root, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}

	if already, err := workspace.IsWorkspace(root); err == nil && already && !initForce {
		fmt.Println(".legio already initialized (use --force to reinitialize)")
		return nil
	}

	cfg := config.Defaults()
	if err := config.Save(root, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	for _, dir := range []string{
		cfg.WorktreesRoot(root),
		root + "/.legio/agents",
		root + "/.legio/agent-defs",
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	fmt.Println("initialized .legio/ in", root)
	return nil
}
