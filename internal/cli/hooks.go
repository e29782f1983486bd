package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/legio/legio/internal/config"
	"github.com/legio/legio/internal/util"
)

var hooksForce bool

var hooksCmd = &cobra.Command{
	Use:     "hooks",
	GroupID: GroupLifecycle,
	Short:   "Manage the agent runtime's lifecycle hook registrations",
}

var hooksInstallCmd = &cobra.Command{Use: "install", RunE: runHooksInstall}
var hooksUninstallCmd = &cobra.Command{Use: "uninstall", RunE: runHooksUninstall}
var hooksStatusCmd = &cobra.Command{Use: "status", RunE: runHooksStatus}

func init() {
	hooksInstallCmd.Flags().BoolVar(&hooksForce, "force", false, "overwrite an existing hooks.json")
	hooksCmd.AddCommand(hooksInstallCmd, hooksUninstallCmd, hooksStatusCmd)
	rootCmd.AddCommand(hooksCmd)
}

// hookRegistration is one entry in hooks.json (spec §6 on-disk layout:
// "hooks.json # per-event command hooks"), naming the command the agent
// runtime must invoke for one lifecycle event.
type hookRegistration struct {
	Event   string `json:"event"`
	Command string `json:"command"`
}

func hooksPath(root string) string {
	return filepath.Join(root, ".legio", "hooks.json")
}

func defaultHookRegistrations() []hookRegistration {
	events := []string{hookSessionStart, hookUserPromptSubmit, hookPreToolUse, hookPostToolUse, hookStop, hookPreCompact}
	regs := make([]hookRegistration, len(events))
	for i, e := range events {
		regs[i] = hookRegistration{Event: e, Command: "legio hook"}
	}
	return regs
}

func runHooksInstall(cmd *cobra.Command, args []string) error {
	_, root, err := config.LoadFromCwd()
	if err != nil {
		return err
	}

	path := hooksPath(root)
	if _, err := os.Stat(path); err == nil && !hooksForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := util.AtomicWriteJSON(path, defaultHookRegistrations()); err != nil {
		return err
	}
	fmt.Println("installed hooks to", path)
	return nil
}

func runHooksUninstall(cmd *cobra.Command, args []string) error {
	_, root, err := config.LoadFromCwd()
	if err != nil {
		return err
	}

	if err := os.Remove(hooksPath(root)); err != nil && !os.IsNotExist(err) {
		return err
	}
	fmt.Println("removed hooks.json")
	return nil
}

func runHooksStatus(cmd *cobra.Command, args []string) error {
	_, root, err := config.LoadFromCwd()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(hooksPath(root))
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("hooks not installed")
			return nil
		}
		return err
	}

	var regs []hookRegistration
	if err := json.Unmarshal(data, &regs); err != nil {
		return fmt.Errorf("parsing hooks.json: %w", err)
	}

	if jsonOutput {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(regs)
	}
	for _, r := range regs {
		fmt.Printf("%s\t%s\n", r.Event, r.Command)
	}
	return nil
}
