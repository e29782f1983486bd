package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/legio/legio/internal/config"
	"github.com/legio/legio/internal/store"
)

var runCmd = &cobra.Command{
	Use:     "run",
	GroupID: GroupInfo,
	Short:   "Inspect orchestration runs",
}

var runListCmd = &cobra.Command{
	Use:  "list",
	RunE: runRunList,
}

var runShowCmd = &cobra.Command{
	Use:  "show <id>",
	Args: cobra.ExactArgs(1),
	RunE: runRunShow,
}

var runCompleteCmd = &cobra.Command{
	Use:  "complete <id>",
	Args: cobra.ExactArgs(1),
	RunE: runRunComplete,
}

func init() {
	runCmd.AddCommand(runListCmd, runShowCmd, runCompleteCmd)
	rootCmd.AddCommand(runCmd)
}

func runRunList(cmd *cobra.Command, args []string) error {
	_, root, err := config.LoadFromCwd()
	if err != nil {
		return err
	}

	sessions, err := store.OpenSessionStore(storeDirFor(root))
	if err != nil {
		return err
	}
	defer sessions.Close()

	runs, err := sessions.ListRuns(cmd.Context(), "", 50)
	if err != nil {
		return err
	}

	if jsonOutput {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(runs)
	}
	for _, r := range runs {
		fmt.Printf("%s\t%s\tstarted=%s\n", r.ID, r.Status, r.StartedAt.Format(time.RFC3339))
	}
	return nil
}

func runRunShow(cmd *cobra.Command, args []string) error {
	_, root, err := config.LoadFromCwd()
	if err != nil {
		return err
	}

	sessions, err := store.OpenSessionStore(storeDirFor(root))
	if err != nil {
		return err
	}
	defer sessions.Close()

	run, err := sessions.GetRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	members, err := sessions.GetByRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if jsonOutput {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{"run": run, "sessions": members})
	}
	fmt.Printf("run %s (%s), started %s\n", run.ID, run.Status, run.StartedAt.Format(time.RFC3339))
	for _, s := range members {
		fmt.Printf("  %s\t%s\t%s\n", s.AgentName, s.Capability, s.State)
	}
	return nil
}

func runRunComplete(cmd *cobra.Command, args []string) error {
	_, root, err := config.LoadFromCwd()
	if err != nil {
		return err
	}

	sessions, err := store.OpenSessionStore(storeDirFor(root))
	if err != nil {
		return err
	}
	defer sessions.Close()

	if err := sessions.MarkEnded(cmd.Context(), args[0], store.RunCompleted, time.Now()); err != nil {
		return err
	}
	fmt.Println("run", args[0], "marked completed")
	return nil
}
