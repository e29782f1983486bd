package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/legio/legio/internal/autopilot"
	"github.com/legio/legio/internal/config"
)

var autopilotCmd = &cobra.Command{
	Use:     "autopilot",
	GroupID: GroupOps,
	Short:   "Control the autopilot tick daemon running inside `legio up`",
}

var autopilotStartCmd = &cobra.Command{
	Use:  "start",
	RunE: runAutopilotAction("/autopilot/start"),
}

var autopilotStopCmd = &cobra.Command{
	Use:  "stop",
	RunE: runAutopilotAction("/autopilot/stop"),
}

var autopilotStatusCmd = &cobra.Command{
	Use:  "status",
	RunE: runAutopilotStatus,
}

func init() {
	autopilotCmd.AddCommand(autopilotStartCmd, autopilotStopCmd, autopilotStatusCmd)
	rootCmd.AddCommand(autopilotCmd)
}

func runAutopilotAction(path string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, _, err := config.LoadFromCwd()
		if err != nil {
			return err
		}
		var state autopilot.State
		if err := newAPIClient(cfg).post(path, nil, &state); err != nil {
			return err
		}
		return printAutopilotState(cmd, state)
	}
}

func runAutopilotStatus(cmd *cobra.Command, args []string) error {
	cfg, _, err := config.LoadFromCwd()
	if err != nil {
		return err
	}
	var state autopilot.State
	if err := newAPIClient(cfg).get("/autopilot/status", &state); err != nil {
		return err
	}
	return printAutopilotState(cmd, state)
}

func printAutopilotState(cmd *cobra.Command, state autopilot.State) error {
	if jsonOutput {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(state)
	}
	fmt.Printf("running: %v\tticks: %d\tlastTick: %s\n", state.Running, state.TickCount, state.LastTick.Format("15:04:05"))
	return nil
}
