package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/legio/legio/internal/config"
	"github.com/legio/legio/internal/store"
)

var traceAgent string

var traceCmd = &cobra.Command{
	Use:     "trace",
	GroupID: GroupInfo,
	Short:   "Show per-tool call statistics across agents",
	RunE:    runTrace,
}

func init() {
	traceCmd.Flags().StringVar(&traceAgent, "agent", "", "limit to one agent")
	rootCmd.AddCommand(traceCmd)
}

func runTrace(cmd *cobra.Command, args []string) error {
	_, root, err := config.LoadFromCwd()
	if err != nil {
		return err
	}

	events, err := store.OpenEventStore(storeDirFor(root))
	if err != nil {
		return err
	}
	defer events.Close()

	stats, err := events.GetToolStats(cmd.Context(), traceAgent, time.Time{})
	if err != nil {
		return err
	}

	if jsonOutput {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(stats)
	}
	for _, s := range stats {
		fmt.Printf("%s\tcalls=%d\tavg=%.0fms\tmax=%dms\n", s.ToolName, s.Count, s.AvgDuration, s.MaxDuration)
	}
	return nil
}
