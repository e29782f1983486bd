package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/legio/legio/internal/config"
	"github.com/legio/legio/internal/store"
)

var costsLive bool

// costSummary approximates a session's resource usage from its tool-call
// event history, since no external billing data reaches the event store
// (spec §3 "Event" carries no cost attribute).
type costSummary struct {
	AgentName   string  `json:"agentName"`
	ToolCalls   int     `json:"toolCalls"`
	ToolTimeSec float64 `json:"toolTimeSec"`
}

var costsCmd = &cobra.Command{
	Use:     "costs",
	GroupID: GroupInfo,
	Short:   "Show per-agent tool-call activity as a cost proxy",
	RunE:    runCosts,
}

func init() {
	costsCmd.Flags().BoolVar(&costsLive, "live", false, "keep refreshing every second")
	rootCmd.AddCommand(costsCmd)
}

func runCosts(cmd *cobra.Command, args []string) error {
	_, root, err := config.LoadFromCwd()
	if err != nil {
		return err
	}

	sessions, err := store.OpenSessionStore(storeDirFor(root))
	if err != nil {
		return err
	}
	defer sessions.Close()

	events, err := store.OpenEventStore(storeDirFor(root))
	if err != nil {
		return err
	}
	defer events.Close()

	print := func() error {
		all, err := sessions.GetAll(cmd.Context())
		if err != nil {
			return err
		}
		var summaries []costSummary
		for _, s := range all {
			stats, err := events.GetToolStats(cmd.Context(), s.AgentName, time.Time{})
			if err != nil {
				return err
			}
			var calls int
			var totalMs float64
			for _, st := range stats {
				calls += st.Count
				totalMs += st.AvgDuration * float64(st.Count)
			}
			summaries = append(summaries, costSummary{AgentName: s.AgentName, ToolCalls: calls, ToolTimeSec: totalMs / 1000})
		}
		if jsonOutput {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(summaries)
		}
		for _, s := range summaries {
			fmt.Printf("%s\tcalls=%d\ttoolTime=%.1fs\n", s.AgentName, s.ToolCalls, s.ToolTimeSec)
		}
		return nil
	}

	if err := print(); err != nil {
		return err
	}
	if !costsLive {
		return nil
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		fmt.Println("---")
		if err := print(); err != nil {
			return err
		}
	}
	return nil
}
