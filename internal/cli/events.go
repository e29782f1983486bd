package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/legio/legio/internal/config"
	"github.com/legio/legio/internal/store"
)

var (
	eventsSince string
	eventsUntil string
	eventsLevel string
	eventsLimit int
)

var eventsCmd = &cobra.Command{
	Use:     "events",
	GroupID: GroupInfo,
	Short:   "Show the event timeline",
	RunE:    runEvents,
}

func init() {
	eventsCmd.Flags().StringVar(&eventsSince, "since", "", "RFC3339 lower bound")
	eventsCmd.Flags().StringVar(&eventsUntil, "until", "", "RFC3339 upper bound")
	eventsCmd.Flags().StringVar(&eventsLevel, "level", "", "filter by level (debug|info|warn|error)")
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 200, "maximum events to return")
	rootCmd.AddCommand(eventsCmd)
}

func parseRFC3339(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func runEvents(cmd *cobra.Command, args []string) error {
	_, root, err := config.LoadFromCwd()
	if err != nil {
		return err
	}

	events, err := store.OpenEventStore(storeDirFor(root))
	if err != nil {
		return err
	}
	defer events.Close()

	out, err := events.GetTimeline(cmd.Context(), store.Query{
		Since: parseRFC3339(eventsSince),
		Until: parseRFC3339(eventsUntil),
		Level: store.Level(eventsLevel),
		Limit: eventsLimit,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(out)
	}
	for _, e := range out {
		fmt.Printf("%s\t%s\t%s\t%s\n", e.Timestamp.Format(time.RFC3339), e.AgentName, e.Type, e.Data)
	}
	return nil
}
