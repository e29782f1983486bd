package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/legio/legio/internal/config"
	"github.com/legio/legio/internal/store"
)

var (
	logsAgent  string
	logsLevel  string
	logsSince  string
	logsUntil  string
	logsFollow bool
)

var logsCmd = &cobra.Command{
	Use:     "logs",
	GroupID: GroupInfo,
	Short:   "Tail the event log, optionally following new entries",
	RunE:    runLogs,
}

func init() {
	logsCmd.Flags().StringVar(&logsAgent, "agent", "", "filter to one agent")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "filter by level")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "RFC3339 lower bound")
	logsCmd.Flags().StringVar(&logsUntil, "until", "", "RFC3339 upper bound")
	logsCmd.Flags().BoolVar(&logsFollow, "follow", false, "keep polling for new entries")
	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, args []string) error {
	_, root, err := config.LoadFromCwd()
	if err != nil {
		return err
	}

	events, err := store.OpenEventStore(storeDirFor(root))
	if err != nil {
		return err
	}
	defer events.Close()

	query := store.Query{
		Agent: logsAgent,
		Since: parseRFC3339(logsSince),
		Until: parseRFC3339(logsUntil),
		Level: store.Level(logsLevel),
		Limit: 200,
	}

	printed, err := printLogBatch(cmd, events, query)
	if err != nil {
		return err
	}
	if !logsFollow {
		return nil
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		query.Since = printed
		n, err := printLogBatch(cmd, events, query)
		if err != nil {
			return err
		}
		if !n.IsZero() {
			printed = n
		}
	}
	return nil
}

func printLogBatch(cmd *cobra.Command, events *store.EventStore, query store.Query) (time.Time, error) {
	out, err := events.GetTimeline(context.Background(), query)
	if err != nil {
		return time.Time{}, err
	}
	var last time.Time
	for _, e := range out {
		fmt.Printf("%s [%s] %s %s %s\n", e.Timestamp.Format("15:04:05.000"), e.Level, e.AgentName, e.Type, e.Data)
		if e.Timestamp.After(last) {
			last = e.Timestamp
		}
	}
	return last.Add(time.Nanosecond), nil
}
