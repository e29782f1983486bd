package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/legio/legio/internal/config"
	"github.com/legio/legio/internal/store"
)

// logCmd is the internal sink the agent runtime writes tool/lifecycle
// events through (spec §6 "hook-driven observability": "it invokes `legio
// log` subcommands that write into the event store"). The core never
// produces tool_start/tool_end events itself; this command is the only
// writer.
var logCmd = &cobra.Command{
	Use:     "log",
	GroupID: GroupOps,
	Short:   "Internal: record a tool or lifecycle event from the agent runtime",
	Hidden:  true,
}

var (
	logAgent    string
	logRun      string
	logSession  string
	logTool     string
	logArgs     string
	logDuration int64
	logData     string
)

var logToolStartCmd = &cobra.Command{Use: "tool-start", RunE: runLogEvent(store.EventToolStart)}
var logToolEndCmd = &cobra.Command{Use: "tool-end", RunE: runLogEvent(store.EventToolEnd)}
var logSessionStartCmd = &cobra.Command{Use: "session-start", RunE: runLogEvent(store.EventSessionStart)}
var logSessionEndCmd = &cobra.Command{Use: "session-end", RunE: runLogEvent(store.EventSessionEnd)}
var logErrorCmd = &cobra.Command{Use: "error", RunE: runLogEvent(store.EventError)}

func init() {
	for _, c := range []*cobra.Command{logToolStartCmd, logToolEndCmd, logSessionStartCmd, logSessionEndCmd, logErrorCmd} {
		c.Flags().StringVar(&logAgent, "agent", "", "agent name")
		c.Flags().StringVar(&logRun, "run", "", "run id")
		c.Flags().StringVar(&logSession, "session", "", "session id")
		c.Flags().StringVar(&logTool, "tool", "", "tool name")
		c.Flags().StringVar(&logArgs, "args", "", "tool arguments, opaque")
		c.Flags().Int64Var(&logDuration, "duration-ms", 0, "tool duration in milliseconds")
		c.Flags().StringVar(&logData, "data", "", "free-form event data")
		c.MarkFlagRequired("agent")
		logCmd.AddCommand(c)
	}
	rootCmd.AddCommand(logCmd)
}

func runLogEvent(eventType store.EventType) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		_, root, err := config.LoadFromCwd()
		if err != nil {
			return err
		}

		events, err := store.OpenEventStore(storeDirFor(root))
		if err != nil {
			return err
		}
		defer events.Close()

		level := store.LevelInfo
		if eventType == store.EventError {
			level = store.LevelError
		}

		_, err = events.Insert(cmd.Context(), store.Event{
			Timestamp:      time.Now(),
			RunID:          logRun,
			AgentName:      logAgent,
			SessionID:      logSession,
			Type:           eventType,
			ToolName:       logTool,
			ToolArgs:       logArgs,
			ToolDurationMs: logDuration,
			Level:          level,
			Data:           logData,
		})
		if err != nil {
			// Event logging must never fail the runtime's tool call.
			fmt.Fprintln(cmd.ErrOrStderr(), "legio log:", err)
		}
		return nil
	}
}
