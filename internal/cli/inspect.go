package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/legio/legio/internal/config"
	"github.com/legio/legio/internal/logtail"
	"github.com/legio/legio/internal/process"
	"github.com/legio/legio/internal/store"
)

var inspectFollow bool

var inspectCmd = &cobra.Command{
	Use:     "inspect <agent>",
	GroupID: GroupInfo,
	Short:   "Show one agent's session state, terminal capture, and recent log",
	Args:    cobra.ExactArgs(1),
	RunE:    runInspect,
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectFollow, "follow", false, "keep refreshing every second")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	_, root, err := config.LoadFromCwd()
	if err != nil {
		return err
	}

	sessions, err := store.OpenSessionStore(storeDirFor(root))
	if err != nil {
		return err
	}
	defer sessions.Close()

	tmux := process.New("tmux")
	tailer := logtail.New(root)

	print := func() error {
		sess, err := sessions.GetByName(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		capture, _ := tmux.Capture(cmd.Context(), sess.TmuxSession)
		tail, _ := tailer.Tail(args[0], 30)

		if jsonOutput {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
				"session": sess,
				"capture": capture,
				"logTail": tail,
			})
		}
		fmt.Printf("%s\t%s\t%s\tlastActivity=%s\n", sess.AgentName, sess.Capability, sess.State, sess.LastActivity.Format(time.RFC3339))
		fmt.Println("--- terminal ---")
		fmt.Println(capture)
		fmt.Println("--- log tail ---")
		fmt.Println(tail)
		return nil
	}

	if err := print(); err != nil {
		return err
	}
	if !inspectFollow {
		return nil
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		fmt.Println("=====")
		if err := print(); err != nil {
			return err
		}
	}
	return nil
}
