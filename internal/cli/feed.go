package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/legio/legio/internal/config"
	"github.com/legio/legio/internal/store"
	"github.com/legio/legio/internal/tui"
)

var (
	feedFollow bool
	feedPlain  bool
)

var feedCmd = &cobra.Command{
	Use:     "feed",
	GroupID: GroupComms,
	Short:   "Show the mail feed across every agent, optionally following",
	Long: `Display mail and event activity across every agent.

By default, launches an interactive dashboard with an agent panel and a
combined event/mail feed (tab to switch panels, q to quit). Use --plain
for a simple polling text stream instead, which --follow controls.`,
	RunE: runFeed,
}

func init() {
	feedCmd.Flags().BoolVar(&feedFollow, "follow", false, "in --plain mode, keep polling for new mail")
	feedCmd.Flags().BoolVar(&feedPlain, "plain", false, "print plain text instead of the interactive dashboard")
	rootCmd.AddCommand(feedCmd)
}

func runFeed(cmd *cobra.Command, args []string) error {
	_, root, err := config.LoadFromCwd()
	if err != nil {
		return err
	}

	dir := storeDirFor(root)

	if !feedPlain && term.IsTerminal(int(os.Stdout.Fd())) {
		return runFeedDashboard(dir)
	}

	mailStore, err := store.OpenMailStore(dir)
	if err != nil {
		return err
	}
	defer mailStore.Close()

	seen := map[string]bool{}
	printNew := func() error {
		all, err := mailStore.GetAll(context.Background(), store.Filter{})
		if err != nil {
			return err
		}
		for _, m := range all {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			fmt.Printf("%s\t%s -> %s\t[%s]\t%s\n", m.CreatedAt.Format("15:04:05"), m.From, m.To, m.Type, m.Subject)
		}
		return nil
	}

	if err := printNew(); err != nil {
		return err
	}
	if !feedFollow {
		return nil
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		if err := printNew(); err != nil {
			return err
		}
	}
	return nil
}

// runFeedDashboard launches the interactive bubbletea dashboard (spec §6
// "feed" CLI surface), combining live agent state with a merged event/mail
// feed.
func runFeedDashboard(storeDir string) error {
	sessions, err := store.OpenSessionStore(storeDir)
	if err != nil {
		return err
	}
	defer sessions.Close()

	events, err := store.OpenEventStore(storeDir)
	if err != nil {
		return err
	}
	defer events.Close()

	mailStore, err := store.OpenMailStore(storeDir)
	if err != nil {
		return err
	}
	defer mailStore.Close()

	source := tui.NewStorePoller(events, mailStore, time.Second)
	defer source.Close()

	m := tui.NewModel(sessions, source)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
