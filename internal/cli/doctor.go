package cli

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/legio/legio/internal/config"
	"github.com/legio/legio/internal/lock"
	"github.com/legio/legio/internal/process"
	"github.com/legio/legio/internal/store"
	"github.com/legio/legio/internal/worktree"
	"github.com/legio/legio/internal/workspace"
)

var doctorCmd = &cobra.Command{
	Use:     "doctor",
	GroupID: GroupInfo,
	Short:   "Check that the current project and host are ready to run legio",
	RunE:    runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type doctorCheck struct {
	Name string
	OK   bool
	Detail string
}

func runDoctor(cmd *cobra.Command, args []string) error {
	root, err := workspace.FindFromCwd()
	var checks []doctorCheck
	if err != nil {
		checks = append(checks, doctorCheck{"workspace", false, err.Error()})
	} else {
		checks = append(checks, doctorCheck{"workspace", true, root})
	}

	if _, err := exec.LookPath("tmux"); err != nil {
		checks = append(checks, doctorCheck{"tmux binary", false, "not found on PATH"})
	} else {
		checks = append(checks, doctorCheck{"tmux binary", true, ""})
	}
	if _, err := exec.LookPath("git"); err != nil {
		checks = append(checks, doctorCheck{"git binary", false, "not found on PATH"})
	} else {
		checks = append(checks, doctorCheck{"git binary", true, ""})
	}

	if root != "" {
		cfg, cfgErr := config.Load(root)
		if cfgErr != nil {
			checks = append(checks, doctorCheck{"config.yaml", false, cfgErr.Error()})
		} else {
			checks = append(checks, doctorCheck{"config.yaml", true, cfg.Project})
		}

		dir := storeDirFor(root)
		for name, open := range map[string]func() error{
			"sessions.db": func() error { s, err := store.OpenSessionStore(dir); if err == nil { s.Close() }; return err },
			"mail.db":     func() error { s, err := store.OpenMailStore(dir); if err == nil { s.Close() }; return err },
			"events.db":   func() error { s, err := store.OpenEventStore(dir); if err == nil { s.Close() }; return err },
			"merge-queue.db": func() error { s, err := store.OpenMergeQueueStore(dir); if err == nil { s.Close() }; return err },
		} {
			if err := open(); err != nil {
				checks = append(checks, doctorCheck{name, false, err.Error()})
			} else {
				checks = append(checks, doctorCheck{name, true, ""})
			}
		}

		l := lock.New(orchestratorLockDir(dir))
		if info, err := l.Read(); err == nil && !info.IsStale() {
			checks = append(checks, doctorCheck{"orchestrator lock", true, fmt.Sprintf("held by pid %d", info.PID)})
		} else {
			checks = append(checks, doctorCheck{"orchestrator lock", true, "no live orchestrator"})
		}

		checks = append(checks, checkWorktreeLocks(root)...)
	}

	failed := 0
	for _, c := range checks {
		status := "ok"
		if !c.OK {
			status = "FAIL"
			failed++
		}
		if c.Detail != "" {
			fmt.Printf("[%s] %s: %s\n", status, c.Name, c.Detail)
		} else {
			fmt.Printf("[%s] %s\n", status, c.Name)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

// checkWorktreeLocks scans per-agent worktree locks for stale entries and
// process-tree collisions (SPEC_FULL.md §7 "process-tree collision / stale
// lock detection"), cleaning anything both dead-PID and session-less.
func checkWorktreeLocks(root string) []doctorCheck {
	wt := worktree.New(root, "")
	tmux := process.New("tmux")
	sessions, _ := tmux.ListSessions(context.Background())

	collisions := lock.DetectCollisions(wt.Root(), sessions)
	if len(collisions) == 0 {
		return []doctorCheck{{"worktree locks", true, "no collisions"}}
	}

	cleaned, err := lock.CleanStaleLocks(wt.Root())
	detail := fmt.Sprintf("%d collision(s): %s", len(collisions), collisions[0])
	if err == nil && cleaned > 0 {
		detail += fmt.Sprintf(" (cleaned %d stale lock(s))", cleaned)
	}
	return []doctorCheck{{"worktree locks", false, detail}}
}
