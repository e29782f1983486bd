// Package process wraps the tmux terminal-multiplexer and OS process tree
// for agent sessions (spec §4.A "Process/TMUX adapter"). Legio shells tmux
// the same way the teacher repo does: there is no Go tmux client anywhere
// in the retrieved corpus, so control happens through os/exec the same as
// the teacher's orphan-cleanup code in internal/util/orphan.go.
package process

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Tmux drives a local tmux server.
type Tmux struct {
	binary string
}

// New returns a Tmux adapter using the given binary name, or "tmux" if empty.
func New(binary string) *Tmux {
	if binary == "" {
		binary = "tmux"
	}
	return &Tmux{binary: binary}
}

func (t *Tmux) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, t.binary, args...)
	out, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("tmux %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(ee.Stderr)))
		}
		return "", fmt.Errorf("tmux %s: %w", strings.Join(args, " "), err)
	}
	return string(out), nil
}

// CreateSession starts a new detached session named name running cmd in
// workdir. If cmd is empty, the session opens the default shell.
func (t *Tmux) CreateSession(ctx context.Context, name, workdir, cmd string) error {
	args := []string{"new-session", "-d", "-s", name, "-c", workdir}
	if cmd != "" {
		args = append(args, cmd)
	}
	_, err := t.run(ctx, args...)
	return err
}

// HasSession reports whether a session named name currently exists.
func (t *Tmux) HasSession(ctx context.Context, name string) bool {
	err := exec.CommandContext(ctx, t.binary, "has-session", "-t", name).Run()
	return err == nil
}

// ListSessions returns the names of all tmux sessions on the local server.
func (t *Tmux) ListSessions(ctx context.Context) ([]string, error) {
	out, err := t.run(ctx, "list-sessions", "-F", "#{session_name}")
	if err != nil {
		if strings.Contains(err.Error(), "no server running") || strings.Contains(err.Error(), "No such file") {
			return nil, nil
		}
		return nil, err
	}
	return splitNonEmpty(out), nil
}

// SendKeys types text into the session, submitting it. Embedded newlines
// are flattened so a multi-line instruction arrives as one logical submit
// (spec §4.J "nudge dispatcher" relies on this to deliver re-prompts).
func (t *Tmux) SendKeys(ctx context.Context, session, text string) error {
	flat := strings.ReplaceAll(text, "\n", " ")
	if _, err := t.run(ctx, "send-keys", "-t", session, "-l", flat); err != nil {
		return err
	}
	_, err := t.run(ctx, "send-keys", "-t", session, "Enter")
	return err
}

// Capture returns the visible contents of a session's active pane.
func (t *Tmux) Capture(ctx context.Context, session string) (string, error) {
	return t.run(ctx, "capture-pane", "-p", "-t", session)
}

// KillSession destroys a tmux session. It does not touch descendant
// processes; callers that need a full process-tree teardown should call
// KillTree on the pane's root PID first (spec §8 invariant 7
// "process-tree kill completeness").
func (t *Tmux) KillSession(ctx context.Context, session string) error {
	_, err := t.run(ctx, "kill-session", "-t", session)
	return err
}

// PanePID returns the PID of the top-level shell process in a session's
// first pane (the "root PID" recorded on a Session row, spec §3).
func (t *Tmux) PanePID(ctx context.Context, session string) (int, error) {
	out, err := t.run(ctx, "list-panes", "-t", session, "-F", "#{pane_pid}")
	if err != nil {
		return 0, err
	}
	lines := splitNonEmpty(out)
	if len(lines) == 0 {
		return 0, fmt.Errorf("session %s: no panes", session)
	}
	return atoiOrZero(lines[0]), nil
}

// SessionCreated returns the creation time of a session as a Unix
// timestamp, used by the watchdog to establish a session's age.
func (t *Tmux) SessionCreated(ctx context.Context, session string) (int64, error) {
	out, err := t.run(ctx, "display-message", "-p", "-t", session, "#{session_created}")
	if err != nil {
		return 0, err
	}
	return int64(atoiOrZero(strings.TrimSpace(out))), nil
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func atoiOrZero(s string) int {
	n := 0
	neg := false
	for i, r := range s {
		if i == 0 && r == '-' {
			neg = true
			continue
		}
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	if neg {
		return -n
	}
	return n
}
