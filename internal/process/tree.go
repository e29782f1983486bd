package process

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Alive reports whether pid refers to a live process, by sending signal 0
// (spec §8 invariant 10: "processAlive(self) is always true" — the same
// signal-0 probe the caller uses on its own pid proves this trivially).
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// ChildPIDs returns the direct child PIDs of parentPID. It tries pgrep
// first and falls back to parsing `ps -eo pid,ppid`, the same two-path
// strategy as the teacher's internal/util/orphan.go getChildPIDs.
func ChildPIDs(ctx context.Context, parentPID int) []int {
	if out, err := exec.CommandContext(ctx, "pgrep", "-P", strconv.Itoa(parentPID)).Output(); err == nil {
		return parsePIDLines(string(out))
	}

	out, err := exec.CommandContext(ctx, "ps", "-eo", "pid,ppid").Output()
	if err != nil {
		return nil
	}
	var children []int
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		pid, err1 := strconv.Atoi(fields[0])
		ppid, err2 := strconv.Atoi(fields[1])
		if err1 == nil && err2 == nil && ppid == parentPID {
			children = append(children, pid)
		}
	}
	return children
}

// DescendantPIDs returns every PID in the process subtree rooted at
// rootPID, rootPID included, deepest descendants last-discovered but
// present regardless of order.
func DescendantPIDs(ctx context.Context, rootPID int) []int {
	all := []int{rootPID}
	frontier := []int{rootPID}
	for len(frontier) > 0 {
		var next []int
		for _, pid := range frontier {
			children := ChildPIDs(ctx, pid)
			all = append(all, children...)
			next = append(next, children...)
		}
		frontier = next
	}
	return all
}

func parsePIDLines(out string) []int {
	var pids []int
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		if pid, err := strconv.Atoi(line); err == nil && pid > 0 {
			pids = append(pids, pid)
		}
	}
	return pids
}

// KillTree terminates the process subtree rooted at rootPID: every
// descendant is signaled depth-first, deepest first, then the root itself,
// mirroring the teacher's SIGTERM-then-grace-then-SIGKILL escalation in
// CleanupOrphanedClaudeProcesses (internal/util/orphan.go) and the
// isProcessAlive/sendTermSignal/sendKillSignal primitives from
// internal/daemon/proc_unix.go. This satisfies spec §8 invariant 7: killing
// an agent's root process must leave no descendant alive.
func KillTree(ctx context.Context, rootPID int, grace time.Duration) error {
	order := killOrder(ctx, rootPID)

	for _, pid := range order {
		signalPID(pid, syscall.SIGTERM)
	}

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !anyAlive(order) {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	for _, pid := range order {
		if Alive(pid) {
			signalPID(pid, syscall.SIGKILL)
		}
	}
	return nil
}

// killOrder returns rootPID's descendants ordered deepest-first, with the
// root last, so children always receive their signal before their parent.
func killOrder(ctx context.Context, rootPID int) []int {
	type level struct {
		pids []int
	}
	var levels []level
	frontier := []int{rootPID}
	levels = append(levels, level{pids: frontier})
	for len(frontier) > 0 {
		var next []int
		for _, pid := range frontier {
			next = append(next, ChildPIDs(ctx, pid)...)
		}
		if len(next) == 0 {
			break
		}
		levels = append(levels, level{pids: next})
		frontier = next
	}

	var order []int
	for i := len(levels) - 1; i >= 0; i-- {
		order = append(order, levels[i].pids...)
	}
	return order
}

func signalPID(pid int, sig syscall.Signal) {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return
	}
	_ = proc.Signal(sig)
}

func anyAlive(pids []int) bool {
	for _, pid := range pids {
		if Alive(pid) {
			return true
		}
	}
	return false
}
