// Package logtail reads the tail of an agent's most recent session log
// from disk (spec §6 on-disk layout: logs/{name}/{session-ts}/session.log),
// satisfying the watchdog's LogTailer and backing the `inspect` CLI
// command.
package logtail

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileTailer reads session logs from a project's .legio/logs directory.
type FileTailer struct {
	root string // projectRoot/.legio/logs
}

// New returns a FileTailer rooted at projectRoot's .legio/logs directory.
func New(projectRoot string) *FileTailer {
	return &FileTailer{root: filepath.Join(projectRoot, ".legio", "logs")}
}

// latestSessionDir returns the most recent session-timestamp directory for
// an agent, chosen by lexical order since session-ts directories are named
// so that increases in time sort later.
func (f *FileTailer) latestSessionDir(agentName string) (string, error) {
	agentDir := filepath.Join(f.root, agentName)
	entries, err := os.ReadDir(agentDir)
	if err != nil {
		return "", fmt.Errorf("reading log dir for %s: %w", agentName, err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	if len(dirs) == 0 {
		return "", fmt.Errorf("no session logs recorded for %s", agentName)
	}
	sort.Strings(dirs)
	return filepath.Join(agentDir, dirs[len(dirs)-1]), nil
}

// Tail returns the last n lines of agentName's most recent session.log.
func (f *FileTailer) Tail(agentName string, lines int) (string, error) {
	dir, err := f.latestSessionDir(agentName)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(filepath.Join(dir, "session.log"))
	if err != nil {
		return "", fmt.Errorf("reading session.log for %s: %w", agentName, err)
	}
	all := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(all) <= lines {
		return strings.Join(all, "\n"), nil
	}
	return strings.Join(all[len(all)-lines:], "\n"), nil
}

// Events returns the path of agentName's most recent session's
// events.ndjson file; it does not check that the file exists.
func (f *FileTailer) Events(agentName string) (string, error) {
	dir, err := f.latestSessionDir(agentName)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "events.ndjson"), nil
}
