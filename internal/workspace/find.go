// Package workspace locates the Legio project root: the directory holding
// the .legio/ control-plane state (spec §6 "On-disk layout").
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotFound indicates no project root was found.
var ErrNotFound = errors.New("not in a Legio project")

// CwdEnv overrides project-root detection (spec §6 Environment).
const CwdEnv = "LEGIO_CWD"

// Markers used to detect a Legio project root.
const (
	// PrimaryMarker is the config file that identifies a project root.
	PrimaryMarker = ".legio/config.yaml"

	// SecondaryMarker is a directory-only fallback: a .legio/ tree with
	// no config.yaml yet (e.g. mid-`legio init`). We keep walking past it
	// looking for a primary marker in case it sits inside a worktree.
	SecondaryMarker = ".legio"
)

// Find locates the project root by walking up from the given directory.
// It prefers .legio/config.yaml over a bare .legio/ directory. When in a
// worktree path (.legio/worktrees/...), continues to the outermost root.
// Does not resolve symlinks to stay consistent with os.Getwd().
func Find(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	inWorktree := isInWorktreePath(absDir)
	var primaryMatch, secondaryMatch string

	current := absDir
	for {
		if _, err := os.Stat(filepath.Join(current, PrimaryMarker)); err == nil {
			if !inWorktree {
				return current, nil
			}
			primaryMatch = current
		}

		// Keep updating secondaryMatch to find the outermost .legio/ directory.
		// Nested worktrees can carry their own .legio/ state; only the
		// outermost one is the project root. The primary marker
		// (.legio/config.yaml) is authoritative and returns early above.
		if info, err := os.Stat(filepath.Join(current, SecondaryMarker)); err == nil && info.IsDir() {
			secondaryMatch = current
		}

		parent := filepath.Dir(current)
		if parent == current {
			if primaryMatch != "" {
				return primaryMatch, nil
			}
			return secondaryMatch, nil
		}
		current = parent
	}
}

func isInWorktreePath(path string) bool {
	sep := string(filepath.Separator)
	return strings.Contains(path, sep+"worktrees"+sep)
}

// FindOrError is like Find but returns a user-friendly error if not found.
func FindOrError(startDir string) (string, error) {
	root, err := Find(startDir)
	if err != nil {
		return "", err
	}
	if root == "" {
		return "", ErrNotFound
	}
	return root, nil
}

// FindFromCwd locates the project root from the current working directory.
func FindFromCwd() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	return Find(cwd)
}

// FindFromCwdOrError is like FindFromCwd but returns an error if not found.
// If getcwd fails (e.g. the worktree was removed underneath the process),
// falls back to the LEGIO_CWD env var.
func FindFromCwdOrError() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		if root := os.Getenv(CwdEnv); root != "" {
			if _, statErr := os.Stat(filepath.Join(root, PrimaryMarker)); statErr == nil {
				return root, nil
			}
		}
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	if root := os.Getenv(CwdEnv); root != "" {
		return FindOrError(root)
	}
	return FindOrError(cwd)
}

// FindFromCwdWithFallback is like FindFromCwdOrError but returns
// (projectRoot, cwd, error). If getcwd fails, returns (projectRoot, "", nil)
// using the LEGIO_CWD fallback. Useful for commands that must continue even
// if the working directory itself was deleted (e.g. an agent's worktree
// cleaned up from under it).
func FindFromCwdWithFallback() (projectRoot string, cwd string, err error) {
	cwd, err = os.Getwd()
	if err != nil {
		if projectRoot = os.Getenv(CwdEnv); projectRoot != "" {
			if _, statErr := os.Stat(filepath.Join(projectRoot, PrimaryMarker)); statErr == nil {
				return projectRoot, "", nil
			}
		}
		return "", "", fmt.Errorf("getting current directory: %w", err)
	}

	projectRoot, err = FindOrError(cwd)
	if err != nil {
		return "", "", err
	}
	return projectRoot, cwd, nil
}

// IsWorkspace checks if the given directory is a Legio project root: it has
// a primary marker (.legio/config.yaml) or at least a bare .legio/ directory.
func IsWorkspace(dir string) (bool, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false, fmt.Errorf("resolving path: %w", err)
	}

	if _, err := os.Stat(filepath.Join(absDir, PrimaryMarker)); err == nil {
		return true, nil
	}

	info, err := os.Stat(filepath.Join(absDir, SecondaryMarker))
	if err == nil && info.IsDir() {
		return true, nil
	}

	return false, nil
}

// projectNameDoc is the minimal shape needed to read the `project` field out
// of .legio/config.yaml without importing internal/config (which itself
// depends on workspace for root discovery).
type projectNameDoc struct {
	Project string `yaml:"project"`
}

// GetProjectName reads the `project` key from the project root's
// config.yaml, used to build the legio-{project}-{agent} tmux session
// naming scheme (spec §3).
func GetProjectName(projectRoot string) (string, error) {
	data, err := os.ReadFile(filepath.Join(projectRoot, PrimaryMarker))
	if err != nil {
		return "", fmt.Errorf("loading project config: %w", err)
	}
	var doc projectNameDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("parsing project config: %w", err)
	}
	if doc.Project == "" {
		return filepath.Base(projectRoot), nil
	}
	return doc.Project, nil
}

// GetProjectNameFromCwd locates the project root from the current working
// directory and returns its configured project name.
func GetProjectNameFromCwd() (string, error) {
	root, err := FindFromCwdOrError()
	if err != nil {
		return "", err
	}
	return GetProjectName(root)
}
