// Package cli assembles the `legio` command tree (spec §6 "CLI surface").
// Each subcommand follows the teacher's shape (one file per command, a
// package-level `*cobra.Command`, flags bound in init(), self-registering
// onto rootCmd): see the surviving command files under the teacher's
// internal/cmd (cleanup.go, version.go, whoami.go) for the pattern. The
// file that originally defined rootCmd/Execute/the command groups did not
// survive retrieval, so this root is rebuilt from the callers' shape
// rather than copied.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/legio/legio/internal/legioerr"
)

// Command group ids, used to cluster `legio --help` output.
const (
	GroupLifecycle = "lifecycle"
	GroupComms     = "comms"
	GroupOps       = "ops"
	GroupInfo      = "info"
)

var (
	jsonOutput  bool
	completions string
)

var rootCmd = &cobra.Command{
	Use:           "legio",
	Short:         "Orchestrate local multi-agent coding sessions",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit machine-readable JSON output")
	rootCmd.PersistentFlags().StringVar(&completions, "completions", "", "print a shell completion script (bash|zsh|fish) and exit")

	rootCmd.AddGroup(
		&cobra.Group{ID: GroupLifecycle, Title: "Lifecycle:"},
		&cobra.Group{ID: GroupComms, Title: "Communication:"},
		&cobra.Group{ID: GroupOps, Title: "Operations:"},
		&cobra.Group{ID: GroupInfo, Title: "Information:"},
	)
}

// Execute runs the command tree and returns the process exit code (spec
// §7 exit codes: 0 success, 1 error, 2 usage/validation error).
func Execute() int {
	if shell, ok := peekCompletionsFlag(os.Args[1:]); ok {
		if err := printCompletion(shell); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return 1
		}
		return 0
	}

	err := rootCmd.Execute()
	if err == nil {
		return 0
	}

	if e, ok := legioerr.As(err); ok {
		printStructuredError(e)
		return e.ExitCode()
	}

	fmt.Fprintln(os.Stderr, "error:", err)
	return 1
}

func printStructuredError(e *legioerr.Error) {
	fmt.Fprintf(os.Stderr, "error: %s\n", e.Message)
	fmt.Fprintf(os.Stderr, "  kind: %s\n", e.Kind)
	for k, v := range e.Fields {
		fmt.Fprintf(os.Stderr, "  %s: %s\n", k, v)
	}
}
