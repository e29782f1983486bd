package cli

import (
	"fmt"
	"os"
	"strings"
)

// peekCompletionsFlag scans raw args for --completions <shell> ahead of
// cobra's own parsing, since --completions prints a script and exits
// rather than dispatching to a subcommand.
func peekCompletionsFlag(args []string) (string, bool) {
	for i, a := range args {
		if a == "--completions" && i+1 < len(args) {
			return args[i+1], true
		}
		if strings.HasPrefix(a, "--completions=") {
			return strings.TrimPrefix(a, "--completions="), true
		}
	}
	return "", false
}

func printCompletion(shell string) error {
	switch shell {
	case "bash":
		return rootCmd.GenBashCompletion(os.Stdout)
	case "zsh":
		return rootCmd.GenZshCompletion(os.Stdout)
	case "fish":
		return rootCmd.GenFishCompletion(os.Stdout, true)
	default:
		return fmt.Errorf("unsupported shell %q, expected bash, zsh, or fish", shell)
	}
}
