// legio is the CLI for the Legio local multi-agent orchestrator.
package main

import (
	"os"

	"github.com/legio/legio/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
