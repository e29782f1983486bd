package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the build version, set via -ldflags at release build time.
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:     "version",
	GroupID: GroupInfo,
	Short:   "Print the legio version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(Version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
