package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nahharris/patch-hub/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the patch-hub version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
