package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var patchHTML bool

var patchCmd = &cobra.Command{
	Use:     "patch <list> <message-id>",
	GroupID: GroupBrowse,
	Short:   "Print one patch's raw mbox body",
	Long: `Print a single patch, identified by its list and message-id.

The body is fetched once and cached permanently under the cache
directory; subsequent invocations are served from disk. With --html the
body is piped through the terminal renderer instead of printed raw.

Examples:
  patch-hub patch amd-gfx 20240101123456.1234-1-dev@example.com
  patch-hub patch amd-gfx 20240101123456.1234-1-dev@example.com --html`,
	Args: cobra.ExactArgs(2),
	RunE: runPatch,
}

func init() {
	rootCmd.AddCommand(patchCmd)
	patchCmd.Flags().BoolVar(&patchHTML, "html", false, "Render the body instead of printing raw mbox")
}

func runPatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	list, messageID := args[0], args[1]

	a, err := startApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Shutdown(ctx)

	body, err := a.Patch(ctx, list, messageID, patchHTML)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), body)
	return nil
}
