package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var tuiCmd = &cobra.Command{
	Use:     "tui",
	GroupID: GroupBrowse,
	Short:   "Browse the archive interactively",
	Long: `Open the interactive browser: mailing lists, per-list feeds, and
patch bodies, navigated with the arrow keys.

Keys:
  up/down      move selection
  left/right   previous/next page
  enter        descend (lists -> feed -> patch)
  esc          ascend; from the lists screen: quit`,
	Args: cobra.NoArgs,
	RunE: runTui,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTui(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	interactive := term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
	a, err := startApp(ctx, interactive)
	if err != nil {
		return err
	}
	defer a.Shutdown(ctx)

	return a.RunTUI(ctx)
}
