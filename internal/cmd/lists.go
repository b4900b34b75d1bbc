package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nahharris/patch-hub/internal/constants"
)

var (
	listsPage  int
	listsCount int
)

var listsCmd = &cobra.Command{
	Use:     "lists",
	GroupID: GroupBrowse,
	Short:   "Print a page of mailing lists",
	Long: `Print a page of the archive's mailing lists, alphabetically,
one per line as tab-separated columns: name, description, last update
(ISO-8601).

The full set of lists is cached on disk; when the upstream head is
unchanged the command is served entirely from cache.

Examples:
  patch-hub lists
  patch-hub lists --page 3 --count 50`,
	Args: cobra.NoArgs,
	RunE: runLists,
}

func init() {
	rootCmd.AddCommand(listsCmd)
	listsCmd.Flags().IntVar(&listsPage, "page", 0, "Page number (0-based)")
	listsCmd.Flags().IntVar(&listsCount, "count", constants.PageSize, "Items per page")
}

func runLists(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := startApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Shutdown(ctx)

	items, err := a.Lists(ctx, listsPage, listsCount)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	for _, l := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\n", l.Name, l.Description, l.LastUpdate.UTC().Format(time.RFC3339))
	}
	return nil
}
