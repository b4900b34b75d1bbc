package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nahharris/patch-hub/internal/constants"
)

var (
	feedPage  int
	feedCount int
)

var feedCmd = &cobra.Command{
	Use:     "feed <list>",
	GroupID: GroupBrowse,
	Short:   "Print a page of a list's patch feed",
	Long: `Print a page of one mailing list's patch metadata, newest first,
one patch per line as tab-separated columns: message-id, version, title,
author, last update (ISO-8601).

The feed is cached per list; a refresh fetches only pages down to the
first already-known patch, so an unchanged feed costs one request.

Examples:
  patch-hub feed amd-gfx
  patch-hub feed linux-kernel --page 1 --count 10`,
	Args: cobra.ExactArgs(1),
	RunE: runFeed,
}

func init() {
	rootCmd.AddCommand(feedCmd)
	feedCmd.Flags().IntVar(&feedPage, "page", 0, "Page number (0-based)")
	feedCmd.Flags().IntVar(&feedCount, "count", constants.PageSize, "Items per page")
}

func runFeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	list := args[0]

	a, err := startApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Shutdown(ctx)

	items, err := a.Feed(ctx, list, feedPage, feedCount)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	for _, p := range items {
		fmt.Fprintf(w, "%s\tv%d\t%s\t%s\t%s\n",
			p.MessageID, p.Version, p.Title, p.Author, p.LastUpdate.UTC().Format(time.RFC3339))
	}
	return nil
}
