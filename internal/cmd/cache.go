package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:     "cache",
	GroupID: GroupMaint,
	Short:   "Inspect and repair the on-disk cache",
	Long: `Inspect and repair the on-disk cache.

Subcommands:
  status      - Show the cache directory and its lock state
  invalidate  - Discard cached state so the next query refetches

Examples:
  patch-hub cache status
  patch-hub cache invalidate            # drop the mailing-list snapshot
  patch-hub cache invalidate amd-gfx    # drop one list's feed`,
	RunE: runCacheStatus,
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the cache directory and its lock state",
	Args:  cobra.NoArgs,
	RunE:  runCacheStatus,
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate [list]",
	Short: "Discard cached state so the next query refetches",
	Long: `Discard cached state so the next query refetches from upstream.

With no argument, the mailing-list snapshot is dropped. With a list
name, that list's feed cache is dropped; its already-fetched patch
bodies are kept (they never change once published).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCacheInvalidate,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatusCmd)
	cacheCmd.AddCommand(cacheInvalidateCmd)
}

func runCacheStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := startApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Shutdown(ctx)

	dir, status := a.CacheStatus()
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "cache_dir\t%s\n", dir)
	fmt.Fprintf(w, "lock\t%s\n", status)
	return nil
}

func runCacheInvalidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := startApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Shutdown(ctx)

	list := ""
	if len(args) == 1 {
		list = args[0]
	}
	if err := a.InvalidateList(ctx, list); err != nil {
		return err
	}
	if list == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "Invalidated mailing-list snapshot")
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Invalidated feed cache for %s\n", list)
	}
	return nil
}
