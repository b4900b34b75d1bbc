package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nahharris/patch-hub/internal/app"
	"github.com/nahharris/patch-hub/internal/loreapi"
)

// Command groups shown in --help output.
const (
	GroupBrowse = "browse"
	GroupMaint  = "maintenance"
)

// Persistent flags shared by every subcommand.
var (
	rootConfig   string
	rootCacheDir string
	rootBaseURL  string
)

var rootCmd = &cobra.Command{
	Use:   "patch-hub",
	Short: "Browse patches from a public kernel mailing-list archive",
	Long: `patch-hub is a terminal tool for browsing patches on a public
kernel mailing-list archive.

Fetched mailing lists, patch feeds, and raw patch bodies are cached on
disk, so repeat queries are served locally and only deltas hit the
upstream archive.

Examples:
  patch-hub lists                        # print the first page of lists
  patch-hub feed amd-gfx --page 2        # third page of a list's feed
  patch-hub patch amd-gfx <message-id>   # print one patch's raw mbox
  patch-hub tui                          # interactive browser`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: GroupBrowse, Title: "Browsing Commands:"},
		&cobra.Group{ID: GroupMaint, Title: "Maintenance Commands:"},
	)

	rootCmd.PersistentFlags().StringVar(&rootConfig, "config", "", "Config file path (default: PATCH_HUB_CONFIG or the user config dir)")
	rootCmd.PersistentFlags().StringVar(&rootCacheDir, "cache-dir", "", "Cache directory (default: the user cache dir)")
	rootCmd.PersistentFlags().StringVar(&rootBaseURL, "base-url", "", "Upstream archive base URL")
}

// startApp brings up the coordinator for one command invocation. The caller
// owns the returned App and must Shutdown it.
func startApp(ctx context.Context, interactive bool) (*app.App, error) {
	return app.Start(ctx, app.Options{
		ConfigPath:  rootConfig,
		CacheDir:    rootCacheDir,
		BaseURL:     rootBaseURL,
		Interactive: interactive,
	})
}

// Execute runs the root command and maps the result onto the documented
// exit codes: 0 on success, 2 on an upstream failure with no cached
// fallback, 1 for everything else (I/O, config, usage).
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return exitCodeFor(err)
}

func exitCodeFor(err error) int {
	if errors.Is(err, loreapi.ErrTransport) || errors.Is(err, loreapi.ErrParse) {
		return 2
	}
	return 1
}
