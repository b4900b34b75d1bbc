package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nahharris/patch-hub/internal/log"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: GroupMaint,
	Short:   "Inspect and change patch-hub's configuration",
	Long: `Inspect and change patch-hub's configuration.

Subcommands:
  path           - Print the config file path in use
  set-log-level  - Change the minimum log level and save it

Examples:
  patch-hub config path
  patch-hub config set-log-level debug`,
	RunE: runConfigPath,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path in use",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

var configSetLogLevelCmd = &cobra.Command{
	Use:   "set-log-level <debug|info|warn|error>",
	Short: "Change the minimum log level and save it",
	Long: `Change the minimum log level, persist it to the config file, and
apply it to the running session's logger immediately.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigSetLogLevel,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configSetLogLevelCmd)
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := startApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Shutdown(ctx)

	path, err := a.ConfigPath(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func runConfigSetLogLevel(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	name := strings.ToLower(args[0])
	switch name {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level %q (want debug, info, warn, or error)", args[0])
	}
	level := log.ParseLevel(name)

	a, err := startApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Shutdown(ctx)

	if err := a.SetLogLevel(ctx, level); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Log level set to %s\n", level)
	return nil
}
