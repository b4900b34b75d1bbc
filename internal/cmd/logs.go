package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var logsTail int

var logsCmd = &cobra.Command{
	Use:     "logs",
	GroupID: GroupMaint,
	Short:   "Print recent log records from this invocation",
	Long: `Print the most recent log records, oldest first, as tab-separated
columns: sequence number, time, level, trace id, message.

This reads the in-memory buffer of the current invocation (startup,
garbage collection, and any cache activity it triggered); historical
sessions live in the rotated files under the log directory.`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().IntVar(&logsTail, "tail", 20, "Number of records to print")
}

func runLogs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := startApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Shutdown(ctx)

	records, err := a.Log().GetLast(ctx, logsTail)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	for _, r := range records {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			r.Seq, r.Time.UTC().Format(time.RFC3339), r.Level, r.Trace, r.Message)
	}
	return nil
}
