package commands

// Prints recent run summaries from the run history journal

import (
	"fmt"
	"strconv"
	"strings"

	"earnos-checkin/internal/infra/config"
	"earnos-checkin/internal/infra/fs"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent check-in run summaries",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 10, "Number of runs to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	history := fs.NewRunHistory(cfg.App.DataDir, cfg.App.HistoryLimit)
	data, err := history.Load()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(data.Entries) == 0 {
		fmt.Fprintf(out, "No runs recorded in %s\n", history.Path())
		return nil
	}

	entries := data.Entries
	if historyLimit > 0 && len(entries) > historyLimit {
		entries = entries[len(entries)-historyLimit:]
	}
	for _, e := range entries {
		line := fmt.Sprintf("%s  %-9s  %d/%d successful", e.StartedAt, e.Trigger, e.Successes, e.Total)
		if len(e.FailedAccounts) > 0 {
			failed := make([]string, len(e.FailedAccounts))
			for i, a := range e.FailedAccounts {
				failed[i] = strconv.Itoa(a)
			}
			line += "  failed: " + strings.Join(failed, ",")
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
