package commands

// Prints the upcoming firings of the configured schedule

import (
	"fmt"
	"time"

	"earnos-checkin/internal/features/schedule"
	"earnos-checkin/internal/infra/config"

	"github.com/spf13/cobra"
)

var nextCount int

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show the next scheduled check-in times",
	RunE:  runNext,
}

func init() {
	nextCmd.Flags().IntVarP(&nextCount, "count", "n", 5, "Number of firings to show")
}

func runNext(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	loc, err := cfg.Schedule.Location()
	if err != nil {
		return err
	}
	sched, err := schedule.Parse(cfg.Schedule.Cron, loc)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Schedule: %s (%s)\n", cfg.Schedule.Cron, loc)
	t := time.Now()
	for i := 0; i < nextCount; i++ {
		t = sched.Next(t)
		if t.IsZero() {
			break
		}
		fmt.Fprintf(out, "  %s  (in %s)\n", t.In(loc).Format(time.RFC3339), time.Until(t).Round(time.Second))
	}
	return nil
}
