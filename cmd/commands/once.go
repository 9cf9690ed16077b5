package commands

// One-shot command: a single check-in run without arming the schedule

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"earnos-checkin/internal/app"
	logging "earnos-checkin/internal/infra/log"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var onceFailOnError bool

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Check in all accounts once and exit",
	RunE:  runOnce,
}

func init() {
	onceCmd.Flags().BoolVar(&onceFailOnError, "fail-on-error", false, "Exit non-zero when any account fails to check in")
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logging.Sync()

	a, err := app.New(cfg, app.Deps{})
	if err != nil {
		logging.LogError("Failed to start", zap.Error(err))
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	summary, err := a.RunOnce(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	if onceFailOnError && summary.Successes < summary.Total {
		return fmt.Errorf("%d/%d accounts failed to check in", summary.Failures(), summary.Total)
	}
	return nil
}
