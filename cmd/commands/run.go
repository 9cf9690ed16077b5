package commands

// Daemon command: initial check-in run, then the daily schedule until SIGINT/SIGTERM

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"earnos-checkin/internal/app"
	logging "earnos-checkin/internal/infra/log"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Check in all accounts now and then every day on schedule",
	RunE:  runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
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

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}

	logging.LogStatus("Bot shutting down...")

	// In-flight HTTP calls and pauses observe ctx; don't hang if one does not.
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		logging.LogWarn("Timeout waiting for the current run to stop, forcing shutdown")
		return nil
	}
}
