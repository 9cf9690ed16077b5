package commands

// Root command for the Cobra CLI
// Running without a subcommand starts the daemon (same as "run")

import (
	"fmt"

	"earnos-checkin/internal/infra/config"
	logging "earnos-checkin/internal/infra/log"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "earnos-checkin",
	Short: "Daily EarnOS streak check-in for a list of accounts",
	Long: `earnos-checkin reads bearer tokens from a file, checks in every account once at startup
and then again every day at 00:01 (configurable cron expression).`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDaemon,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(onceCmd)
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(historyCmd)
}

// loadConfig reads config and initializes logging; every command starts with it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logging.Init(cfg.App.LogsDir); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	return cfg, nil
}
