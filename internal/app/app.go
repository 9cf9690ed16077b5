package app

// Wires config into the check-in runner and the daily schedule.
// Lifecycle: Starting -> initial run -> waiting <-> scheduled run -> ... -> stopped on ctx cancel.

import (
	"context"
	"errors"
	"fmt"

	bot "earnos-checkin/bots_monitor"
	"earnos-checkin/internal/clients_api/earnos"
	"earnos-checkin/internal/features/checkin"
	"earnos-checkin/internal/features/schedule"
	"earnos-checkin/internal/infra/config"
	"earnos-checkin/internal/infra/fs"
	"earnos-checkin/internal/infra/log"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

type App struct {
	Runner     *checkin.Runner
	Scheduler  *schedule.Daily
	History    *fs.RunHistory
	runOnStart bool
}

// Deps lets tests replace the clock, the pause between accounts, or the checker.
// Zero values mean production defaults.
type Deps struct {
	Clock   clockwork.Clock
	Pause   checkin.PauseFunc
	Checker checkin.Checker
}

// New loads the tokens file first, so a missing or empty file fails before any client,
// bot or schedule is created.
func New(cfg *config.Config, deps Deps) (*App, error) {
	tokens, err := fs.LoadTokens(cfg.App.TokensFile)
	if err != nil {
		return nil, err
	}
	log.LogStatus(fmt.Sprintf("Loaded %d accounts", len(tokens)), zap.String("file", cfg.App.TokensFile))

	checker := deps.Checker
	if checker == nil {
		client, err := earnos.NewClient(earnos.Options{
			Endpoint:         cfg.CheckIn.Endpoint,
			Origin:           cfg.CheckIn.Origin,
			Referer:          cfg.CheckIn.Referer,
			UserAgent:        cfg.CheckIn.UserAgent,
			AcceptLanguage:   cfg.CheckIn.AcceptLanguage,
			Timeout:          cfg.CheckIn.Timeout(),
			MaxRPS:           cfg.CheckIn.MaxRPS,
			MaxRetries:       cfg.CheckIn.MaxRetries,
			BreakerThreshold: cfg.CheckIn.BreakerThreshold,
			MaxResponseSize:  cfg.CheckIn.MaxResponseSize,
		})
		if err != nil {
			return nil, err
		}
		checker = client
	}

	a := &App{runOnStart: cfg.Schedule.RunOnStart}

	var reporters []checkin.Reporter
	if cfg.App.HistoryLimit > 0 {
		a.History = fs.NewRunHistory(cfg.App.DataDir, cfg.App.HistoryLimit)
		reporters = append(reporters, a.History)
	}
	if cfg.Telegram.Enabled() {
		notifier, err := bot.NewSummaryNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.APIEndpoint)
		if err != nil {
			// Notifications are optional; check-ins still run without them.
			log.LogWarn("Telegram notifications disabled", zap.Error(err))
		} else {
			reporters = append(reporters, notifier)
		}
	}

	a.Runner, err = checkin.NewRunner(tokens, checker, checkin.Options{
		Delay:     cfg.CheckIn.Delay(),
		Pause:     deps.Pause,
		Clock:     deps.Clock,
		Reporters: reporters,
	})
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Schedule.Location()
	if err != nil {
		return nil, err
	}
	a.Scheduler, err = schedule.NewDaily(cfg.Schedule.Cron, loc, deps.Clock, a.scheduledRun)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) scheduledRun(ctx context.Context) {
	if _, err := a.Runner.Run(ctx, checkin.TriggerScheduled); err != nil {
		if errors.Is(err, checkin.ErrRunInProgress) {
			log.LogWarn("Skipping scheduled check-in: previous run still in progress")
			return
		}
		log.LogInfo("Scheduled check-in stopped", zap.Error(err))
	}
}

// RunOnce performs a single batch outside the schedule.
func (a *App) RunOnce(ctx context.Context) (checkin.Summary, error) {
	return a.Runner.Run(ctx, checkin.TriggerManual)
}

// Run performs the initial batch, arms the schedule and blocks until ctx is cancelled.
// Cancellation abandons any in-flight run; Run then returns nil.
func (a *App) Run(ctx context.Context) error {
	if a.runOnStart {
		if _, err := a.Runner.Run(ctx, checkin.TriggerStartup); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}

	if err := a.Scheduler.Start(ctx); err != nil {
		return err
	}
	defer a.Scheduler.Stop()

	log.LogSuccess("Check-in bot is running", zap.Int("accounts", a.Runner.Accounts()))
	<-ctx.Done()
	return nil
}
