package checkin

// Batch runner: one check-in per account, strictly sequential, fixed pause between accounts.

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"earnos-checkin/internal/clients_api/earnos"
	"earnos-checkin/internal/infra/log"
	"earnos-checkin/internal/infra/retry"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// DefaultDelay is the pause between two accounts. It only keeps the API from rate limiting us.
const DefaultDelay = 2000 * time.Millisecond

const isoLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	// ErrNoTokens is also what fs.LoadTokens returns for an empty tokens file.
	ErrNoTokens      = errors.New("no tokens found")
	ErrRunInProgress = errors.New("checkin: a run is already in progress")
)

// Checker performs a single check-in. A nil error means the check-in was confirmed.
type Checker interface {
	CheckIn(ctx context.Context, token string) error
}

// Reporter receives the summary of every completed run.
type Reporter interface {
	Report(ctx context.Context, summary Summary) error
}

// PauseFunc waits d or returns early with ctx's error.
type PauseFunc func(ctx context.Context, d time.Duration) error

type Options struct {
	Delay     time.Duration
	Pause     PauseFunc
	Clock     clockwork.Clock
	Reporters []Reporter
}

// Runner owns an immutable copy of the token list for the process lifetime.
type Runner struct {
	tokens    []string
	checker   Checker
	delay     time.Duration
	pause     PauseFunc
	clock     clockwork.Clock
	reporters []Reporter
	running   atomic.Bool
}

func NewRunner(tokens []string, checker Checker, opts Options) (*Runner, error) {
	if len(tokens) == 0 {
		return nil, ErrNoTokens
	}
	if checker == nil {
		return nil, errors.New("checkin: checker is required")
	}
	if opts.Delay < 0 {
		return nil, fmt.Errorf("checkin: negative delay %s", opts.Delay)
	}

	r := &Runner{
		tokens:    append([]string(nil), tokens...),
		checker:   checker,
		delay:     opts.Delay,
		pause:     opts.Pause,
		clock:     opts.Clock,
		reporters: opts.Reporters,
	}
	if r.pause == nil {
		r.pause = retry.Sleep
	}
	if r.clock == nil {
		r.clock = clockwork.NewRealClock()
	}
	return r, nil
}

// Accounts returns how many tokens the runner cycles through.
func (r *Runner) Accounts() int {
	return len(r.tokens)
}

// Run checks in every account once, in order. Per-account failures are recorded and never
// returned. The returned error is ErrRunInProgress when another Run is active, or ctx's error
// when the run was interrupted; the partial summary is returned in that case.
func (r *Runner) Run(ctx context.Context, trigger Trigger) (Summary, error) {
	if !r.running.CompareAndSwap(false, true) {
		return Summary{}, ErrRunInProgress
	}
	defer r.running.Store(false)

	summary := Summary{
		RunID:     log.GenerateRequestID(),
		Trigger:   trigger,
		StartedAt: r.clock.Now(),
		Total:     len(r.tokens),
		Outcomes:  make([]Outcome, 0, len(r.tokens)),
	}
	log.LogStatus(fmt.Sprintf("Performing %s check-ins...", trigger),
		zap.String("run_id", summary.RunID),
		zap.Int("accounts", summary.Total))

	for i, token := range r.tokens {
		account := i + 1
		log.LogStatus(fmt.Sprintf("Processing Account %d...", account))

		err := r.checker.CheckIn(ctx, token)
		if err != nil && ctx.Err() != nil {
			return r.abort(summary, ctx.Err())
		}

		outcome := classify(account, err, r.clock.Now())
		summary.Outcomes = append(summary.Outcomes, outcome)
		if outcome.Success {
			summary.Successes++
		}
		logOutcome(outcome, err)

		if i < len(r.tokens)-1 {
			if err := r.pause(ctx, r.delay); err != nil {
				return r.abort(summary, err)
			}
		}
	}

	summary.FinishedAt = r.clock.Now()
	log.LogStatus(fmt.Sprintf("Check-in Summary: %d/%d accounts successful", summary.Successes, summary.Total),
		zap.String("run_id", summary.RunID),
		zap.Int("failures", summary.Failures()),
		zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)))

	for _, rep := range r.reporters {
		if err := rep.Report(ctx, summary); err != nil {
			log.LogWarn("Failed to report run summary", zap.String("run_id", summary.RunID), zap.Error(err))
		}
	}
	return summary, nil
}

func (r *Runner) abort(summary Summary, err error) (Summary, error) {
	summary.FinishedAt = r.clock.Now()
	log.LogWarn("Check-in run interrupted",
		zap.String("run_id", summary.RunID),
		zap.Int("processed", len(summary.Outcomes)),
		zap.Int("total", summary.Total))
	return summary, err
}

func classify(account int, err error, at time.Time) Outcome {
	if err == nil {
		return Outcome{Account: account, Success: true, At: at}
	}
	var rejected *earnos.RejectedError
	if errors.As(err, &rejected) {
		return Outcome{Account: account, Reason: string(rejected.Body), At: at}
	}
	return Outcome{Account: account, Reason: err.Error(), At: at}
}

func logOutcome(o Outcome, err error) {
	if o.Success {
		log.LogSuccess(fmt.Sprintf("Account %d: Check-in successful! %s", o.Account, o.At.UTC().Format(isoLayout)),
			zap.Int("account", o.Account))
		return
	}

	var rejected *earnos.RejectedError
	if errors.As(err, &rejected) {
		log.LogError(fmt.Sprintf("Account %d: Check-in failed: %s", o.Account, o.Reason),
			zap.Int("account", o.Account))
		return
	}
	log.LogError(fmt.Sprintf("Account %d: Error performing check-in: %s", o.Account, o.Reason),
		zap.Int("account", o.Account), zap.Error(err))
}
