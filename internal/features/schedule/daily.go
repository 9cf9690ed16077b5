package schedule

// Cron-driven trigger. Expression parsing is delegated to robfig/cron; waiting is done on an
// injectable clock so tests can drive time explicitly.

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"earnos-checkin/internal/infra/log"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DailyCheckIn fires at 00:01 every day.
const DailyCheckIn = "1 0 * * *"

var ErrAlreadyStarted = errors.New("schedule: already started")

// FireFunc is invoked once per firing. Firings never overlap: the next one is armed only
// after FireFunc returns, and firings missed while it ran are skipped.
type FireFunc func(ctx context.Context)

type Daily struct {
	expr     string
	schedule cron.Schedule
	clock    clockwork.Clock
	fire     FireFunc

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Parse validates a standard five-field expression. A nil or Local loc keeps the process
// time zone.
func Parse(expr string, loc *time.Location) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		expr = DailyCheckIn
	}
	if loc != nil && loc != time.Local && !strings.HasPrefix(expr, "TZ=") && !strings.HasPrefix(expr, "CRON_TZ=") {
		expr = "CRON_TZ=" + loc.String() + " " + expr
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return sched, nil
}

func NewDaily(expr string, loc *time.Location, clock clockwork.Clock, fire FireFunc) (*Daily, error) {
	if fire == nil {
		return nil, errors.New("schedule: fire callback is required")
	}
	sched, err := Parse(expr, loc)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Daily{expr: expr, schedule: sched, clock: clock, fire: fire}, nil
}

// Next returns the first firing strictly after t.
func (d *Daily) Next(t time.Time) time.Time {
	return d.schedule.Next(t)
}

// Upcoming returns the next n firings after t.
func (d *Daily) Upcoming(t time.Time, n int) []time.Time {
	out := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		t = d.schedule.Next(t)
		if t.IsZero() {
			break
		}
		out = append(out, t)
	}
	return out
}

// Started reports whether the trigger is armed.
func (d *Daily) Started() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.done != nil
}

// Start arms the trigger in a background goroutine. It returns immediately.
func (d *Daily) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	go d.loop(ctx, d.done)
	return nil
}

// Stop disarms the trigger and waits for the loop to exit, including any firing in progress.
func (d *Daily) Stop() {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel, d.done = nil, nil
	d.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (d *Daily) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		now := d.clock.Now()
		next := d.schedule.Next(now)
		if next.IsZero() {
			log.LogWarn("Schedule has no future firings", zap.String("cron", d.expr))
			return
		}
		log.LogInfo("Next scheduled check-in",
			zap.String("cron", d.expr),
			zap.Time("next", next),
			zap.Duration("in", next.Sub(now)))

		select {
		case <-ctx.Done():
			return
		case <-d.clock.After(next.Sub(now)):
		}

		d.fire(ctx)
	}
}
