package retry

// Opt-in retry for check-in requests, plus the context-aware wait the runner pauses with.
// Only 429 and 5xx gateway answers are retried. Other statuses and transport errors are final.

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseDelay is used when a Policy leaves BaseDelay unset.
const DefaultBaseDelay = 300 * time.Millisecond

// Policy describes how a failed request is repeated. The zero value makes exactly one attempt.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	// OnRetry runs before each wait with the 1-based attempt that just failed.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// HTTPError is any non-2xx answer. Body is kept so failure lines can show what the API said.
type HTTPError struct {
	StatusCode int
	Body       []byte
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "http error: <nil>"
	}
	if len(e.Body) == 0 {
		return fmt.Sprintf("http error (%d)", e.StatusCode)
	}
	return fmt.Sprintf("http error (%d): %s", e.StatusCode, string(e.Body))
}

// ExhaustedError wraps the last failure once every attempt of a Policy with retries is spent.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Temporary reports whether an answer with this status may succeed on another attempt.
func Temporary(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func IsRetryable(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && Temporary(he.StatusCode)
}

// ParseRetryAfter accepts delay-seconds or an HTTP date. Past dates and garbage give 0.
func ParseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return max(time.Duration(secs)*time.Second, 0)
	}
	if at, err := http.ParseTime(v); err == nil {
		return max(time.Until(at), 0)
	}
	return 0
}

// Wait is the pause after the given failed attempt (0-based). Retry-After on a 429 wins over
// the full-jitter exponential delay; both are capped by MaxDelay.
func (p Policy) Wait(attempt int, err error) time.Duration {
	var he *HTTPError
	if errors.As(err, &he) && he.StatusCode == http.StatusTooManyRequests && he.RetryAfter > 0 {
		return p.capped(he.RetryAfter)
	}

	base := p.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	attempt = min(max(attempt, 0), 20)
	ceiling := p.capped(base << attempt)
	if ceiling <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(ceiling) + 1))
}

func (p Policy) capped(d time.Duration) time.Duration {
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do calls fn until it succeeds, fails with a non-retryable error, or the policy is spent.
// With MaxRetries == 0 fn runs once and its error is returned as is.
func Do(ctx context.Context, p Policy, fn func() error) error {
	attempts := 1 + max(p.MaxRetries, 0)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil || !IsRetryable(err) {
			return err
		}
		if attempt == attempts {
			if attempts == 1 {
				return err
			}
			return &ExhaustedError{Attempts: attempts, Err: err}
		}

		wait := p.Wait(attempt-1, err)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}
		if err := Sleep(ctx, wait); err != nil {
			return err
		}
	}
}
