// Package retry runs workflow steps under a flat, bounded retry budget.
//
// Every step gets a fresh budget: the attempt counter lives in the Do call,
// never in the Policy. Between attempts the policy sleeps a fixed delay
// (never exponential) and feeds the watchdog so a long retry sequence does
// not reset the device.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is returned when every attempt of a step failed. It wraps
// the last attempt's error.
var ErrExhausted = errors.New("retry: attempts exhausted")

// Feeder is fed on every attempt and every sleep.
type Feeder interface {
	Feed() error
}

// Logger is the subset of logging.Logger the policy uses.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Policy bounds a step to MaxAttempts attempts with Delay between them.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration

	// Watchdog, Logger and Sleep are optional.
	Watchdog Feeder
	Logger   Logger
	Sleep    Sleeper
}

// Do runs fn until it succeeds or MaxAttempts attempts have failed.
//
// With k failures before a success Do sleeps exactly k times. When every
// attempt fails Do returns ErrExhausted wrapping the last error, without
// sleeping after the final attempt.
//
// Parameters:
//   - ctx: Passed to fn; cancellation aborts the wait between attempts
//   - step: Workflow step name used in log lines
//   - fn: The attempt to run
//
// Returns:
//   - error: nil on success, ErrExhausted wrapping the last failure, or
//     the context error when ctx ends during a wait
func (p Policy) Do(ctx context.Context, step string, fn func(ctx context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		p.feed()

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt == maxAttempts {
			break
		}

		p.logWarn("step failed, retrying",
			"step", step,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"delay", p.Delay,
			"error", lastErr,
		)

		p.feed()
		if err := p.sleep(ctx, p.Delay); err != nil {
			return fmt.Errorf("%s: %w", step, err)
		}
	}

	p.logError("step failed, giving up",
		"step", step,
		"attempts", maxAttempts,
		"error", lastErr,
	)
	return fmt.Errorf("%w: %s after %d attempts: %w", ErrExhausted, step, maxAttempts, lastErr)
}

func (p Policy) feed() {
	if p.Watchdog != nil {
		_ = p.Watchdog.Feed() //nolint:errcheck // a failed feed must not fail the step
	}
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return SleepContext(ctx, d)
}

func (p Policy) logWarn(msg string, args ...any) {
	if p.Logger != nil {
		p.Logger.Warn(msg, args...)
	}
}

func (p Policy) logError(msg string, args ...any) {
	if p.Logger != nil {
		p.Logger.Error(msg, args...)
	}
}

// SleepContext waits for d, returning early with ctx's error if it ends first.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
