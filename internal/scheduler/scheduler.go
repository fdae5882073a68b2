package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked on every interval.
type TickFunc func(ctx context.Context) error

// Options tune loop behaviour.
type Options struct {
	Interval     time.Duration
	StartupDelay time.Duration
}

// Loop drives fixed-interval execution of a reconciliation tick. The
// sleep starts after the tick returns, so a cycle that outruns its
// interval simply delays the next one; ticks never overlap.
type Loop struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Loop instance.
func New(opts Options, logger zerolog.Logger) *Loop {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Loop{opts: opts, logger: logger.With().Str("component", "loop").Logger()}
}

// Run blocks, invoking the tick function until ctx is cancelled. Tick
// errors are logged, never propagated; the interval sleep happens
// regardless of cycle outcome.
func (l *Loop) Run(ctx context.Context, tick TickFunc) error {
	if l.opts.StartupDelay > 0 {
		if err := wait(ctx, l.opts.StartupDelay); err != nil {
			return err
		}
	}

	for {
		started := time.Now()
		if err := tick(ctx); err != nil {
			l.logger.Error().Err(err).Dur("elapsed", time.Since(started)).Msg("cycle failed")
		} else {
			l.logger.Debug().Dur("elapsed", time.Since(started)).Msg("cycle complete")
		}

		if err := wait(ctx, l.opts.Interval); err != nil {
			return err
		}
	}
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
