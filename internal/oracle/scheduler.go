package oracle

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// updateThreshold is the relative change against the accepted baseline
// that triggers a price update.
const updateThreshold = 0.01

// Anchor persists an accepted valuation somewhere durable. Best-effort:
// failure is logged by the scheduler, never retried.
type Anchor interface {
	AnchorValuation(ctx context.Context, v Valuation) error
}

// SchedulerOptions tune the oracle cadence.
type SchedulerOptions struct {
	Interval    time.Duration
	EventBuffer int

	// OnError is invoked for aggregation failures. Optional, non-fatal.
	OnError func(error)
}

// Scheduler periodically aggregates valuations, maintains the accepted
// baseline, and publishes PriceUpdateEvents to a bounded channel when a
// reliable valuation moves the baseline by more than the threshold.
type Scheduler struct {
	agg    *Aggregator
	anchor Anchor
	opts   SchedulerOptions
	logger zerolog.Logger
	events chan PriceUpdateEvent

	mu       sync.Mutex
	baseline *Valuation
	lastRun  time.Time
}

// NewScheduler constructs the oracle scheduler. anchor may be nil.
func NewScheduler(agg *Aggregator, anchor Anchor, opts SchedulerOptions, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = time.Hour
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 8
	}
	return &Scheduler{
		agg:    agg,
		anchor: anchor,
		opts:   opts,
		logger: logger.With().Str("component", "oracle").Logger(),
		events: make(chan PriceUpdateEvent, opts.EventBuffer),
	}
}

// Events exposes the price update channel. Consumers drain it at the
// start of their next cycle; the channel is bounded and an overflowing
// event is dropped with a log line rather than blocking the scheduler.
func (s *Scheduler) Events() <-chan PriceUpdateEvent {
	return s.events
}

// Accepted returns the current baseline valuation, if one exists.
func (s *Scheduler) Accepted() *Valuation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.baseline == nil {
		return nil
	}
	v := *s.baseline
	return &v
}

// Run blocks, aggregating on the configured interval until ctx is
// cancelled. A stale baseline forces an out-of-cycle aggregation.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Cycle(ctx)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()
	staleTicker := time.NewTicker(s.opts.Interval / 4)
	defer staleTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Cycle(ctx)
		case <-staleTicker.C:
			if s.stale() {
				s.logger.Warn().Msg("baseline valuation stale; forcing aggregation")
				s.Cycle(ctx)
			}
		}
	}
}

// stale reports whether the accepted valuation has outlived twice the
// scheduler interval. Recent aggregation attempts suppress the forced
// re-run so a persistently rejected baseline does not cause hammering.
func (s *Scheduler) stale() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.baseline == nil {
		return false
	}
	now := time.Now()
	if now.Sub(s.lastRun) < s.opts.Interval/2 {
		return false
	}
	return s.baseline.Age(now) > 2*s.opts.Interval
}

// Cycle performs one aggregation and baseline comparison.
func (s *Scheduler) Cycle(ctx context.Context) {
	v, err := s.agg.Aggregate(ctx)

	s.mu.Lock()
	s.lastRun = time.Now()
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().Err(err).Msg("aggregation failed")
		if s.opts.OnError != nil {
			s.opts.OnError(err)
		}
		return
	}

	s.mu.Lock()
	baseline := s.baseline
	s.mu.Unlock()

	if baseline == nil {
		if !v.Reliable {
			s.logger.Warn().Float64("confidence", v.Confidence).
				Float64("cv", v.CoefficientOfVariation).
				Msg("initial valuation unreliable; no baseline yet")
			return
		}
		s.setBaseline(v)
		s.logger.Info().Str("value", v.Value.String()).Msg("baseline valuation accepted")
		s.persist(ctx, v)
		return
	}

	delta := v.Value.Sub(baseline.Value).Div(baseline.Value).InexactFloat64()

	if math.Abs(delta) <= updateThreshold || !v.Reliable {
		s.logger.Debug().
			Float64("delta_pct", delta*100).
			Bool("reliable", v.Reliable).
			Msg("valuation retained; baseline unchanged")
		return
	}

	old := *baseline
	s.setBaseline(v)

	ev := PriceUpdateEvent{Old: old, New: v, PriceChangePct: delta * 100}
	select {
	case s.events <- ev:
		s.logger.Info().
			Str("old", old.Value.String()).
			Str("new", v.Value.String()).
			Float64("change_pct", ev.PriceChangePct).
			Msg("price update published")
	default:
		s.logger.Warn().Msg("price update channel full; event dropped")
	}

	s.persist(ctx, v)
}

func (s *Scheduler) setBaseline(v Valuation) {
	s.mu.Lock()
	s.baseline = &v
	s.mu.Unlock()
}

// persist anchors the accepted valuation asynchronously. Failures are
// logged and never retried.
func (s *Scheduler) persist(ctx context.Context, v Valuation) {
	if s.anchor == nil {
		return
	}
	go func() {
		if err := s.anchor.AnchorValuation(ctx, v); err != nil {
			s.logger.Warn().Err(err).Msg("valuation anchoring failed")
		}
	}()
}
