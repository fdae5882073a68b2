package oracle

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// settableSource lets a test move the price between cycles.
type settableSource struct {
	mu         sync.Mutex
	value      decimal.Decimal
	confidence float64
}

func (s *settableSource) Name() string { return "settable" }

func (s *settableSource) Fetch(_ context.Context) (Estimate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Estimate{Value: s.value, Confidence: s.confidence}, nil
}

func (s *settableSource) set(value float64, confidence float64) {
	s.mu.Lock()
	s.value = decimal.NewFromFloat(value)
	s.confidence = confidence
	s.mu.Unlock()
}

type recordingAnchor struct {
	mu    sync.Mutex
	calls int
}

func (a *recordingAnchor) AnchorValuation(_ context.Context, _ Valuation) error {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	return nil
}

func (a *recordingAnchor) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func newTestScheduler(src Source, anchor Anchor) *Scheduler {
	agg := NewAggregator([]Source{src}, AggregatorOptions{MinConfidence: 0.7}, zerolog.Nop())
	return NewScheduler(agg, anchor, SchedulerOptions{Interval: time.Hour, EventBuffer: 4}, zerolog.Nop())
}

func TestSchedulerSmallDeltaKeepsBaseline(t *testing.T) {
	src := &settableSource{}
	src.set(1_000_000, 0.9)
	sched := newTestScheduler(src, nil)
	ctx := context.Background()

	sched.Cycle(ctx) // establishes baseline
	src.set(1_009_000, 0.9)
	sched.Cycle(ctx) // 0.9% change, below threshold

	select {
	case ev := <-sched.Events():
		t.Fatalf("no event expected for sub-threshold delta, got %+v", ev)
	default:
	}

	baseline := sched.Accepted()
	if baseline == nil {
		t.Fatal("baseline should exist")
	}
	if baseline.Value.Cmp(decimal.NewFromInt(1_000_000)) != 0 {
		t.Fatalf("baseline must remain 1000000, got %s", baseline.Value)
	}
}

func TestSchedulerSignificantDeltaEmitsOneEvent(t *testing.T) {
	src := &settableSource{}
	src.set(1_000_000, 0.9)
	anchor := &recordingAnchor{}
	sched := newTestScheduler(src, anchor)
	ctx := context.Background()

	sched.Cycle(ctx)
	src.set(1_015_000, 0.9)
	sched.Cycle(ctx) // 1.5% change

	var ev PriceUpdateEvent
	select {
	case ev = <-sched.Events():
	default:
		t.Fatal("expected a price update event")
	}
	if math.Abs(ev.PriceChangePct-1.5) > 0.001 {
		t.Fatalf("expected ~1.5%% change, got %f", ev.PriceChangePct)
	}
	if ev.Old.Value.Cmp(decimal.NewFromInt(1_000_000)) != 0 {
		t.Fatalf("event old value wrong: %s", ev.Old.Value)
	}
	if ev.New.Value.Cmp(decimal.NewFromInt(1_015_000)) != 0 {
		t.Fatalf("event new value wrong: %s", ev.New.Value)
	}

	select {
	case extra := <-sched.Events():
		t.Fatalf("exactly one event expected, got extra %+v", extra)
	default:
	}

	baseline := sched.Accepted()
	if baseline.Value.Cmp(decimal.NewFromInt(1_015_000)) != 0 {
		t.Fatalf("baseline should advance to 1015000, got %s", baseline.Value)
	}
}

func TestSchedulerUnreliableNeverReplacesBaseline(t *testing.T) {
	src := &settableSource{}
	src.set(1_000_000, 0.9)
	sched := newTestScheduler(src, nil)
	ctx := context.Background()

	sched.Cycle(ctx)
	src.set(1_100_000, 0.2) // 10% move but confidence below floor
	sched.Cycle(ctx)

	select {
	case <-sched.Events():
		t.Fatal("unreliable valuation must not emit an event")
	default:
	}

	baseline := sched.Accepted()
	if baseline.Value.Cmp(decimal.NewFromInt(1_000_000)) != 0 {
		t.Fatalf("unreliable valuation must not replace baseline, got %s", baseline.Value)
	}
}

func TestSchedulerUnreliableInitialValuationNoBaseline(t *testing.T) {
	src := &settableSource{}
	src.set(1_000_000, 0.1)
	sched := newTestScheduler(src, nil)

	sched.Cycle(context.Background())
	if sched.Accepted() != nil {
		t.Fatal("unreliable initial valuation must not become the baseline")
	}
}

func TestSchedulerAnchorsAcceptedValuations(t *testing.T) {
	src := &settableSource{}
	src.set(1_000_000, 0.9)
	anchor := &recordingAnchor{}
	sched := newTestScheduler(src, anchor)
	ctx := context.Background()

	sched.Cycle(ctx)
	src.set(1_020_000, 0.9)
	sched.Cycle(ctx)

	// Anchoring is asynchronous and best-effort.
	deadline := time.Now().Add(time.Second)
	for anchor.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if anchor.count() != 2 {
		t.Fatalf("expected 2 anchored valuations, got %d", anchor.count())
	}
}

func TestSchedulerStaleness(t *testing.T) {
	src := &settableSource{}
	src.set(1_000_000, 0.9)
	agg := NewAggregator([]Source{src}, AggregatorOptions{MinConfidence: 0.7}, zerolog.Nop())
	sched := NewScheduler(agg, nil, SchedulerOptions{Interval: 10 * time.Millisecond, EventBuffer: 4}, zerolog.Nop())

	sched.Cycle(context.Background())

	// Fresh baseline, recent run: not stale.
	if sched.stale() {
		t.Fatal("fresh baseline must not be stale")
	}

	// Age the baseline and the last run beyond the windows.
	sched.mu.Lock()
	aged := *sched.baseline
	aged.Timestamp = time.Now().Add(-time.Minute)
	sched.baseline = &aged
	sched.lastRun = time.Now().Add(-time.Minute)
	sched.mu.Unlock()

	if !sched.stale() {
		t.Fatal("baseline older than 2x interval must be stale")
	}
}
