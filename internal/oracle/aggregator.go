package oracle

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Estimate is a single source's self-reported valuation.
type Estimate struct {
	Value      decimal.Decimal
	Confidence float64

	// Weight biases the aggregate mean; zero means unspecified and
	// defaults to an equal share.
	Weight float64
}

// Source produces independent price estimates. Each fetch is timeboxed
// by the aggregator; a failing source is excluded, never propagated.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (Estimate, error)
}

// ErrNoValuation indicates every source failed and neither a cached
// valuation nor a synthetic fallback was available.
var ErrNoValuation = errors.New("oracle: no valuation available")

// AggregatorOptions tune aggregation behaviour.
type AggregatorOptions struct {
	MinConfidence float64
	SourceTimeout time.Duration

	// FallbackValue is the synthetic estimate served, flagged as
	// degraded, when every source fails and no cache exists. Zero
	// disables the fallback.
	FallbackValue decimal.Decimal
}

// Aggregator fans out over the configured sources and folds the surviving
// estimates into one confidence-weighted Valuation.
type Aggregator struct {
	sources []Source
	opts    AggregatorOptions
	logger  zerolog.Logger

	mu     sync.Mutex
	cached *Valuation
}

// NewAggregator constructs a valuation aggregator.
func NewAggregator(sources []Source, opts AggregatorOptions, logger zerolog.Logger) *Aggregator {
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = 10 * time.Second
	}
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = 0.7
	}
	return &Aggregator{
		sources: sources,
		opts:    opts,
		logger:  logger.With().Str("component", "aggregator").Logger(),
	}
}

// Aggregate fetches all sources concurrently and computes the weighted
// mean, population variance, coefficient of variation, and mean
// confidence. On total failure the cached valuation takes priority over
// the synthetic fallback; both paths are flagged, never silent.
func (a *Aggregator) Aggregate(ctx context.Context) (Valuation, error) {
	estimates := a.fetchAll(ctx)

	if len(estimates) == 0 {
		return a.fallback()
	}

	v := a.fold(estimates)

	a.mu.Lock()
	a.cached = &v
	a.mu.Unlock()

	a.logger.Info().
		Str("value", v.Value.String()).
		Float64("confidence", v.Confidence).
		Float64("cv", v.CoefficientOfVariation).
		Int("sources", v.SourceCount).
		Bool("reliable", v.Reliable).
		Msg("valuation aggregated")

	return v, nil
}

// Cached returns the last successful aggregation, if any.
func (a *Aggregator) Cached() *Valuation {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cached == nil {
		return nil
	}
	v := *a.cached
	return &v
}

func (a *Aggregator) fetchAll(ctx context.Context) []Estimate {
	var (
		mu        sync.Mutex
		estimates []Estimate
		wg        sync.WaitGroup
	)

	for _, src := range a.sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()

			fetchCtx, cancel := context.WithTimeout(ctx, a.opts.SourceTimeout)
			defer cancel()

			est, err := src.Fetch(fetchCtx)
			if err != nil {
				a.logger.Warn().Err(err).Str("source", src.Name()).Msg("source fetch failed")
				return
			}
			if est.Value.Sign() <= 0 {
				a.logger.Warn().Str("source", src.Name()).Msg("source returned non-positive value")
				return
			}

			mu.Lock()
			estimates = append(estimates, est)
			mu.Unlock()
		}(src)
	}
	wg.Wait()

	return estimates
}

func (a *Aggregator) fold(estimates []Estimate) Valuation {
	n := len(estimates)
	equalShare := 1.0 / float64(n)

	weightedSum := decimal.Zero
	weightTotal := decimal.Zero
	confidenceSum := 0.0

	for _, est := range estimates {
		w := est.Weight
		if w <= 0 {
			w = equalShare
		}
		wd := decimal.NewFromFloat(w)
		weightedSum = weightedSum.Add(est.Value.Mul(wd))
		weightTotal = weightTotal.Add(wd)
		confidenceSum += est.Confidence
	}

	mean := weightedSum.Div(weightTotal)

	// Population variance over the raw values; statistics stay float64,
	// amounts stay decimal.
	rawMean := 0.0
	for _, est := range estimates {
		rawMean += est.Value.InexactFloat64()
	}
	rawMean /= float64(n)

	variance := 0.0
	for _, est := range estimates {
		d := est.Value.InexactFloat64() - rawMean
		variance += d * d
	}
	variance /= float64(n)

	cv := 0.0
	if rawMean != 0 {
		cv = math.Sqrt(variance) / rawMean
	}

	confidence := confidenceSum / float64(n)

	return Valuation{
		Value:                  mean,
		Confidence:             confidence,
		Variance:               variance,
		CoefficientOfVariation: cv,
		SourceCount:            n,
		Timestamp:              time.Now().UTC(),
		Reliable:               confidence >= a.opts.MinConfidence && cv < maxCoefficientOfVariation,
	}
}

// fallback serves the cached valuation first, then the configured
// synthetic estimate flagged as degraded.
func (a *Aggregator) fallback() (Valuation, error) {
	a.mu.Lock()
	cached := a.cached
	a.mu.Unlock()

	if cached != nil {
		v := *cached
		v.FromCache = true
		v.CacheAge = time.Since(cached.Timestamp)
		a.logger.Warn().Dur("age", v.CacheAge).Msg("all sources failed; serving cached valuation")
		return v, nil
	}

	if a.opts.FallbackValue.Sign() > 0 {
		a.logger.Warn().Str("value", a.opts.FallbackValue.String()).
			Msg("all sources failed; serving degraded synthetic valuation")
		return Valuation{
			Value:       a.opts.FallbackValue,
			Confidence:  0,
			SourceCount: 0,
			Timestamp:   time.Now().UTC(),
			Degraded:    true,
		}, nil
	}

	return Valuation{}, ErrNoValuation
}
