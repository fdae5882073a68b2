package oracle

import (
	"time"

	"github.com/shopspring/decimal"
)

// maxCoefficientOfVariation is the cross-source agreement ceiling above
// which a valuation is considered unreliable.
const maxCoefficientOfVariation = 0.15

// Valuation is one immutable aggregation snapshot. A new cycle supersedes
// it; nothing mutates an existing snapshot.
type Valuation struct {
	Value                  decimal.Decimal
	Confidence             float64
	Variance               float64
	CoefficientOfVariation float64
	SourceCount            int
	Timestamp              time.Time

	// Reliable is derived at aggregation time from the confidence floor
	// and the agreement ceiling. An unreliable valuation never replaces
	// the last accepted baseline.
	Reliable bool

	// Degraded marks the synthetic fallback produced when every source
	// failed and no cache was available.
	Degraded bool

	// FromCache marks a re-served prior valuation, with its age at the
	// time it was served.
	FromCache bool
	CacheAge  time.Duration
}

// Age returns how long ago the valuation was produced.
func (v Valuation) Age(now time.Time) time.Duration {
	return now.Sub(v.Timestamp)
}

// PriceUpdateEvent is published when a reliable valuation moves the
// accepted baseline by more than the update threshold. Consumed once by
// subscribed reconcilers.
type PriceUpdateEvent struct {
	Old Valuation
	New Valuation

	// PriceChangePct is the signed relative change in percent.
	PriceChangePct float64
}
