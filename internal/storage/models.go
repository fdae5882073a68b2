package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// ValuationRecord is one accepted (or degraded) aggregation result.
type ValuationRecord struct {
	ID          int64
	Value       decimal.Decimal
	Confidence  float64
	CV          float64
	SourceCount int
	Reliable    bool
	Degraded    bool
	FromCache   bool
	ProducedAt  time.Time
	CreatedAt   time.Time
}

// OfferEventRecord captures one offer lifecycle action for auditing.
type OfferEventRecord struct {
	ID            int64
	Action        string
	TxHash        string
	OfferSequence *int64
	SellCurrency  string
	BuyCurrency   string
	SellAmount    decimal.Decimal
	BuyAmount     decimal.Decimal
	CreatedAt     time.Time
}

// RunSummary is the final shutdown snapshot of one bot run.
type RunSummary struct {
	ID              int64
	StartedAt       time.Time
	EndedAt         time.Time
	OffersCreated   int
	OffersCancelled int
	LastOfferHash   string
	ErrorCount      int
}
