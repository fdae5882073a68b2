package reconciler

import (
	"github.com/shopspring/decimal"

	"xrpl-usdt-bot/internal/ledger"
	"xrpl-usdt-bot/internal/oracle"
)

// matchTolerance is the fraction of the desired amount an open offer must
// still carry to count as the standing offer. The slack absorbs partial
// fills without triggering spurious replacement.
var matchTolerance = decimal.NewFromFloat(0.9)

var dropsPerXRP = decimal.NewFromInt(1_000_000)

// DesiredOffer is the configuration-derived target offer. Amount fields
// are in whole units (converted to drops at the boundary for XRP). The
// buy amount is re-derived when price tracking accepts a new valuation.
type DesiredOffer struct {
	SellCurrency string
	SellIssuer   string
	SellAmount   decimal.Decimal

	BuyCurrency string
	BuyIssuer   string

	// BuyAmount is the pre-fee target; matching tolerance anchors here
	// even when the admin fee reduces the created amount.
	BuyAmount decimal.Decimal

	// TotalSupply divides the aggregate valuation down to a unit price.
	TotalSupply decimal.Decimal

	AdminFeeEnabled bool
	AdminFeePct     decimal.Decimal
}

// TakerGets is the sell side as a ledger amount.
func (d DesiredOffer) TakerGets() ledger.Amount {
	return toAmount(d.SellCurrency, d.SellIssuer, d.SellAmount)
}

// TakerPays is the buy side as a ledger amount, with the admin fee
// deducted when enabled.
func (d DesiredOffer) TakerPays() ledger.Amount {
	return toAmount(d.BuyCurrency, d.BuyIssuer, d.effectiveBuyAmount())
}

func (d DesiredOffer) effectiveBuyAmount() decimal.Decimal {
	if !d.AdminFeeEnabled || d.AdminFeePct.Sign() <= 0 {
		return d.BuyAmount
	}
	fee := d.BuyAmount.Mul(d.AdminFeePct).Div(decimal.NewFromInt(100))
	return d.BuyAmount.Sub(fee)
}

// Repriced derives a new target from an accepted valuation:
// buyAmount = round(sellAmount * value / totalSupply).
func (d DesiredOffer) Repriced(v oracle.Valuation) DesiredOffer {
	if d.TotalSupply.Sign() <= 0 {
		return d
	}
	next := d
	next.BuyAmount = d.SellAmount.Mul(v.Value).Div(d.TotalSupply).Round(0)
	return next
}

// Matches reports whether a ledger offer is the standing offer: both
// sides denominate the desired assets and both remaining amounts are at
// least 90% of the pre-fee targets.
func (d DesiredOffer) Matches(offer ledger.Offer) bool {
	wantGets := toAmount(d.SellCurrency, d.SellIssuer, d.SellAmount)
	wantPays := toAmount(d.BuyCurrency, d.BuyIssuer, d.BuyAmount)

	if !offer.TakerGets.SameAsset(wantGets) || !offer.TakerPays.SameAsset(wantPays) {
		return false
	}

	minGets := wantGets.Value.Mul(matchTolerance)
	minPays := wantPays.Value.Mul(matchTolerance)

	return offer.TakerGets.Value.GreaterThanOrEqual(minGets) &&
		offer.TakerPays.Value.GreaterThanOrEqual(minPays)
}

// OnTargetPair reports whether a ledger offer trades the desired asset
// pair in either amount state; cancellation sweeps use this.
func (d DesiredOffer) OnTargetPair(offer ledger.Offer) bool {
	wantGets := toAmount(d.SellCurrency, d.SellIssuer, d.SellAmount)
	wantPays := toAmount(d.BuyCurrency, d.BuyIssuer, d.BuyAmount)
	return offer.TakerGets.SameAsset(wantGets) && offer.TakerPays.SameAsset(wantPays)
}

func toAmount(currency, issuer string, value decimal.Decimal) ledger.Amount {
	if currency == ledger.XRPCurrency {
		return ledger.NativeAmount(value.Mul(dropsPerXRP).Round(0))
	}
	return ledger.TokenAmount(currency, issuer, value)
}
