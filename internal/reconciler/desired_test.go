package reconciler

import (
	"testing"

	"github.com/shopspring/decimal"

	"xrpl-usdt-bot/internal/ledger"
	"xrpl-usdt-bot/internal/oracle"
)

func testDesired() DesiredOffer {
	return DesiredOffer{
		SellCurrency: "PROP",
		SellIssuer:   "rPropIssuer",
		SellAmount:   decimal.NewFromInt(100_000),
		BuyCurrency:  "USD",
		BuyIssuer:    "rUSDIssuer",
		BuyAmount:    decimal.NewFromInt(50_000),
		TotalSupply:  decimal.NewFromInt(100_000),
	}
}

func pairOffer(gets, pays decimal.Decimal) ledger.Offer {
	return ledger.Offer{
		Sequence:  7,
		TakerGets: ledger.TokenAmount("PROP", "rPropIssuer", gets),
		TakerPays: ledger.TokenAmount("USD", "rUSDIssuer", pays),
	}
}

func TestMatchesWithinTolerance(t *testing.T) {
	desired := testDesired()

	// 91% of the sell target is still the standing offer.
	offer := pairOffer(decimal.NewFromInt(91_000), decimal.NewFromInt(50_000))
	if !desired.Matches(offer) {
		t.Fatal("91% remaining should match the 90% tolerance")
	}
}

func TestMatchesBelowToleranceTriggersRecreation(t *testing.T) {
	desired := testDesired()

	offer := pairOffer(decimal.NewFromInt(89_000), decimal.NewFromInt(50_000))
	if desired.Matches(offer) {
		t.Fatal("89% remaining must not match")
	}
}

func TestMatchesRejectsWrongIssuer(t *testing.T) {
	desired := testDesired()

	offer := ledger.Offer{
		TakerGets: ledger.TokenAmount("PROP", "rSomeoneElse", decimal.NewFromInt(100_000)),
		TakerPays: ledger.TokenAmount("USD", "rUSDIssuer", decimal.NewFromInt(50_000)),
	}
	if desired.Matches(offer) {
		t.Fatal("different sell issuer must not match")
	}
	if desired.OnTargetPair(offer) {
		t.Fatal("different sell issuer is not the target pair")
	}
}

func TestRepricedDerivesBuyAmount(t *testing.T) {
	desired := testDesired()
	v := oracle.Valuation{Value: decimal.NewFromInt(1_015_000)}

	next := desired.Repriced(v)

	// buyAmount = round(sellAmount * value / totalSupply)
	// = round(100000 * 1015000 / 100000) = 1015000
	if next.BuyAmount.Cmp(decimal.NewFromInt(1_015_000)) != 0 {
		t.Fatalf("expected repriced buy amount 1015000, got %s", next.BuyAmount)
	}
	if desired.BuyAmount.Cmp(decimal.NewFromInt(50_000)) != 0 {
		t.Fatal("repricing must not mutate the original")
	}
}

func TestRepricedRounds(t *testing.T) {
	desired := testDesired()
	desired.SellAmount = decimal.NewFromInt(3)
	desired.TotalSupply = decimal.NewFromInt(7)
	v := oracle.Valuation{Value: decimal.NewFromInt(100)}

	next := desired.Repriced(v)
	// 3*100/7 = 42.857... -> 43
	if next.BuyAmount.Cmp(decimal.NewFromInt(43)) != 0 {
		t.Fatalf("expected rounded 43, got %s", next.BuyAmount)
	}
}

func TestAdminFeeReducesCreatedAmountNotTolerance(t *testing.T) {
	desired := testDesired()
	desired.AdminFeeEnabled = true
	desired.AdminFeePct = decimal.NewFromInt(2)

	pays := desired.TakerPays()
	// 50000 - 2% = 49000
	if pays.Value.Cmp(decimal.NewFromInt(49_000)) != 0 {
		t.Fatalf("expected fee-adjusted 49000, got %s", pays.Value)
	}

	// Matching tolerance stays anchored to the pre-fee target: 91% of
	// 50000 still matches.
	offer := pairOffer(decimal.NewFromInt(100_000), decimal.NewFromInt(45_500))
	if !desired.Matches(offer) {
		t.Fatal("tolerance must anchor to the pre-fee buy amount")
	}
}

func TestNativeSellSideConvertsToDrops(t *testing.T) {
	desired := testDesired()
	desired.BuyCurrency = ledger.XRPCurrency
	desired.BuyIssuer = ""
	desired.BuyAmount = decimal.RequireFromString("1.5")

	pays := desired.TakerPays()
	if !pays.Native {
		t.Fatal("XRP side must resolve to the native variant")
	}
	if pays.Value.Cmp(decimal.NewFromInt(1_500_000)) != 0 {
		t.Fatalf("expected 1500000 drops, got %s", pays.Value)
	}
}
