package ledger

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestAmountUnmarshalNative(t *testing.T) {
	var a Amount
	if err := json.Unmarshal([]byte(`"1500000"`), &a); err != nil {
		t.Fatalf("unmarshal native amount: %v", err)
	}
	if !a.Native {
		t.Fatal("string amount should resolve to the native variant")
	}
	if a.Value.Cmp(decimal.NewFromInt(1_500_000)) != 0 {
		t.Fatalf("expected 1500000 drops, got %s", a.Value)
	}
	if a.XRP().Cmp(decimal.RequireFromString("1.5")) != 0 {
		t.Fatalf("expected 1.5 XRP, got %s", a.XRP())
	}
}

func TestAmountUnmarshalToken(t *testing.T) {
	var a Amount
	payload := `{"currency":"USD","issuer":"rIssuer1","value":"2500.75"}`
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		t.Fatalf("unmarshal token amount: %v", err)
	}
	if a.Native {
		t.Fatal("object amount should resolve to the token variant")
	}
	if a.Currency != "USD" || a.Issuer != "rIssuer1" {
		t.Fatalf("unexpected asset identity: %+v", a)
	}
	if a.Value.Cmp(decimal.RequireFromString("2500.75")) != 0 {
		t.Fatalf("unexpected value: %s", a.Value)
	}
}

func TestAmountMarshalRoundsNativeToDrops(t *testing.T) {
	raw, err := json.Marshal(NativeAmount(decimal.NewFromInt(42)))
	if err != nil {
		t.Fatalf("marshal native: %v", err)
	}
	if string(raw) != `"42"` {
		t.Fatalf("expected bare drops string, got %s", raw)
	}
}

func TestAmountMarshalToken(t *testing.T) {
	raw, err := json.Marshal(TokenAmount("PROP", "rIssuer2", decimal.NewFromInt(1000)))
	if err != nil {
		t.Fatalf("marshal token: %v", err)
	}
	var decoded map[string]string
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode marshalled token: %v", err)
	}
	if decoded["currency"] != "PROP" || decoded["issuer"] != "rIssuer2" || decoded["value"] != "1000" {
		t.Fatalf("unexpected wire shape: %s", raw)
	}
}

func TestSameAsset(t *testing.T) {
	usd := TokenAmount("USD", "rIssuer1", decimal.NewFromInt(1))
	usdOther := TokenAmount("USD", "rIssuer2", decimal.NewFromInt(9))
	xrp := NativeAmount(decimal.NewFromInt(1))

	if !usd.SameAsset(TokenAmount("usd", "rIssuer1", decimal.NewFromInt(5))) {
		t.Fatal("currency comparison should be case-insensitive")
	}
	if usd.SameAsset(usdOther) {
		t.Fatal("different issuers must not match")
	}
	if usd.SameAsset(xrp) {
		t.Fatal("token must not match native")
	}
	if !xrp.SameAsset(NativeAmount(decimal.NewFromInt(7))) {
		t.Fatal("native amounts always share the asset")
	}
}
