package ledger

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// XRPCurrency is the currency code used for the native asset.
const XRPCurrency = "XRP"

var dropsPerXRP = decimal.NewFromInt(1_000_000)

// Amount is a ledger asset amount resolved into one canonical shape.
// The wire format is either a bare string of drops (native XRP) or a
// compound {currency, issuer, value} descriptor (issued token); both
// resolve into this type at the boundary so matching logic never
// inspects raw JSON.
type Amount struct {
	// Native marks the XRP variant. Value then holds drops.
	Native   bool
	Currency string
	Issuer   string
	Value    decimal.Decimal
}

// NativeAmount builds an XRP amount from a drops count.
func NativeAmount(drops decimal.Decimal) Amount {
	return Amount{Native: true, Currency: XRPCurrency, Value: drops}
}

// TokenAmount builds an issued-token amount.
func TokenAmount(currency, issuer string, value decimal.Decimal) Amount {
	return Amount{Currency: currency, Issuer: issuer, Value: value}
}

// SameAsset reports whether two amounts denominate the same asset,
// ignoring their values.
func (a Amount) SameAsset(b Amount) bool {
	if a.Native != b.Native {
		return false
	}
	if a.Native {
		return true
	}
	return strings.EqualFold(a.Currency, b.Currency) && a.Issuer == b.Issuer
}

// XRP converts a native amount from drops to whole XRP.
func (a Amount) XRP() decimal.Decimal {
	if !a.Native {
		return a.Value
	}
	return a.Value.Div(dropsPerXRP)
}

func (a Amount) String() string {
	if a.Native {
		return a.Value.String() + " drops"
	}
	return fmt.Sprintf("%s %s.%s", a.Value.String(), a.Currency, a.Issuer)
}

func parseDrops(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

// UnmarshalJSON resolves the mixed string/object wire shape.
func (a *Amount) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var drops string
		if err := json.Unmarshal(data, &drops); err != nil {
			return err
		}
		value, err := decimal.NewFromString(drops)
		if err != nil {
			return fmt.Errorf("parse native amount %q: %w", drops, err)
		}
		*a = NativeAmount(value)
		return nil
	}

	var token struct {
		Currency string `json:"currency"`
		Issuer   string `json:"issuer"`
		Value    string `json:"value"`
	}
	if err := json.Unmarshal(data, &token); err != nil {
		return err
	}
	value, err := decimal.NewFromString(token.Value)
	if err != nil {
		return fmt.Errorf("parse token amount %q: %w", token.Value, err)
	}
	*a = TokenAmount(token.Currency, token.Issuer, value)
	return nil
}

// MarshalJSON emits the ledger wire shape for the variant.
func (a Amount) MarshalJSON() ([]byte, error) {
	if a.Native {
		return json.Marshal(a.Value.StringFixed(0))
	}
	return json.Marshal(struct {
		Currency string `json:"currency"`
		Issuer   string `json:"issuer"`
		Value    string `json:"value"`
	}{
		Currency: a.Currency,
		Issuer:   a.Issuer,
		Value:    a.Value.String(),
	})
}
