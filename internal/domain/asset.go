package domain

import (
	"encoding/hex"
	"strings"

	"github.com/shopspring/decimal"
)

// dropsPerXRP converts between the ledger's integer drops representation and
// whole units of the native asset.
var dropsPerXRP = decimal.NewFromInt(1_000_000)

// NativeCurrency is the ledger's native asset code. Native amounts travel on
// the wire as integer drop strings rather than (currency, issuer, value)
// objects.
const NativeCurrency = "XRP"

// AssetAmount is an issuer-scoped amount of a single asset. A currency code
// alone does not identify a fungible unit; two assets are the same only when
// both code and issuer match. Native amounts leave Issuer empty.
type AssetAmount struct {
	Currency string          `json:"currency"`
	Issuer   string          `json:"issuer,omitempty"`
	Value    decimal.Decimal `json:"value"`
}

// NativeAmount builds an AssetAmount denominated in the native asset.
func NativeAmount(v decimal.Decimal) AssetAmount {
	return AssetAmount{Currency: NativeCurrency, Value: v}
}

// IsNative reports whether the amount is denominated in the native asset.
func (a AssetAmount) IsNative() bool {
	return a.Currency == NativeCurrency && a.Issuer == ""
}

// SameAsset reports whether b is denominated in the same issuer-scoped asset.
func (a AssetAmount) SameAsset(b AssetAmount) bool {
	return a.Currency == b.Currency && a.Issuer == b.Issuer
}

// Drops returns the native amount as an integer drop string for wire encoding.
func (a AssetAmount) Drops() string {
	return a.Value.Mul(dropsPerXRP).Truncate(0).String()
}

// AmountFromDrops converts a wire-format drop string into a native amount.
func AmountFromDrops(drops string) (AssetAmount, error) {
	d, err := decimal.NewFromString(drops)
	if err != nil {
		return AssetAmount{}, err
	}
	return NativeAmount(d.Div(dropsPerXRP)), nil
}

// EncodeCurrency converts a currency code longer than three characters into
// the ledger's 40-character hex form. Three-character ISO-style codes are
// used as-is.
func EncodeCurrency(code string) string {
	if len(code) <= 3 {
		return code
	}
	h := strings.ToUpper(hex.EncodeToString([]byte(code)))
	if len(h) > 40 {
		return h[:40]
	}
	return h + strings.Repeat("0", 40-len(h))
}

// DecodeCurrency converts a 40-character hex currency code back into its
// readable form, trimming zero padding. Codes that are not valid hex are
// returned unchanged.
func DecodeCurrency(code string) string {
	if len(code) <= 3 {
		return code
	}
	b, err := hex.DecodeString(code)
	if err != nil {
		return code
	}
	return strings.TrimRight(string(b), "\x00")
}
