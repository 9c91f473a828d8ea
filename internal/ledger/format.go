package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FormatUnits renders base units as a decimal string, e.g. 1500000 with 6
// decimals becomes "1.5".
func FormatUnits(amount uint64, decimals int32) string {
	return decimal.NewFromUint64(amount).Shift(-decimals).String()
}

// FormatPayment renders payment-asset base units.
func FormatPayment(amount uint64) string {
	return FormatUnits(amount, PaymentDecimals)
}

// FormatSale renders sale-asset base units.
func FormatSale(amount uint64) string {
	return FormatUnits(amount, SaleDecimals)
}

// ParseUnits converts a human decimal string into base units. More
// fractional digits than the token supports is an error rather than a
// silent truncation.
func ParseUnits(s string, decimals int32) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("invalid amount %q: negative", s)
	}
	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("invalid amount %q: more than %d fractional digits", s, decimals)
	}
	bi := scaled.BigInt()
	if !bi.IsUint64() {
		return 0, fmt.Errorf("invalid amount %q: %w", s, ErrOverflow)
	}
	return bi.Uint64(), nil
}
