// ==============================================
// File: internal/ledger/ledger.go
// ==============================================

// Package ledger implements the integer arithmetic shared by the curve, the
// fee splitter and the engine. All quantities are base units of a token with
// a fixed number of decimals; there is no floating point anywhere.
package ledger

import (
	"errors"
	"math/bits"
)

const (
	// PaymentDecimals is the scale of the payment asset (USDC-like).
	PaymentDecimals = 6
	// SaleDecimals is the scale of the sale asset.
	SaleDecimals = 9

	// PaymentUnit is one whole payment token in base units.
	PaymentUnit uint64 = 1_000_000
	// SaleUnit is one whole sale token in base units.
	SaleUnit uint64 = 1_000_000_000

	// BpsDenominator is 100% in basis points.
	BpsDenominator uint64 = 10_000
)

var (
	ErrOverflow     = errors.New("ledger: arithmetic overflow")
	ErrUnderflow    = errors.New("ledger: arithmetic underflow")
	ErrDivideByZero = errors.New("ledger: division by zero")
)

// Add returns a+b or ErrOverflow.
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Sub returns a-b or ErrUnderflow.
func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrUnderflow
	}
	return diff, nil
}

// MulDiv computes floor(a*b/c) with a 128-bit intermediate product.
func MulDiv(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, ErrDivideByZero
	}
	hi, lo := bits.Mul64(a, b)
	// bits.Div64 panics when the quotient does not fit in 64 bits.
	if hi >= c {
		return 0, ErrOverflow
	}
	q, _ := bits.Div64(hi, lo, c)
	return q, nil
}

// MulDivCeil computes ceil(a*b/c).
func MulDivCeil(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, ErrDivideByZero
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		return 0, ErrOverflow
	}
	q, rem := bits.Div64(hi, lo, c)
	if rem != 0 {
		return Add(q, 1)
	}
	return q, nil
}

// Bps returns floor(amount*bps/10_000).
func Bps(amount, bps uint64) (uint64, error) {
	return MulDiv(amount, bps, BpsDenominator)
}

// CompareRatios compares a/b against c/d without division, returning -1, 0
// or 1. b and d must be non-zero.
func CompareRatios(a, b, c, d uint64) int {
	lhsHi, lhsLo := bits.Mul64(a, d)
	rhsHi, rhsLo := bits.Mul64(c, b)
	switch {
	case lhsHi < rhsHi:
		return -1
	case lhsHi > rhsHi:
		return 1
	case lhsLo < rhsLo:
		return -1
	case lhsLo > rhsLo:
		return 1
	default:
		return 0
	}
}
