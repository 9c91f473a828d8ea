// ==============================================
// File: internal/curve/curve.go
// ==============================================

// Package curve sizes mints and burns against the reserve so that the unit
// price reserve/supply never decreases.
package curve

import (
	"errors"
	"fmt"

	"github.com/rovshanmuradov/up-only/internal/ledger"
)

var (
	ErrNotSeeded      = errors.New("curve: reserve or supply is zero")
	ErrZeroAmount     = errors.New("curve: amount is zero")
	ErrZeroMint       = errors.New("curve: deposit too small to mint any units")
	ErrZeroProceeds   = errors.New("curve: redemption too small to release any reserve")
	ErrExceedsSupply  = errors.New("curve: redemption exceeds circulating supply")
	ErrPriceDecreased = errors.New("curve: post-trade price below pre-trade price")
)

// State is the pair the price is derived from.
type State struct {
	Reserve uint64 // payment-asset base units held by the pool
	Supply  uint64 // sale-asset base units in circulation
}

// Seeded reports whether a price exists.
func (s State) Seeded() bool {
	return s.Reserve > 0 && s.Supply > 0
}

// Price is the payment-asset base units for one whole sale unit, floored.
func (s State) Price() (uint64, error) {
	if !s.Seeded() {
		return 0, ErrNotSeeded
	}
	return ledger.MulDiv(s.Reserve, ledger.SaleUnit, s.Supply)
}

func (s State) String() string {
	return fmt.Sprintf("reserve=%d supply=%d", s.Reserve, s.Supply)
}

// Buy is the result of QuoteBuy.
type Buy struct {
	Minted uint64
	Before State
	After  State
}

// QuoteBuy mints floor(S*net/R) units for a net deposit. retained is an
// extra amount credited to the reserve with no matching mint (liquidity leg,
// or zero).
func QuoteBuy(s State, net, retained uint64) (Buy, error) {
	if !s.Seeded() {
		return Buy{}, ErrNotSeeded
	}
	if net == 0 {
		return Buy{}, ErrZeroAmount
	}
	minted, err := ledger.MulDiv(s.Supply, net, s.Reserve)
	if err != nil {
		return Buy{}, err
	}
	if minted == 0 {
		return Buy{}, ErrZeroMint
	}

	after := s
	if after.Reserve, err = ledger.Add(after.Reserve, net); err != nil {
		return Buy{}, err
	}
	if after.Reserve, err = ledger.Add(after.Reserve, retained); err != nil {
		return Buy{}, err
	}
	if after.Supply, err = ledger.Add(after.Supply, minted); err != nil {
		return Buy{}, err
	}
	if err := CheckUpOnly(s, after); err != nil {
		return Buy{}, err
	}
	return Buy{Minted: minted, Before: s, After: after}, nil
}

// Sell is the result of QuoteSell. Gross leaves the pool minus whatever the
// caller decides to retain; After assumes the whole gross leaves.
type Sell struct {
	Gross  uint64
	Before State
	After  State
}

// QuoteSell releases floor(R*units/S) for burning units.
func QuoteSell(s State, units uint64) (Sell, error) {
	if !s.Seeded() {
		return Sell{}, ErrNotSeeded
	}
	if units == 0 {
		return Sell{}, ErrZeroAmount
	}
	if units >= s.Supply {
		return Sell{}, ErrExceedsSupply
	}
	gross, err := ledger.MulDiv(s.Reserve, units, s.Supply)
	if err != nil {
		return Sell{}, err
	}
	if gross == 0 {
		return Sell{}, ErrZeroProceeds
	}
	after := State{Reserve: s.Reserve - gross, Supply: s.Supply - units}
	if err := CheckUpOnly(s, after); err != nil {
		return Sell{}, err
	}
	return Sell{Gross: gross, Before: s, After: after}, nil
}

// CheckUpOnly verifies after.Reserve/after.Supply >= before.Reserve/before.Supply
// exactly, by cross-multiplication.
func CheckUpOnly(before, after State) error {
	if !before.Seeded() {
		return nil
	}
	if after.Supply == 0 {
		return ErrExceedsSupply
	}
	if ledger.CompareRatios(after.Reserve, after.Supply, before.Reserve, before.Supply) < 0 {
		return fmt.Errorf("%w: before %s, after %s", ErrPriceDecreased, before, after)
	}
	return nil
}
