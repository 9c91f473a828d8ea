package curve

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/up-only/internal/ledger"
)

func seed() State {
	return State{Reserve: ledger.PaymentUnit, Supply: ledger.SaleUnit}
}

func TestPrice(t *testing.T) {
	p, err := seed().Price()
	require.NoError(t, err)
	assert.Equal(t, ledger.PaymentUnit, p, "seed price is one payment unit per sale unit")

	_, err = State{}.Price()
	assert.ErrorIs(t, err, ErrNotSeeded)
}

func TestQuoteBuy(t *testing.T) {
	b, err := QuoteBuy(seed(), 940*ledger.PaymentUnit, 0)
	require.NoError(t, err)
	assert.Equal(t, 940*ledger.SaleUnit, b.Minted)
	assert.Equal(t, State{Reserve: 941 * ledger.PaymentUnit, Supply: 941 * ledger.SaleUnit}, b.After)

	_, err = QuoteBuy(State{}, 1, 0)
	assert.ErrorIs(t, err, ErrNotSeeded)

	_, err = QuoteBuy(seed(), 0, 0)
	assert.ErrorIs(t, err, ErrZeroAmount)

	// Price is 10^6 base units per 10^9 base units, so 1 payment base unit
	// still mints 1000 sale base units; make the price steep instead.
	steep := State{Reserve: 1_000_000, Supply: 10}
	_, err = QuoteBuy(steep, 1, 0)
	assert.ErrorIs(t, err, ErrZeroMint)
}

func TestQuoteBuyWithRetainedRaisesPrice(t *testing.T) {
	b, err := QuoteBuy(seed(), 100*ledger.PaymentUnit, 10*ledger.PaymentUnit)
	require.NoError(t, err)
	before, _ := b.Before.Price()
	after, _ := b.After.Price()
	assert.Greater(t, after, before)
}

func TestQuoteSell(t *testing.T) {
	s := State{Reserve: 941 * ledger.PaymentUnit, Supply: 941 * ledger.SaleUnit}

	q, err := QuoteSell(s, 940*ledger.SaleUnit)
	require.NoError(t, err)
	assert.Equal(t, 940*ledger.PaymentUnit, q.Gross)
	assert.Equal(t, seed(), q.After)

	_, err = QuoteSell(s, s.Supply)
	assert.ErrorIs(t, err, ErrExceedsSupply)

	_, err = QuoteSell(s, 0)
	assert.ErrorIs(t, err, ErrZeroAmount)

	_, err = QuoteSell(seed(), 999)
	assert.ErrorIs(t, err, ErrZeroProceeds)
}

func TestCheckUpOnly(t *testing.T) {
	assert.NoError(t, CheckUpOnly(seed(), seed()))
	assert.NoError(t, CheckUpOnly(State{}, seed()))
	assert.ErrorIs(t, CheckUpOnly(seed(), State{Reserve: 999_999, Supply: ledger.SaleUnit}), ErrPriceDecreased)
}

// Random walks of buys and sells, including the smallest trades that still
// mint or release anything, never lower the price.
func TestUpOnlyUnderAdversarialRounding(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 1024))

	for walk := 0; walk < 50; walk++ {
		s := seed()
		for step := 0; step < 400; step++ {
			before := s
			if rng.IntN(2) == 0 {
				net := 1 + rng.Uint64N(1_000)
				if step%3 == 0 {
					net = 1 + rng.Uint64N(50*ledger.PaymentUnit)
				}
				b, err := QuoteBuy(s, net, 0)
				if err != nil {
					assert.ErrorIs(t, err, ErrZeroMint)
					continue
				}
				s = b.After
			} else {
				// Never burn the seed supply.
				circulating := s.Supply - ledger.SaleUnit
				if circulating == 0 {
					continue
				}
				units := 1 + rng.Uint64N(circulating)
				if step%2 == 0 {
					units = 1 + rng.Uint64N(min(circulating, 5_000))
				}
				q, err := QuoteSell(s, units)
				if err != nil {
					assert.ErrorIs(t, err, ErrZeroProceeds)
					continue
				}
				s = q.After
			}
			require.GreaterOrEqual(t, ledger.CompareRatios(s.Reserve, s.Supply, before.Reserve, before.Supply), 0,
				"walk %d step %d: %s -> %s", walk, step, before, s)
		}
	}
}
