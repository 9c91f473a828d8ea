package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/up-only/internal/ledger"
)

func withFounders(bps uint64, capacity uint8) func(*Config) {
	return func(c *Config) {
		c.Fees.FoundersBps = bps
		c.FounderCapacity = capacity
	}
}

func TestFoundersRegistry(t *testing.T) {
	f := newFixture(t, withFounders(0, 2))
	a, b, c := f.user(0), f.user(0), f.user(0)

	_, err := f.eng.AddFounder(f.ctx, f.deployer, a)
	assert.ErrorIs(t, err, ErrFoundersPoolNotInitialized)

	_, err = f.eng.InitializeFoundersPool(f.ctx, f.deployer)
	require.NoError(t, err)
	_, err = f.eng.InitializeFoundersPool(f.ctx, f.deployer)
	assert.ErrorIs(t, err, ErrAlreadyInitialized)

	_, err = f.eng.AddFounder(f.ctx, f.deployer, solana.PublicKey{})
	assert.ErrorIs(t, err, ErrEmptyIdentity)
	assert.Equal(t, KindInput, KindOf(err))

	_, err = f.eng.AddFounder(f.ctx, f.deployer, a)
	require.NoError(t, err)
	_, err = f.eng.AddFounder(f.ctx, f.deployer, a)
	assert.ErrorIs(t, err, ErrDuplicateFounder)
	_, err = f.eng.AddFounder(f.ctx, f.deployer, b)
	require.NoError(t, err)

	_, err = f.eng.AddFounder(f.ctx, f.deployer, c)
	assert.ErrorIs(t, err, ErrFounderLimitReached)
	assert.Equal(t, KindCapacity, KindOf(err))

	snap, err := f.eng.Snapshot(f.ctx)
	require.NoError(t, err)
	assert.True(t, snap.FoundersPoolOpen)
	assert.Equal(t, 2, snap.Founders)
	assert.Equal(t, uint8(2), snap.FoundersCapacity)
}

func TestFoundersLegRequiresPool(t *testing.T) {
	f := newFixture(t, withFounders(100, 2))
	u := f.holder(1_000_000)

	_, err := f.eng.BuyToken(f.ctx, u, 1_000_000, nil)
	assert.ErrorIs(t, err, ErrFoundersPoolNotInitialized)
	assert.Equal(t, uint64(1_000_000), f.payment(u))
}

func TestClaimFounderShare(t *testing.T) {
	f := newFixture(t, withFounders(100, 2))
	a, b, stranger := f.user(0), f.user(0), f.user(0)
	_, err := f.eng.InitializeFoundersPool(f.ctx, f.deployer)
	require.NoError(t, err)
	_, err = f.eng.AddFounder(f.ctx, f.deployer, a)
	require.NoError(t, err)
	_, err = f.eng.AddFounder(f.ctx, f.deployer, b)
	require.NoError(t, err)

	_, err = f.eng.ClaimFounderShare(f.ctx, a)
	assert.ErrorIs(t, err, ErrNothingToClaim)

	u := f.holder(1_000_000)
	r, err := f.eng.BuyToken(f.ctx, u, 1_000_000, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000), r.Split.Founders)
	assert.Equal(t, uint64(60_000), r.Split.Protocol)
	assert.Equal(t, uint64(930_000), r.Split.Net)

	snap, err := f.eng.Snapshot(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000), snap.TotalCollected)
	assert.Equal(t, uint64(10_000), snap.FoundersBalance)

	r, err = f.eng.ClaimFounderShare(f.ctx, a)
	require.NoError(t, err)
	assert.Equal(t, uint64(5_000), r.Paid)
	assert.Equal(t, uint64(5_000), f.payment(a))

	_, err = f.eng.ClaimFounderShare(f.ctx, a)
	assert.ErrorIs(t, err, ErrNothingToClaim)

	_, err = f.eng.ClaimFounderShare(f.ctx, stranger)
	assert.ErrorIs(t, err, ErrNotFounder)
	assert.Equal(t, KindAuthorization, KindOf(err))

	// a sell accrues again; each founder is owed half of the new total
	_, err = f.eng.SellToken(f.ctx, u, f.sale(u)/2, nil)
	require.NoError(t, err)
	snap, err = f.eng.Snapshot(f.ctx)
	require.NoError(t, err)
	collected := snap.TotalCollected
	require.Greater(t, collected, uint64(10_000))

	r, err = f.eng.ClaimFounderShare(f.ctx, a)
	require.NoError(t, err)
	assert.Equal(t, collected/2-5_000, r.Paid)
	r, err = f.eng.ClaimFounderShare(f.ctx, b)
	require.NoError(t, err)
	assert.Equal(t, collected/2, r.Paid)

	snap, err = f.eng.Snapshot(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, collected-2*(collected/2), snap.FoundersBalance)
	assert.Equal(t, 2*(collected/2), snap.TotalClaimed)
	f.requireConserved()
}

func TestFounderAddedAfterClaims(t *testing.T) {
	f := newFixture(t, withFounders(100, 3))
	a, b, c := f.user(0), f.user(0), f.user(0)
	_, err := f.eng.InitializeFoundersPool(f.ctx, f.deployer)
	require.NoError(t, err)
	_, err = f.eng.AddFounder(f.ctx, f.deployer, a)
	require.NoError(t, err)

	u := f.holder(1_000_000)
	_, err = f.eng.BuyToken(f.ctx, u, 1_000_000, nil)
	require.NoError(t, err)

	// the share is a third of 10_000 even while a is alone
	r, err := f.eng.ClaimFounderShare(f.ctx, a)
	require.NoError(t, err)
	assert.Equal(t, uint64(3_333), r.Paid)

	_, err = f.eng.AddFounder(f.ctx, f.deployer, b)
	require.NoError(t, err)
	_, err = f.eng.ClaimFounderShare(f.ctx, a)
	assert.ErrorIs(t, err, ErrNothingToClaim)
	r, err = f.eng.ClaimFounderShare(f.ctx, b)
	require.NoError(t, err)
	assert.Equal(t, uint64(3_333), r.Paid)

	_, err = f.eng.AddFounder(f.ctx, f.deployer, c)
	require.NoError(t, err)
	r, err = f.eng.ClaimFounderShare(f.ctx, c)
	require.NoError(t, err)
	assert.Equal(t, uint64(3_333), r.Paid)

	for _, founder := range []solana.PublicKey{a, b, c} {
		_, err = f.eng.ClaimFounderShare(f.ctx, founder)
		assert.ErrorIs(t, err, ErrNothingToClaim)
	}

	snap, err := f.eng.Snapshot(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000), snap.TotalCollected)
	assert.Equal(t, uint64(9_999), snap.TotalClaimed)
	assert.Equal(t, uint64(1), snap.FoundersBalance)
	assert.Equal(t, uint64(9_999), f.payment(a)+f.payment(b)+f.payment(c))
	f.requireConserved()
}

func TestConcurrentFounderClaims(t *testing.T) {
	const capacity = 4
	f := newFixture(t, withFounders(100, capacity))
	_, err := f.eng.InitializeFoundersPool(f.ctx, f.deployer)
	require.NoError(t, err)
	founders := make([]solana.PublicKey, capacity)
	for i := range founders {
		founders[i] = f.user(0)
		_, err = f.eng.AddFounder(f.ctx, f.deployer, founders[i])
		require.NoError(t, err)
	}
	buyers := make([]solana.PublicKey, 4)
	for i := range buyers {
		buyers[i] = f.holder(10 * ledger.PaymentUnit)
	}

	g, ctx := errgroup.WithContext(context.Background())
	for _, u := range buyers {
		g.Go(func() error {
			for i := 0; i < 5; i++ {
				if _, err := f.eng.BuyToken(ctx, u, ledger.PaymentUnit, nil); err != nil {
					return err
				}
			}
			return nil
		})
	}
	for _, founder := range founders {
		g.Go(func() error {
			for i := 0; i < 10; i++ {
				_, err := f.eng.ClaimFounderShare(ctx, founder)
				if err != nil && !errors.Is(err, ErrNothingToClaim) {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	// drain whatever accrued after the last concurrent claim
	for _, founder := range founders {
		_, err := f.eng.ClaimFounderShare(f.ctx, founder)
		if err != nil {
			require.ErrorIs(t, err, ErrNothingToClaim)
		}
	}

	snap, err := f.eng.Snapshot(f.ctx)
	require.NoError(t, err)
	// 20 buys of 1 unit at 1% each
	assert.Equal(t, uint64(20*10_000), snap.TotalCollected)
	assert.LessOrEqual(t, snap.TotalClaimed, snap.TotalCollected)
	assert.Equal(t, snap.TotalCollected-snap.TotalClaimed, snap.FoundersBalance)

	var paid uint64
	for _, founder := range founders {
		got := f.payment(founder)
		assert.Equal(t, snap.TotalCollected/capacity, got)
		paid += got
	}
	assert.Equal(t, snap.TotalClaimed, paid)
	f.requireConserved()
}
