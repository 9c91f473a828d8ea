package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/up-only/internal/curve"
	"github.com/rovshanmuradov/up-only/internal/ledger"
	"github.com/rovshanmuradov/up-only/internal/state"
	"github.com/rovshanmuradov/up-only/internal/storage"
	"github.com/rovshanmuradov/up-only/internal/storage/memory"
	"github.com/rovshanmuradov/up-only/internal/token"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *memory.Store
	eng   *Engine
	cfg   Config
	clock *fakeClock

	deployer solana.PublicKey
	team     solana.PublicKey
	faucet   solana.PublicKey // payment mint authority
}

func newKey(t *testing.T) solana.PublicKey {
	t.Helper()
	pk, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return pk.PublicKey()
}

// newFixture deploys mints, funds the deployer and initializes the engine.
func newFixture(t *testing.T, opts ...func(*Config)) *fixture {
	t.Helper()
	f := newUninitialized(t, opts...)
	_, err := f.eng.Initialize(f.ctx, f.deployer, f.team)
	require.NoError(t, err)
	return f
}

func newUninitialized(t *testing.T, opts ...func(*Config)) *fixture {
	t.Helper()
	f := &fixture{
		t:        t,
		ctx:      context.Background(),
		store:    memory.New(),
		clock:    &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		deployer: newKey(t),
		team:     newKey(t),
		faucet:   newKey(t),
	}
	f.cfg = DefaultConfig(newKey(t), newKey(t), newKey(t))
	for _, opt := range opts {
		opt(&f.cfg)
	}

	require.NoError(t, f.store.Update(f.ctx, func(tx storage.Tx) error {
		if err := token.CreateMint(f.ctx, tx, f.cfg.SaleMint, ledger.SaleDecimals, f.deployer); err != nil {
			return err
		}
		if err := token.CreateMint(f.ctx, tx, f.cfg.PaymentMint, ledger.PaymentDecimals, f.faucet); err != nil {
			return err
		}
		return token.MintTo(f.ctx, tx, f.cfg.PaymentMint, f.deployer, f.faucet, 10*ledger.PaymentUnit)
	}))

	eng, err := New(f.store, f.cfg, zaptest.NewLogger(t), WithClock(f.clock.Now))
	require.NoError(t, err)
	f.eng = eng
	return f
}

func (f *fixture) fund(user solana.PublicKey, amount uint64) {
	f.t.Helper()
	require.NoError(f.t, f.store.Update(f.ctx, func(tx storage.Tx) error {
		return token.MintTo(f.ctx, tx, f.cfg.PaymentMint, user, f.faucet, amount)
	}))
}

func (f *fixture) user(payment uint64) solana.PublicKey {
	f.t.Helper()
	u := newKey(f.t)
	if payment > 0 {
		f.fund(u, payment)
	}
	return u
}

// holder returns a funded user granted a pass for free, so the curve is not
// moved by the pass price.
func (f *fixture) holder(payment uint64) solana.PublicKey {
	f.t.Helper()
	u := f.user(payment)
	_, err := f.eng.GivePass(f.ctx, f.deployer, u)
	require.NoError(f.t, err)
	return u
}

func (f *fixture) payment(owner solana.PublicKey) uint64 {
	f.t.Helper()
	return f.balance(owner, f.cfg.PaymentMint)
}

func (f *fixture) sale(owner solana.PublicKey) uint64 {
	f.t.Helper()
	return f.balance(owner, f.cfg.SaleMint)
}

func (f *fixture) balance(owner, mint solana.PublicKey) uint64 {
	f.t.Helper()
	var out uint64
	require.NoError(f.t, f.store.View(f.ctx, func(tx storage.Tx) error {
		var err error
		out, err = token.Balance(f.ctx, tx, owner, mint)
		return err
	}))
	return out
}

func (f *fixture) curve() curve.State {
	f.t.Helper()
	var st curve.State
	require.NoError(f.t, f.store.View(f.ctx, func(tx storage.Tx) error {
		var err error
		st, err = f.eng.curveState(f.ctx, tx)
		return err
	}))
	return st
}

// ledgerTotals sums every token account per mint.
func (f *fixture) ledgerTotals() map[solana.PublicKey]uint64 {
	f.t.Helper()
	totals := make(map[solana.PublicKey]uint64)
	require.NoError(f.t, f.store.View(f.ctx, func(tx storage.Tx) error {
		return tx.Scan(f.ctx, state.KindTokenAccount, func(_ solana.PublicKey, data []byte) error {
			var acc state.TokenAccount
			if err := state.Decode(data, &acc); err != nil {
				return err
			}
			totals[acc.Mint] += acc.Amount
			return nil
		})
	}))
	return totals
}

func (f *fixture) mintSupply(mint solana.PublicKey) uint64 {
	f.t.Helper()
	var supply uint64
	require.NoError(f.t, f.store.View(f.ctx, func(tx storage.Tx) error {
		m, err := token.GetMint(f.ctx, tx, mint)
		if err != nil {
			return err
		}
		supply = m.Supply
		return nil
	}))
	return supply
}

// requireConserved checks that no token was created or lost outside the
// mints' own bookkeeping.
func (f *fixture) requireConserved() {
	f.t.Helper()
	totals := f.ledgerTotals()
	require.Equal(f.t, f.mintSupply(f.cfg.PaymentMint), totals[f.cfg.PaymentMint], "payment asset")
	require.Equal(f.t, f.mintSupply(f.cfg.SaleMint), totals[f.cfg.SaleMint], "sale asset")
}

func ptr(k solana.PublicKey) *solana.PublicKey { return &k }
