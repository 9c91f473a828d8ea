// ==============================================
// File: internal/engine/queries.go
// ==============================================
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/up-only/internal/curve"
	"github.com/rovshanmuradov/up-only/internal/state"
	"github.com/rovshanmuradov/up-only/internal/storage"
	"github.com/rovshanmuradov/up-only/internal/storage/models"
	"github.com/rovshanmuradov/up-only/internal/token"
)

// Snapshot is the global state of a deployment.
type Snapshot struct {
	Name     string
	Symbol   string
	Deployer solana.PublicKey
	Team     solana.PublicKey

	Curve curve.State
	Price uint64 // payment-asset base units per whole sale unit

	FoundersPoolOpen bool
	Founders         int
	FoundersCapacity uint8
	FoundersBalance  uint64
	TotalCollected   uint64
	TotalClaimed     uint64
}

// Snapshot reads the current global state.
func (e *Engine) Snapshot(ctx context.Context) (*Snapshot, error) {
	var snap *Snapshot
	err := e.store.View(ctx, func(tx storage.Tx) error {
		md, err := e.metadata(ctx, tx)
		if err != nil {
			return err
		}
		cs, err := e.curveState(ctx, tx)
		if err != nil {
			return err
		}
		price, err := cs.Price()
		if err != nil {
			return err
		}
		s := &Snapshot{
			Name:     md.Name,
			Symbol:   md.Symbol,
			Deployer: md.Deployer,
			Team:     md.Team,
			Curve:    cs,
			Price:    price,
		}
		pool, err := e.foundersPool(ctx, tx)
		switch {
		case err == nil:
			s.FoundersPoolOpen = true
			s.Founders = len(pool.Founders)
			s.FoundersCapacity = pool.Capacity
			s.TotalCollected = pool.TotalCollected
			s.TotalClaimed = pool.TotalClaimed
			if s.FoundersBalance, err = token.Balance(ctx, tx, e.addr.FounderAuthority(), e.cfg.PaymentMint); err != nil {
				return err
			}
		case errors.Is(err, ErrFoundersPoolNotInitialized):
		default:
			return err
		}
		snap = s
		return nil
	})
	return snap, classify(err)
}

// Position is one participant's view of the deployment.
type Position struct {
	Owner       solana.PublicKey
	HasPass     bool
	Referral    solana.PublicKey
	ReferralSet bool

	Payment uint64 // spendable payment-asset units
	Sale    uint64 // spendable sale-asset units

	HasVault bool
	Lock     *state.LockedTokenState // nil when the user never locked
}

// Position reads user's pass, balances and lock.
func (e *Engine) Position(ctx context.Context, user solana.PublicKey) (*Position, error) {
	var pos *Position
	err := e.store.View(ctx, func(tx storage.Tx) error {
		us, err := e.userState(ctx, tx, user)
		if err != nil {
			return err
		}
		p := &Position{
			Owner:       user,
			HasPass:     us.HasPass,
			Referral:    us.Referral,
			ReferralSet: us.ReferralSet,
		}
		if p.Payment, err = token.Balance(ctx, tx, user, e.cfg.PaymentMint); err != nil {
			return err
		}
		if p.Sale, err = token.Balance(ctx, tx, user, e.cfg.SaleMint); err != nil {
			return err
		}
		if p.HasVault, err = state.Exists(ctx, tx, e.addr.VaultAuthority(user)); err != nil {
			return err
		}
		lock, err := e.loadLock(ctx, tx, user)
		switch {
		case err == nil:
			p.Lock = lock
		case errors.Is(err, ErrLockNotOpen):
		default:
			return err
		}
		pos = p
		return nil
	})
	return pos, classify(err)
}

// Locks returns every lock record in key order. Settled locks are
// included; callers filter with Open.
func (e *Engine) Locks(ctx context.Context) ([]*state.LockedTokenState, error) {
	var locks []*state.LockedTokenState
	err := e.store.View(ctx, func(tx storage.Tx) error {
		locks = locks[:0]
		return tx.Scan(ctx, state.KindLock, func(_ solana.PublicKey, data []byte) error {
			var lock state.LockedTokenState
			if err := state.Decode(data, &lock); err != nil {
				return err
			}
			locks = append(locks, &lock)
			return nil
		})
	})
	return locks, classify(err)
}

// MaturedLocks returns open locks whose unlock time has passed.
func (e *Engine) MaturedLocks(ctx context.Context) ([]*state.LockedTokenState, error) {
	all, err := e.Locks(ctx)
	if err != nil {
		return nil, err
	}
	now := e.now().Unix()
	matured := all[:0]
	for _, l := range all {
		if l.Open() && now >= l.UnlockAt {
			matured = append(matured, l)
		}
	}
	return matured, nil
}

// Journal returns committed operations newest first. An empty signer
// returns every operation; limit <= 0 means no limit.
func (e *Engine) Journal(ctx context.Context, signer solana.PublicKey, limit, offset int) ([]*models.Entry, error) {
	var s string
	if !signer.IsZero() {
		s = signer.String()
	}
	entries, err := e.store.ListEntries(ctx, s, limit, offset)
	return entries, classify(err)
}

// Now returns the engine clock.
func (e *Engine) Now() time.Time { return e.now() }
