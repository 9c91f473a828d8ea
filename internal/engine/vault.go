// ==============================================
// File: internal/engine/vault.go
// ==============================================
package engine

import (
	"context"
	"errors"
	"slices"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/up-only/internal/curve"
	"github.com/rovshanmuradov/up-only/internal/fees"
	"github.com/rovshanmuradov/up-only/internal/state"
	"github.com/rovshanmuradov/up-only/internal/storage"
	"github.com/rovshanmuradov/up-only/internal/token"
)

// InitializeUserVault creates the custody account that holds user's locked
// units. It must exist before BuyAndLockToken.
func (e *Engine) InitializeUserVault(ctx context.Context, user solana.PublicKey) (*Receipt, error) {
	return e.execute(ctx, OpInitializeUserVault, user, func(tx storage.Tx, r *Receipt) error {
		if _, err := e.metadata(ctx, tx); err != nil {
			return err
		}
		key := e.addr.VaultAuthority(user)
		exists, err := state.Exists(ctx, tx, key)
		if err != nil {
			return err
		}
		if exists {
			return ErrVaultAlreadyInitialized.withf("user %s", user)
		}
		acct, err := token.EnsureAccount(ctx, tx, key, e.cfg.SaleMint)
		if err != nil {
			return err
		}
		return state.Save(ctx, tx, key, &state.UserVault{
			Owner:        user,
			Authority:    key,
			TokenAccount: acct,
		})
	})
}

// BuyAndLockToken buys like BuyToken but mints into user's vault and opens a
// lock maturing lockDays whole days from now. A user holds at most one open
// lock. The referral given here is kept on the lock and used again when it
// settles.
func (e *Engine) BuyAndLockToken(ctx context.Context, user solana.PublicKey, amount, lockDays uint64, referral *solana.PublicKey) (*Receipt, error) {
	return e.execute(ctx, OpBuyAndLockToken, user, func(tx storage.Tx, r *Receipt) error {
		if !slices.Contains(e.cfg.LockDays, lockDays) {
			return ErrInvalidLockPeriod.withf("%d days, allowed %v", lockDays, e.cfg.LockDays)
		}
		md, err := e.metadata(ctx, tx)
		if err != nil {
			return err
		}
		us, err := e.requirePass(ctx, tx, user)
		if err != nil {
			return err
		}
		vaultKey := e.addr.VaultAuthority(user)
		hasVault, err := state.Exists(ctx, tx, vaultKey)
		if err != nil {
			return err
		}
		if !hasVault {
			return ErrVaultNotInitialized.withf("user %s", user)
		}
		prev, err := e.loadLock(ctx, tx, user)
		if err != nil && !errors.Is(err, ErrLockNotOpen) {
			return err
		}
		if prev != nil && prev.Open() {
			return ErrLockExists.withf("user %s, unlocks at %d", user, prev.UnlockAt)
		}
		ref, hasRef, err := resolveReferral(user, referral, us)
		if err != nil {
			return err
		}

		sched := e.cfg.Fees.ForLock(lockDays)
		if err := e.buy(ctx, tx, md, r, sched, user, vaultKey, amount, ref, hasRef); err != nil {
			return err
		}
		// the minted units must be worth something at maturity
		if err := redeemable(r.After, r.Minted, sched, hasRef); err != nil {
			return err
		}

		now := e.now().Unix()
		lock := &state.LockedTokenState{
			Owner:       user,
			Vault:       e.addr.VaultTokenAccount(user),
			Amount:      r.Minted,
			LockDays:    lockDays,
			LockedAt:    now,
			UnlockAt:    now + int64(lockDays)*SecondsPerDay,
			Referral:    ref,
			HasReferral: hasRef,
			Status:      state.LockOpen,
		}
		r.Lock = lock
		return state.Save(ctx, tx, e.addr.Lock(user), lock)
	})
}

// EarlyUnlockTokens settles owner's lock before maturity at the early-exit
// penalty. Only the owner may call it.
func (e *Engine) EarlyUnlockTokens(ctx context.Context, signer, owner solana.PublicKey) (*Receipt, error) {
	return e.execute(ctx, OpEarlyUnlockTokens, signer, func(tx storage.Tx, r *Receipt) error {
		if !signer.Equals(owner) {
			return ErrUnauthorized.withf("only the lock owner may unlock early")
		}
		lock, err := e.loadLock(ctx, tx, owner)
		if err != nil {
			return err
		}
		if !lock.Open() {
			return ErrLockNotOpen.withf("lock is %s", lock.Status)
		}
		if e.now().Unix() >= lock.UnlockAt {
			return ErrLockMatured.withf("matured at %d", lock.UnlockAt)
		}
		return e.settleLock(ctx, tx, r, lock, state.LockEarlyExited, e.cfg.Fees.EarlyUnlockPenaltyBps)
	})
}

// ClaimLockedTokens settles owner's matured lock. Anyone may call it; the
// proceeds always go to the owner.
func (e *Engine) ClaimLockedTokens(ctx context.Context, cranker, owner solana.PublicKey) (*Receipt, error) {
	return e.execute(ctx, OpClaimLockedTokens, cranker, func(tx storage.Tx, r *Receipt) error {
		lock, err := e.loadLock(ctx, tx, owner)
		if err != nil {
			return err
		}
		if !lock.Open() {
			return ErrLockNotOpen.withf("lock is %s", lock.Status)
		}
		if now := e.now().Unix(); now < lock.UnlockAt {
			return ErrLockNotMatured.withf("%ds remaining", lock.UnlockAt-now)
		}
		return e.settleLock(ctx, tx, r, lock, state.LockSettled, 0)
	})
}

// settleLock sells the locked units at the lock's tier. Units worth nothing
// after fees are burned and the lock closes with zero proceeds.
func (e *Engine) settleLock(ctx context.Context, tx storage.Tx, r *Receipt, lock *state.LockedTokenState, status state.LockStatus, penaltyBps uint64) error {
	md, err := e.metadata(ctx, tx)
	if err != nil {
		return err
	}
	vault := e.addr.VaultAuthority(lock.Owner)
	sched := e.cfg.Fees.ForLock(lock.LockDays)
	err = e.redeem(ctx, tx, md, r, sched, vault, lock.Owner, lock.Amount, lock.Referral, lock.HasReferral, penaltyBps)
	if errors.Is(err, curve.ErrZeroProceeds) {
		err = e.burnDust(ctx, tx, r, vault, lock.Amount)
	}
	if err != nil {
		return err
	}
	lock.Status = status
	lock.Amount = 0
	lock.SettledAt = e.now().Unix()
	lock.Proceeds = r.Paid
	r.Subject = lock.Owner
	r.Lock = lock
	return state.Save(ctx, tx, e.addr.Lock(lock.Owner), lock)
}

// burnDust burns units without paying anything out. The reserve stays, so
// the price can only rise.
func (e *Engine) burnDust(ctx context.Context, tx storage.Tx, r *Receipt, holder solana.PublicKey, units uint64) error {
	before, err := e.curveState(ctx, tx)
	if err != nil {
		return err
	}
	if err := token.Burn(ctx, tx, e.cfg.SaleMint, holder, units); err != nil {
		return err
	}
	after, err := e.verifyUpOnly(ctx, tx, before)
	if err != nil {
		return err
	}
	r.Split = fees.Split{}
	r.Burned = units
	r.Paid = 0
	r.Before, r.After = before, after
	return nil
}

// redeemable rejects units whose sale at s would pay nothing after fees.
func redeemable(s curve.State, units uint64, sched fees.Schedule, hasRef bool) error {
	quote, err := curve.QuoteSell(s, units)
	if err != nil {
		return err
	}
	split, err := sched.Apply(quote.Gross, hasRef, 0)
	if err != nil {
		return err
	}
	if split.Net == 0 {
		return curve.ErrZeroProceeds
	}
	return nil
}

// loadLock returns ErrLockNotOpen when user never locked.
func (e *Engine) loadLock(ctx context.Context, tx storage.Tx, user solana.PublicKey) (*state.LockedTokenState, error) {
	var lock state.LockedTokenState
	if err := state.Load(ctx, tx, e.addr.Lock(user), &lock); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrLockNotOpen.withf("user %s has no lock", user)
		}
		return nil, err
	}
	return &lock, nil
}
