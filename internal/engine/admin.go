// ==============================================
// File: internal/engine/admin.go
// ==============================================
package engine

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/up-only/internal/state"
	"github.com/rovshanmuradov/up-only/internal/storage"
	"github.com/rovshanmuradov/up-only/internal/token"
)

// Initialize writes the global metadata and seeds the curve: the seed
// deposit moves from the deployer into the reserve, mint authority passes
// from the deployer to the program, and the seed supply is minted into the
// program's own sale account. team receives the protocol fee leg; a zero
// team means the deployer.
func (e *Engine) Initialize(ctx context.Context, deployer, team solana.PublicKey) (*Receipt, error) {
	return e.execute(ctx, OpInitialize, deployer, func(tx storage.Tx, r *Receipt) error {
		exists, err := state.Exists(ctx, tx, e.addr.Metadata())
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyInitialized.withf("metadata %s", e.addr.Metadata())
		}

		sale, err := token.GetMint(ctx, tx, e.cfg.SaleMint)
		if err != nil {
			return err
		}
		if !sale.Authority.Equals(deployer) {
			return ErrUnauthorized.withf("deployer does not hold the sale mint authority")
		}
		if sale.Supply != 0 {
			return ErrAlreadyInitialized.withf("sale mint already has supply %d", sale.Supply)
		}
		if _, err := token.GetMint(ctx, tx, e.cfg.PaymentMint); err != nil {
			return err
		}
		if team.IsZero() {
			team = deployer
		}

		poolAuth := e.addr.PoolAuthority()
		if _, err := token.EnsureAccount(ctx, tx, poolAuth, e.cfg.PaymentMint); err != nil {
			return err
		}
		if err := token.Transfer(ctx, tx, e.cfg.PaymentMint, deployer, poolAuth, e.cfg.SeedDeposit); err != nil {
			return err
		}
		if err := token.SetMintAuthority(ctx, tx, e.cfg.SaleMint, deployer, e.addr.MintAuthority()); err != nil {
			return err
		}
		if err := token.MintTo(ctx, tx, e.cfg.SaleMint, poolAuth, e.addr.MintAuthority(), e.cfg.SeedSupply); err != nil {
			return err
		}

		md := &state.Metadata{
			Name:          e.cfg.Name,
			Symbol:        e.cfg.Symbol,
			Mint:          e.cfg.SaleMint,
			MintAuthority: e.addr.MintAuthority(),
			PaymentMint:   e.cfg.PaymentMint,
			Deployer:      deployer,
			Team:          team,
			Initialized:   true,
			SeedDeposit:   e.cfg.SeedDeposit,
			SeedSupply:    e.cfg.SeedSupply,
			CreatedAt:     e.now().Unix(),
		}
		if err := state.Save(ctx, tx, e.addr.Metadata(), md); err != nil {
			return err
		}

		r.Minted = e.cfg.SeedSupply
		r.After, err = e.curveState(ctx, tx)
		return err
	})
}

// SetTeam replaces the protocol fee recipient. Deployer only.
func (e *Engine) SetTeam(ctx context.Context, signer, team solana.PublicKey) (*Receipt, error) {
	return e.execute(ctx, OpSetTeam, signer, func(tx storage.Tx, r *Receipt) error {
		md, err := e.metadata(ctx, tx)
		if err != nil {
			return err
		}
		if err := e.requireDeployer(md, signer); err != nil {
			return err
		}
		if team.IsZero() {
			return ErrEmptyIdentity.withf("team")
		}
		md.Team = team
		r.Subject = team
		return state.Save(ctx, tx, e.addr.Metadata(), md)
	})
}

// InitializeFoundersPool creates the empty founder registry and its payment
// account. Deployer only.
func (e *Engine) InitializeFoundersPool(ctx context.Context, signer solana.PublicKey) (*Receipt, error) {
	return e.execute(ctx, OpInitializeFounders, signer, func(tx storage.Tx, r *Receipt) error {
		md, err := e.metadata(ctx, tx)
		if err != nil {
			return err
		}
		if err := e.requireDeployer(md, signer); err != nil {
			return err
		}
		exists, err := state.Exists(ctx, tx, e.addr.FoundersPool())
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyInitialized.withf("founders pool")
		}
		if _, err := token.EnsureAccount(ctx, tx, e.addr.FounderAuthority(), e.cfg.PaymentMint); err != nil {
			return err
		}
		return state.Save(ctx, tx, e.addr.FoundersPool(), &state.FoundersPool{
			Capacity: e.cfg.FounderCapacity,
		})
	})
}

// AddFounder appends founder to the registry. Deployer only.
func (e *Engine) AddFounder(ctx context.Context, signer, founder solana.PublicKey) (*Receipt, error) {
	return e.execute(ctx, OpAddFounder, signer, func(tx storage.Tx, r *Receipt) error {
		md, err := e.metadata(ctx, tx)
		if err != nil {
			return err
		}
		if err := e.requireDeployer(md, signer); err != nil {
			return err
		}
		if founder.IsZero() {
			return ErrEmptyIdentity.withf("founder")
		}
		pool, err := e.foundersPool(ctx, tx)
		if err != nil {
			return err
		}
		if pool.IndexOf(founder) >= 0 {
			return ErrDuplicateFounder.withf("founder %s", founder)
		}
		if len(pool.Founders) >= int(pool.Capacity) {
			return ErrFounderLimitReached.withf("capacity %d", pool.Capacity)
		}
		pool.Founders = append(pool.Founders, founder)
		pool.Claimed = append(pool.Claimed, 0)
		r.Subject = founder
		return state.Save(ctx, tx, e.addr.FoundersPool(), pool)
	})
}

func (e *Engine) foundersPool(ctx context.Context, tx storage.Tx) (*state.FoundersPool, error) {
	var pool state.FoundersPool
	if err := state.Load(ctx, tx, e.addr.FoundersPool(), &pool); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrFoundersPoolNotInitialized
		}
		return nil, err
	}
	return &pool, nil
}

// ClaimFounderShare pays founder the part of its equal share of everything
// collected so far that it has not been paid yet. Each share is
// totalCollected / capacity, so all shares together never exceed what the
// pool received.
func (e *Engine) ClaimFounderShare(ctx context.Context, founder solana.PublicKey) (*Receipt, error) {
	return e.execute(ctx, OpClaimFounderShare, founder, func(tx storage.Tx, r *Receipt) error {
		if _, err := e.metadata(ctx, tx); err != nil {
			return err
		}
		pool, err := e.foundersPool(ctx, tx)
		if err != nil {
			return err
		}
		idx := pool.IndexOf(founder)
		if idx < 0 {
			return ErrNotFounder.withf("%s", founder)
		}

		entitled := pool.TotalCollected / uint64(pool.Capacity)
		if entitled <= pool.Claimed[idx] {
			return ErrNothingToClaim
		}
		owed := entitled - pool.Claimed[idx]
		held, err := token.Balance(ctx, tx, e.addr.FounderAuthority(), e.cfg.PaymentMint)
		if err != nil {
			return err
		}
		owed = min(owed, held)
		if owed == 0 {
			return ErrNothingToClaim
		}

		if err := token.Transfer(ctx, tx, e.cfg.PaymentMint, e.addr.FounderAuthority(), founder, owed); err != nil {
			return err
		}
		pool.Claimed[idx] += owed
		pool.TotalClaimed += owed
		r.Paid = owed
		return state.Save(ctx, tx, e.addr.FoundersPool(), pool)
	})
}
