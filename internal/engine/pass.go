// ==============================================
// File: internal/engine/pass.go
// ==============================================
package engine

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/up-only/internal/state"
	"github.com/rovshanmuradov/up-only/internal/storage"
	"github.com/rovshanmuradov/up-only/internal/token"
)

// GivePass grants target a pass for free. Deployer only.
func (e *Engine) GivePass(ctx context.Context, signer, target solana.PublicKey) (*Receipt, error) {
	return e.execute(ctx, OpGivePass, signer, func(tx storage.Tx, r *Receipt) error {
		md, err := e.metadata(ctx, tx)
		if err != nil {
			return err
		}
		if err := e.requireDeployer(md, signer); err != nil {
			return err
		}
		if target.IsZero() {
			return ErrEmptyIdentity.withf("pass target")
		}
		us, err := e.userState(ctx, tx, target)
		if err != nil {
			return err
		}
		if us.HasPass {
			return ErrAlreadyHasPass.withf("user %s", target)
		}
		us.HasPass = true
		r.Subject = target
		return state.Save(ctx, tx, e.addr.UserState(target), us)
	})
}

// BuyPass sells user a pass at the configured price. The fee split applies
// to the price; its net leg goes to the reserve with nothing minted, so the
// unit price rises. A referral given here is remembered for the user's later
// trades.
func (e *Engine) BuyPass(ctx context.Context, user solana.PublicKey, referral *solana.PublicKey) (*Receipt, error) {
	return e.execute(ctx, OpBuyPass, user, func(tx storage.Tx, r *Receipt) error {
		md, err := e.metadata(ctx, tx)
		if err != nil {
			return err
		}
		us, err := e.userState(ctx, tx, user)
		if err != nil {
			return err
		}
		if us.HasPass {
			return ErrAlreadyHasPass.withf("user %s", user)
		}
		if referral != nil && !referral.IsZero() {
			if referral.Equals(user) {
				return ErrInvalidReferral
			}
			if !us.ReferralSet {
				us.Referral = *referral
				us.ReferralSet = true
			}
		}
		ref, hasRef, err := resolveReferral(user, nil, us)
		if err != nil {
			return err
		}

		before, err := e.curveState(ctx, tx)
		if err != nil {
			return err
		}
		split, err := e.cfg.Fees.Apply(e.cfg.PassPrice, hasRef, 0)
		if err != nil {
			return err
		}
		if err := e.payFees(ctx, tx, md, user, split, ref, hasRef); err != nil {
			return err
		}
		if err := token.Transfer(ctx, tx, e.cfg.PaymentMint, user, e.addr.PoolAuthority(), split.Net+split.Liquidity); err != nil {
			return err
		}
		after, err := e.verifyUpOnly(ctx, tx, before)
		if err != nil {
			return err
		}

		us.Owner = user
		us.HasPass = true
		r.Split = split
		r.Before, r.After = before, after
		return state.Save(ctx, tx, e.addr.UserState(user), us)
	})
}
