// ==============================================
// File: internal/engine/trade.go
// ==============================================
package engine

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/up-only/internal/curve"
	"github.com/rovshanmuradov/up-only/internal/fees"
	"github.com/rovshanmuradov/up-only/internal/state"
	"github.com/rovshanmuradov/up-only/internal/storage"
	"github.com/rovshanmuradov/up-only/internal/token"
)

// BuyToken spends amount payment-asset units of user on the curve. The fee
// legs are paid out first; the net leg enters the reserve and mints
// floor(supply * net / reserve) sale units to user.
func (e *Engine) BuyToken(ctx context.Context, user solana.PublicKey, amount uint64, referral *solana.PublicKey) (*Receipt, error) {
	return e.execute(ctx, OpBuyToken, user, func(tx storage.Tx, r *Receipt) error {
		md, err := e.metadata(ctx, tx)
		if err != nil {
			return err
		}
		us, err := e.requirePass(ctx, tx, user)
		if err != nil {
			return err
		}
		ref, hasRef, err := resolveReferral(user, referral, us)
		if err != nil {
			return err
		}
		return e.buy(ctx, tx, md, r, e.cfg.Fees, user, user, amount, ref, hasRef)
	})
}

// buy settles a curve purchase paid by payer and minted to recipient.
func (e *Engine) buy(ctx context.Context, tx storage.Tx, md *state.Metadata, r *Receipt, sched fees.Schedule, payer, recipient solana.PublicKey, amount uint64, ref solana.PublicKey, hasRef bool) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	before, err := e.curveState(ctx, tx)
	if err != nil {
		return err
	}
	split, err := sched.Apply(amount, hasRef, 0)
	if err != nil {
		return err
	}
	quote, err := curve.QuoteBuy(before, split.Net, split.Liquidity)
	if err != nil {
		return err
	}

	if err := e.payFees(ctx, tx, md, payer, split, ref, hasRef); err != nil {
		return err
	}
	if err := token.Transfer(ctx, tx, e.cfg.PaymentMint, payer, e.addr.PoolAuthority(), split.Net+split.Liquidity); err != nil {
		return err
	}
	if err := token.MintTo(ctx, tx, e.cfg.SaleMint, recipient, e.addr.MintAuthority(), quote.Minted); err != nil {
		return err
	}
	after, err := e.verifyUpOnly(ctx, tx, before)
	if err != nil {
		return err
	}

	r.Split = split
	r.Minted = quote.Minted
	r.Before, r.After = before, after
	return nil
}

// SellToken burns units of user's sale asset and pays out
// floor(reserve * units / supply) minus fees.
func (e *Engine) SellToken(ctx context.Context, user solana.PublicKey, units uint64, referral *solana.PublicKey) (*Receipt, error) {
	return e.execute(ctx, OpSellToken, user, func(tx storage.Tx, r *Receipt) error {
		md, err := e.metadata(ctx, tx)
		if err != nil {
			return err
		}
		us, err := e.requirePass(ctx, tx, user)
		if err != nil {
			return err
		}
		ref, hasRef, err := resolveReferral(user, referral, us)
		if err != nil {
			return err
		}
		if units == 0 {
			return ErrZeroAmount
		}
		held, err := token.Balance(ctx, tx, user, e.cfg.SaleMint)
		if err != nil {
			return err
		}
		if held < units {
			return ErrInsufficientFunds.withf("holds %d, selling %d", held, units)
		}
		return e.redeem(ctx, tx, md, r, e.cfg.Fees, user, user, units, ref, hasRef, 0)
	})
}

// redeem burns units held by holder and pays the net proceeds to payee.
// Fees and the net leave the reserve; the liquidity leg stays in it.
func (e *Engine) redeem(ctx context.Context, tx storage.Tx, md *state.Metadata, r *Receipt, sched fees.Schedule, holder, payee solana.PublicKey, units uint64, ref solana.PublicKey, hasRef bool, penaltyBps uint64) error {
	before, err := e.curveState(ctx, tx)
	if err != nil {
		return err
	}
	quote, err := curve.QuoteSell(before, units)
	if err != nil {
		return err
	}
	split, err := sched.Apply(quote.Gross, hasRef, penaltyBps)
	if err != nil {
		return err
	}
	if split.Net == 0 {
		return curve.ErrZeroProceeds
	}

	if err := token.Burn(ctx, tx, e.cfg.SaleMint, holder, units); err != nil {
		return err
	}
	pool := e.addr.PoolAuthority()
	if err := e.payFees(ctx, tx, md, pool, split, ref, hasRef); err != nil {
		return err
	}
	if err := token.Transfer(ctx, tx, e.cfg.PaymentMint, pool, payee, split.Net); err != nil {
		return err
	}
	after, err := e.verifyUpOnly(ctx, tx, before)
	if err != nil {
		return err
	}

	r.Split = split
	r.Burned = units
	r.Paid = split.Net
	r.Before, r.After = before, after
	return nil
}

// QuoteBuy previews BuyToken for amount without committing anything.
func (e *Engine) QuoteBuy(ctx context.Context, amount uint64, hasReferral bool) (fees.Split, curve.Buy, error) {
	var (
		split fees.Split
		quote curve.Buy
	)
	err := e.store.View(ctx, func(tx storage.Tx) error {
		if _, err := e.metadata(ctx, tx); err != nil {
			return err
		}
		before, err := e.curveState(ctx, tx)
		if err != nil {
			return err
		}
		if split, err = e.cfg.Fees.Apply(amount, hasReferral, 0); err != nil {
			return err
		}
		quote, err = curve.QuoteBuy(before, split.Net, split.Liquidity)
		return err
	})
	return split, quote, classify(err)
}

// QuoteSell previews SellToken for units without committing anything.
func (e *Engine) QuoteSell(ctx context.Context, units uint64, hasReferral bool) (fees.Split, curve.Sell, error) {
	var (
		split fees.Split
		quote curve.Sell
	)
	err := e.store.View(ctx, func(tx storage.Tx) error {
		if _, err := e.metadata(ctx, tx); err != nil {
			return err
		}
		before, err := e.curveState(ctx, tx)
		if err != nil {
			return err
		}
		if quote, err = curve.QuoteSell(before, units); err != nil {
			return err
		}
		split, err = e.cfg.Fees.Apply(quote.Gross, hasReferral, 0)
		return err
	})
	return split, quote, classify(err)
}
