// ==============================================
// File: internal/program/builder.go
// ==============================================
package program

import (
	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/up-only/internal/engine"
	"github.com/rovshanmuradov/up-only/internal/state"
)

// Builder builds instructions for one deployment.
type Builder struct {
	addr state.Addresses
}

func NewBuilder(addr state.Addresses) *Builder {
	return &Builder{addr: addr}
}

func (b *Builder) build(name string, signer, subject solana.PublicKey, args any) (solana.Instruction, error) {
	data, err := encode(name, args)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(b.addr.Program, accountsFor(b.addr, name, signer, subject), data), nil
}

// Initialize builds the one-time setup; team may be zero for the deployer.
func (b *Builder) Initialize(deployer, team solana.PublicKey) (solana.Instruction, error) {
	if team.IsZero() {
		team = deployer
	}
	return b.build(engine.OpInitialize, deployer, team, nil)
}

func (b *Builder) InitializeFoundersPool(deployer solana.PublicKey) (solana.Instruction, error) {
	return b.build(engine.OpInitializeFounders, deployer, solana.PublicKey{}, nil)
}

func (b *Builder) AddFounder(deployer, founder solana.PublicKey) (solana.Instruction, error) {
	return b.build(engine.OpAddFounder, deployer, founder, nil)
}

func (b *Builder) GivePass(deployer, target solana.PublicKey) (solana.Instruction, error) {
	return b.build(engine.OpGivePass, deployer, target, nil)
}

func (b *Builder) BuyPass(user solana.PublicKey, referral *solana.PublicKey) (solana.Instruction, error) {
	return b.build(engine.OpBuyPass, user, solana.PublicKey{}, &BuyPassArgs{ReferralArgs: referralArgs(referral)})
}

func (b *Builder) BuyToken(user solana.PublicKey, amount uint64, referral *solana.PublicKey) (solana.Instruction, error) {
	return b.build(engine.OpBuyToken, user, solana.PublicKey{}, &AmountArgs{Amount: amount, ReferralArgs: referralArgs(referral)})
}

func (b *Builder) SellToken(user solana.PublicKey, amount uint64, referral *solana.PublicKey) (solana.Instruction, error) {
	return b.build(engine.OpSellToken, user, solana.PublicKey{}, &AmountArgs{Amount: amount, ReferralArgs: referralArgs(referral)})
}

func (b *Builder) InitializeUserVault(user solana.PublicKey) (solana.Instruction, error) {
	return b.build(engine.OpInitializeUserVault, user, solana.PublicKey{}, nil)
}

func (b *Builder) BuyAndLockToken(user solana.PublicKey, amount, lockDays uint64, referral *solana.PublicKey) (solana.Instruction, error) {
	return b.build(engine.OpBuyAndLockToken, user, solana.PublicKey{}, &BuyAndLockArgs{
		Amount:       amount,
		LockDays:     lockDays,
		ReferralArgs: referralArgs(referral),
	})
}

// EarlyUnlockTokens targets owner's lock; only owner may sign it.
func (b *Builder) EarlyUnlockTokens(signer, owner solana.PublicKey) (solana.Instruction, error) {
	return b.build(engine.OpEarlyUnlockTokens, signer, owner, nil)
}

// ClaimLockedTokens may be signed by any cranker.
func (b *Builder) ClaimLockedTokens(cranker, owner solana.PublicKey) (solana.Instruction, error) {
	return b.build(engine.OpClaimLockedTokens, cranker, owner, nil)
}

func (b *Builder) ClaimFounderShare(founder solana.PublicKey) (solana.Instruction, error) {
	return b.build(engine.OpClaimFounderShare, founder, solana.PublicKey{}, nil)
}

func (b *Builder) SetTeam(deployer, team solana.PublicKey) (solana.Instruction, error) {
	return b.build(engine.OpSetTeam, deployer, team, nil)
}

// Transaction wraps one instruction into an unsigned transaction paid by
// its signer.
func Transaction(ix solana.Instruction) (*solana.Transaction, error) {
	metas := ix.Accounts()
	if len(metas) == 0 {
		return nil, ErrMissingSigner
	}
	return solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{}, solana.TransactionPayer(metas[0].PublicKey))
}
