// ==============================================
// File: internal/program/instructions.go
// ==============================================

// Package program is the instruction surface of the engine: 8-byte
// discriminators followed by borsh arguments, account lists in a fixed
// order, builders for clients and a processor that checks signers and
// dispatches to the engine.
package program

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/up-only/internal/engine"
	"github.com/rovshanmuradov/up-only/internal/state"
)

// Names are the engine operation names; the discriminator is derived from them.
var Names = []string{
	engine.OpInitialize,
	engine.OpInitializeFounders,
	engine.OpAddFounder,
	engine.OpGivePass,
	engine.OpBuyPass,
	engine.OpBuyToken,
	engine.OpSellToken,
	engine.OpInitializeUserVault,
	engine.OpBuyAndLockToken,
	engine.OpEarlyUnlockTokens,
	engine.OpClaimLockedTokens,
	engine.OpClaimFounderShare,
	engine.OpSetTeam,
}

// Discriminator returns the 8-byte prefix of the named instruction.
func Discriminator(name string) []byte {
	return bin.Sighash("global", name)
}

// nameOf resolves instruction data back to its name.
func nameOf(data []byte) (string, bool) {
	if len(data) < 8 {
		return "", false
	}
	for _, name := range Names {
		if bytes.Equal(data[:8], Discriminator(name)) {
			return name, true
		}
	}
	return "", false
}

// hasSubject lists instructions whose second account is the participant
// acted on.
var hasSubject = map[string]bool{
	engine.OpInitialize:        true, // team
	engine.OpAddFounder:        true,
	engine.OpGivePass:          true,
	engine.OpEarlyUnlockTokens: true, // lock owner
	engine.OpClaimLockedTokens: true, // lock owner
	engine.OpSetTeam:           true,
}

// ReferralArgs is an optional referral identity.
type ReferralArgs struct {
	HasReferral bool
	Referral    solana.PublicKey
}

func referralArgs(ref *solana.PublicKey) ReferralArgs {
	if ref == nil || ref.IsZero() {
		return ReferralArgs{}
	}
	return ReferralArgs{HasReferral: true, Referral: *ref}
}

func (a ReferralArgs) ptr() *solana.PublicKey {
	if !a.HasReferral {
		return nil
	}
	ref := a.Referral
	return &ref
}

type BuyPassArgs struct {
	ReferralArgs
}

type AmountArgs struct {
	Amount uint64
	ReferralArgs
}

type BuyAndLockArgs struct {
	Amount   uint64
	LockDays uint64
	ReferralArgs
}

func encode(name string, args any) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(Discriminator(name))
	if args != nil {
		if err := bin.NewBorshEncoder(&buf).Encode(args); err != nil {
			return nil, fmt.Errorf("encode %s args: %w", name, err)
		}
	}
	return buf.Bytes(), nil
}

func decode(data []byte, args any) error {
	return bin.NewBorshDecoder(data[8:]).Decode(args)
}

// accountsFor is the account list of an instruction, in the order the
// processor reads it. index 0 is the signer; index 1 is the subject for
// instructions in hasSubject. The rest are derived and checked.
func accountsFor(addr state.Addresses, name string, signer, subject solana.PublicKey) []*solana.AccountMeta {
	metas := []*solana.AccountMeta{solana.Meta(signer).SIGNER().WRITE()}
	if hasSubject[name] {
		metas = append(metas, solana.Meta(subject))
	}
	ro := func(keys ...solana.PublicKey) {
		for _, k := range keys {
			metas = append(metas, solana.Meta(k))
		}
	}
	rw := func(keys ...solana.PublicKey) {
		for _, k := range keys {
			metas = append(metas, solana.Meta(k).WRITE())
		}
	}

	ro(addr.Metadata())
	switch name {
	case engine.OpInitialize:
		rw(addr.SaleMint, addr.Reserve(), addr.ProgramSaleAccount(), addr.PaymentAccount(signer))
		ro(addr.PaymentMint, addr.MintAuthority(), addr.PoolAuthority())
	case engine.OpInitializeFounders:
		rw(addr.FoundersPool(), addr.FoundersTokenAccount())
		ro(addr.FounderAuthority())
	case engine.OpAddFounder:
		rw(addr.FoundersPool())
	case engine.OpGivePass:
		rw(addr.UserState(subject))
	case engine.OpBuyPass:
		rw(addr.UserState(signer), addr.PaymentAccount(signer), addr.Reserve(), addr.FoundersPool())
	case engine.OpBuyToken, engine.OpSellToken:
		rw(addr.UserState(signer), addr.PaymentAccount(signer), addr.SaleAccount(signer),
			addr.SaleMint, addr.Reserve(), addr.FoundersPool())
		ro(addr.MintAuthority(), addr.PoolAuthority())
	case engine.OpInitializeUserVault:
		rw(addr.VaultAuthority(signer), addr.VaultTokenAccount(signer))
	case engine.OpBuyAndLockToken:
		rw(addr.UserState(signer), addr.PaymentAccount(signer), addr.VaultTokenAccount(signer),
			addr.Lock(signer), addr.SaleMint, addr.Reserve(), addr.FoundersPool())
		ro(addr.VaultAuthority(signer), addr.MintAuthority(), addr.PoolAuthority())
	case engine.OpEarlyUnlockTokens, engine.OpClaimLockedTokens:
		rw(addr.Lock(subject), addr.VaultTokenAccount(subject), addr.PaymentAccount(subject),
			addr.SaleMint, addr.Reserve(), addr.FoundersPool())
		ro(addr.VaultAuthority(subject), addr.PoolAuthority())
	case engine.OpClaimFounderShare:
		rw(addr.FoundersPool(), addr.FoundersTokenAccount(), addr.PaymentAccount(signer))
		ro(addr.FounderAuthority())
	case engine.OpSetTeam:
	}
	return metas
}
