package state

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Seed tags.
const (
	SeedMetadata         = "metadata"
	SeedMintAuthority    = "mint_authority"
	SeedPoolAuthority    = "token_account"
	SeedFoundersPool     = "founders_pool"
	SeedFounderAuthority = "founder_authority"
	SeedUserState        = "user_state"
	SeedVault            = "vault"
	SeedLock             = "locked"
)

// Addresses derives every account location from fixed tags and identities.
// It holds no state besides the program id and the two mints, so any caller
// can recompute any address.
type Addresses struct {
	Program     solana.PublicKey
	SaleMint    solana.PublicKey
	PaymentMint solana.PublicKey
}

// NewAddresses builds a deriver for one deployment.
func NewAddresses(program, saleMint, paymentMint solana.PublicKey) Addresses {
	return Addresses{Program: program, SaleMint: saleMint, PaymentMint: paymentMint}
}

// PDA derives a program address from a tag and optional keys.
func PDA(program solana.PublicKey, tag string, keys ...solana.PublicKey) solana.PublicKey {
	seeds := make([][]byte, 0, len(keys)+1)
	seeds = append(seeds, []byte(tag))
	for _, k := range keys {
		seeds = append(seeds, k.Bytes())
	}
	addr, _, err := solana.FindProgramAddress(seeds, program)
	if err != nil {
		// Only possible when no bump yields an off-curve point.
		panic(fmt.Sprintf("derive %s: %v", tag, err))
	}
	return addr
}

// TokenAccountOf is the associated token account of owner for mint.
func TokenAccountOf(owner, mint solana.PublicKey) solana.PublicKey {
	addr, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		panic(fmt.Sprintf("derive token account %s/%s: %v", owner, mint, err))
	}
	return addr
}

func (a Addresses) Metadata() solana.PublicKey {
	return PDA(a.Program, SeedMetadata, a.SaleMint)
}

func (a Addresses) MintAuthority() solana.PublicKey {
	return PDA(a.Program, SeedMintAuthority)
}

// PoolAuthority owns the reserve and the program's seed sale units.
func (a Addresses) PoolAuthority() solana.PublicKey {
	return PDA(a.Program, SeedPoolAuthority, a.PaymentMint)
}

// Reserve is the payment-asset account backing the price.
func (a Addresses) Reserve() solana.PublicKey {
	return TokenAccountOf(a.PoolAuthority(), a.PaymentMint)
}

// ProgramSaleAccount holds the seed supply minted at initialization.
func (a Addresses) ProgramSaleAccount() solana.PublicKey {
	return TokenAccountOf(a.PoolAuthority(), a.SaleMint)
}

func (a Addresses) FoundersPool() solana.PublicKey {
	return PDA(a.Program, SeedFoundersPool)
}

func (a Addresses) FounderAuthority() solana.PublicKey {
	return PDA(a.Program, SeedFounderAuthority)
}

// FoundersTokenAccount holds the accrued but unclaimed founder payments.
func (a Addresses) FoundersTokenAccount() solana.PublicKey {
	return TokenAccountOf(a.FounderAuthority(), a.PaymentMint)
}

func (a Addresses) UserState(user solana.PublicKey) solana.PublicKey {
	return PDA(a.Program, SeedUserState, user)
}

// VaultAuthority is also the key of the UserVault record.
func (a Addresses) VaultAuthority(user solana.PublicKey) solana.PublicKey {
	return PDA(a.Program, SeedVault, user)
}

func (a Addresses) VaultTokenAccount(user solana.PublicKey) solana.PublicKey {
	return TokenAccountOf(a.VaultAuthority(user), a.SaleMint)
}

func (a Addresses) Lock(user solana.PublicKey) solana.PublicKey {
	return PDA(a.Program, SeedLock, user)
}

// PaymentAccount is a participant's payment-asset account.
func (a Addresses) PaymentAccount(owner solana.PublicKey) solana.PublicKey {
	return TokenAccountOf(owner, a.PaymentMint)
}

// SaleAccount is a participant's spendable sale-asset account.
func (a Addresses) SaleAccount(owner solana.PublicKey) solana.PublicKey {
	return TokenAccountOf(owner, a.SaleMint)
}
