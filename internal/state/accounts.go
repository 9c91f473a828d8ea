// ==============================================
// File: internal/state/accounts.go
// ==============================================

// Package state holds the persisted account records of the engine, the
// derivation of their addresses and their binary layout.
package state

import (
	"github.com/gagliardetto/solana-go"
)

// Record kinds. The kind doubles as the account name hashed into the 8-byte
// discriminator and as the storage scan key.
const (
	KindMetadata     = "TokenMetadata"
	KindUserState    = "UserState"
	KindFoundersPool = "FoundersPool"
	KindLock         = "LockedTokenState"
	KindVault        = "UserVault"
	KindMint         = "Mint"
	KindTokenAccount = "TokenAccount"
)

// Record is anything persisted under a derived address.
type Record interface {
	Kind() string
}

// Metadata is the global configuration written once by Initialize.
type Metadata struct {
	Name          string
	Symbol        string
	Mint          solana.PublicKey // sale asset
	MintAuthority solana.PublicKey
	PaymentMint   solana.PublicKey
	Deployer      solana.PublicKey
	Team          solana.PublicKey // protocol fee recipient
	Initialized   bool
	SeedDeposit   uint64
	SeedSupply    uint64
	CreatedAt     int64
}

func (Metadata) Kind() string { return KindMetadata }

// UserState is the per-participant gate.
type UserState struct {
	Owner       solana.PublicKey
	HasPass     bool
	Referral    solana.PublicKey
	ReferralSet bool
}

func (UserState) Kind() string { return KindUserState }

// FoundersPool is the append-only founder registry. Claimed[i] is the
// cumulative payout of Founders[i].
type FoundersPool struct {
	TotalCollected uint64
	TotalClaimed   uint64
	Capacity       uint8
	Founders       []solana.PublicKey
	Claimed        []uint64
}

func (FoundersPool) Kind() string { return KindFoundersPool }

// IndexOf returns the slot of founder or -1.
func (p *FoundersPool) IndexOf(founder solana.PublicKey) int {
	for i, f := range p.Founders {
		if f.Equals(founder) {
			return i
		}
	}
	return -1
}

// LockStatus is the vesting state machine.
type LockStatus uint8

const (
	LockNone LockStatus = iota
	LockOpen
	LockSettled
	LockEarlyExited
)

func (s LockStatus) String() string {
	switch s {
	case LockOpen:
		return "open"
	case LockSettled:
		return "settled"
	case LockEarlyExited:
		return "early_exited"
	default:
		return "none"
	}
}

// LockedTokenState is one participant's vesting record. Vault references the
// vault token account by its derived address only.
type LockedTokenState struct {
	Owner       solana.PublicKey
	Vault       solana.PublicKey
	Amount      uint64
	LockDays    uint64
	LockedAt    int64
	UnlockAt    int64
	Referral    solana.PublicKey
	HasReferral bool
	Status      LockStatus
	SettledAt   int64
	Proceeds    uint64
}

func (LockedTokenState) Kind() string { return KindLock }

// Open reports whether the lock still holds tokens.
func (l *LockedTokenState) Open() bool {
	return l.Status == LockOpen
}

// UserVault records that custody for a participant's locked tokens exists.
type UserVault struct {
	Owner        solana.PublicKey
	Authority    solana.PublicKey
	TokenAccount solana.PublicKey
}

func (UserVault) Kind() string { return KindVault }

// Mint is a token mint.
type Mint struct {
	Decimals  uint8
	Supply    uint64
	Authority solana.PublicKey
}

func (Mint) Kind() string { return KindMint }

// TokenAccount is a balance of one mint held by one owner.
type TokenAccount struct {
	Mint   solana.PublicKey
	Owner  solana.PublicKey
	Amount uint64
}

func (TokenAccount) Kind() string { return KindTokenAccount }
