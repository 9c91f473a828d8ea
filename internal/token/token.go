// ==============================================
// File: internal/token/token.go
// ==============================================

// Package token provides the mint, burn and transfer primitives of the
// underlying token standard. Every call works inside a storage transaction
// so balance moves commit or roll back together with the engine's records.
// Token accounts live at the associated-token address of (owner, mint).
package token

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/up-only/internal/ledger"
	"github.com/rovshanmuradov/up-only/internal/state"
	"github.com/rovshanmuradov/up-only/internal/storage"
)

var (
	ErrMintExists        = errors.New("token: mint already exists")
	ErrMintNotFound      = errors.New("token: mint not found")
	ErrAccountExists     = errors.New("token: account already exists")
	ErrAccountNotFound   = errors.New("token: account not found")
	ErrInsufficientFunds = errors.New("token: insufficient funds")
	ErrOwnerMismatch     = errors.New("token: owner does not match")
	ErrMintAuthority     = errors.New("token: invalid mint authority")
	ErrMintMismatch      = errors.New("token: account mint does not match")
)

// CreateMint stores a new mint with zero supply.
func CreateMint(ctx context.Context, tx storage.Tx, mint solana.PublicKey, decimals uint8, authority solana.PublicKey) error {
	exists, err := state.Exists(ctx, tx, mint)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrMintExists, mint)
	}
	return state.Save(ctx, tx, mint, &state.Mint{Decimals: decimals, Authority: authority})
}

// GetMint loads a mint.
func GetMint(ctx context.Context, tx storage.Tx, mint solana.PublicKey) (*state.Mint, error) {
	var m state.Mint
	if err := state.Load(ctx, tx, mint, &m); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrMintNotFound, mint)
		}
		return nil, err
	}
	return &m, nil
}

// SetMintAuthority hands the mint over, e.g. to a program-derived authority.
func SetMintAuthority(ctx context.Context, tx storage.Tx, mint, current, next solana.PublicKey) error {
	m, err := GetMint(ctx, tx, mint)
	if err != nil {
		return err
	}
	if !m.Authority.Equals(current) {
		return ErrMintAuthority
	}
	m.Authority = next
	return state.Save(ctx, tx, mint, m)
}

// CreateAccount creates the token account of owner for mint.
func CreateAccount(ctx context.Context, tx storage.Tx, owner, mint solana.PublicKey) (solana.PublicKey, error) {
	if _, err := GetMint(ctx, tx, mint); err != nil {
		return solana.PublicKey{}, err
	}
	addr := state.TokenAccountOf(owner, mint)
	exists, err := state.Exists(ctx, tx, addr)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if exists {
		return solana.PublicKey{}, fmt.Errorf("%w: %s", ErrAccountExists, addr)
	}
	return addr, state.Save(ctx, tx, addr, &state.TokenAccount{Mint: mint, Owner: owner})
}

// EnsureAccount creates the account if it does not exist yet.
func EnsureAccount(ctx context.Context, tx storage.Tx, owner, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, err := CreateAccount(ctx, tx, owner, mint)
	if errors.Is(err, ErrAccountExists) {
		return state.TokenAccountOf(owner, mint), nil
	}
	return addr, err
}

// AccountExists reports whether owner has an account for mint.
func AccountExists(ctx context.Context, tx storage.Tx, owner, mint solana.PublicKey) (bool, error) {
	return state.Exists(ctx, tx, state.TokenAccountOf(owner, mint))
}

func loadAccount(ctx context.Context, tx storage.Tx, owner, mint solana.PublicKey) (solana.PublicKey, *state.TokenAccount, error) {
	addr := state.TokenAccountOf(owner, mint)
	var acc state.TokenAccount
	if err := state.Load(ctx, tx, addr, &acc); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return addr, nil, fmt.Errorf("%w: owner %s mint %s", ErrAccountNotFound, owner, mint)
		}
		return addr, nil, err
	}
	if !acc.Mint.Equals(mint) {
		return addr, nil, ErrMintMismatch
	}
	if !acc.Owner.Equals(owner) {
		return addr, nil, ErrOwnerMismatch
	}
	return addr, &acc, nil
}

// Balance returns owner's balance of mint; a missing account holds zero.
func Balance(ctx context.Context, tx storage.Tx, owner, mint solana.PublicKey) (uint64, error) {
	_, acc, err := loadAccount(ctx, tx, owner, mint)
	if errors.Is(err, ErrAccountNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return acc.Amount, nil
}

// Transfer moves amount of mint from one owner's account to another's,
// creating the destination account when needed.
func Transfer(ctx context.Context, tx storage.Tx, mint, from, to solana.PublicKey, amount uint64) error {
	if amount == 0 {
		return nil
	}
	srcAddr, src, err := loadAccount(ctx, tx, from, mint)
	if err != nil {
		return err
	}
	if src.Amount < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientFunds, from, src.Amount, amount)
	}
	if from.Equals(to) {
		return nil
	}
	src.Amount -= amount

	dstAddr, err := EnsureAccount(ctx, tx, to, mint)
	if err != nil {
		return err
	}
	// reload after EnsureAccount so a fresh account is read back
	_, dst, err := loadAccount(ctx, tx, to, mint)
	if err != nil {
		return err
	}
	if dst.Amount, err = ledger.Add(dst.Amount, amount); err != nil {
		return err
	}
	if err := state.Save(ctx, tx, srcAddr, src); err != nil {
		return err
	}
	return state.Save(ctx, tx, dstAddr, dst)
}

// MintTo creates amount new units into to's account. authority must be the
// mint authority.
func MintTo(ctx context.Context, tx storage.Tx, mint, to, authority solana.PublicKey, amount uint64) error {
	m, err := GetMint(ctx, tx, mint)
	if err != nil {
		return err
	}
	if !m.Authority.Equals(authority) {
		return ErrMintAuthority
	}
	if amount == 0 {
		return nil
	}
	if m.Supply, err = ledger.Add(m.Supply, amount); err != nil {
		return err
	}
	addr, err := EnsureAccount(ctx, tx, to, mint)
	if err != nil {
		return err
	}
	_, acc, err := loadAccount(ctx, tx, to, mint)
	if err != nil {
		return err
	}
	if acc.Amount, err = ledger.Add(acc.Amount, amount); err != nil {
		return err
	}
	if err := state.Save(ctx, tx, addr, acc); err != nil {
		return err
	}
	return state.Save(ctx, tx, mint, m)
}

// Burn destroys amount units held by from.
func Burn(ctx context.Context, tx storage.Tx, mint, from solana.PublicKey, amount uint64) error {
	if amount == 0 {
		return nil
	}
	m, err := GetMint(ctx, tx, mint)
	if err != nil {
		return err
	}
	addr, acc, err := loadAccount(ctx, tx, from, mint)
	if err != nil {
		return err
	}
	if acc.Amount < amount {
		return fmt.Errorf("%w: %s holds %d, burning %d", ErrInsufficientFunds, from, acc.Amount, amount)
	}
	acc.Amount -= amount
	if m.Supply, err = ledger.Sub(m.Supply, amount); err != nil {
		return err
	}
	if err := state.Save(ctx, tx, addr, acc); err != nil {
		return err
	}
	return state.Save(ctx, tx, mint, m)
}
