package token

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/up-only/internal/storage"
	"github.com/rovshanmuradov/up-only/internal/storage/memory"
)

func newKey(t *testing.T) solana.PublicKey {
	t.Helper()
	pk, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return pk.PublicKey()
}

func TestMintTransferBurn(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	mint, authority := newKey(t), newKey(t)
	alice, bob := newKey(t), newKey(t)

	require.NoError(t, store.Update(ctx, func(tx storage.Tx) error {
		require.NoError(t, CreateMint(ctx, tx, mint, 6, authority))
		assert.ErrorIs(t, CreateMint(ctx, tx, mint, 6, authority), ErrMintExists)

		require.NoError(t, MintTo(ctx, tx, mint, alice, authority, 100))
		assert.ErrorIs(t, MintTo(ctx, tx, mint, alice, bob, 1), ErrMintAuthority)

		require.NoError(t, Transfer(ctx, tx, mint, alice, bob, 40))
		assert.ErrorIs(t, Transfer(ctx, tx, mint, alice, bob, 61), ErrInsufficientFunds)
		assert.ErrorIs(t, Transfer(ctx, tx, mint, newKey(t), bob, 1), ErrAccountNotFound)

		require.NoError(t, Burn(ctx, tx, mint, bob, 15))
		assert.ErrorIs(t, Burn(ctx, tx, mint, bob, 26), ErrInsufficientFunds)
		return nil
	}))

	require.NoError(t, store.View(ctx, func(tx storage.Tx) error {
		a, err := Balance(ctx, tx, alice, mint)
		require.NoError(t, err)
		b, err := Balance(ctx, tx, bob, mint)
		require.NoError(t, err)
		m, err := GetMint(ctx, tx, mint)
		require.NoError(t, err)

		assert.Equal(t, uint64(60), a)
		assert.Equal(t, uint64(25), b)
		assert.Equal(t, uint64(85), m.Supply)

		none, err := Balance(ctx, tx, newKey(t), mint)
		require.NoError(t, err)
		assert.Zero(t, none)
		return nil
	}))
}

func TestSetMintAuthority(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	mint, first, second := newKey(t), newKey(t), newKey(t)

	require.NoError(t, store.Update(ctx, func(tx storage.Tx) error {
		require.NoError(t, CreateMint(ctx, tx, mint, 9, first))
		assert.ErrorIs(t, SetMintAuthority(ctx, tx, mint, second, second), ErrMintAuthority)
		require.NoError(t, SetMintAuthority(ctx, tx, mint, first, second))
		assert.ErrorIs(t, MintTo(ctx, tx, mint, first, first, 1), ErrMintAuthority)
		return MintTo(ctx, tx, mint, first, second, 1)
	}))
}

func TestCreateAccountTwice(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	mint, owner := newKey(t), newKey(t)

	require.NoError(t, store.Update(ctx, func(tx storage.Tx) error {
		require.NoError(t, CreateMint(ctx, tx, mint, 9, owner))
		_, err := CreateAccount(ctx, tx, owner, mint)
		require.NoError(t, err)
		_, err = CreateAccount(ctx, tx, owner, mint)
		assert.ErrorIs(t, err, ErrAccountExists)
		_, err = EnsureAccount(ctx, tx, owner, mint)
		assert.NoError(t, err)
		return nil
	}))
}
