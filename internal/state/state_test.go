package state

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/up-only/internal/storage"
	"github.com/rovshanmuradov/up-only/internal/storage/memory"
)

func key() solana.PublicKey { return solana.NewWallet().PublicKey() }

func TestCodecRoundTrip(t *testing.T) {
	pool := &FoundersPool{
		TotalCollected: 1_000,
		TotalClaimed:   16,
		Capacity:       60,
		Founders:       []solana.PublicKey{key(), key()},
		Claimed:        []uint64{16, 0},
	}

	data, err := Encode(pool)
	require.NoError(t, err)
	assert.Equal(t, Discriminator(KindFoundersPool), data[:discriminatorLen])

	var got FoundersPool
	require.NoError(t, Decode(data, &got))
	if diff := cmp.Diff(*pool, got); diff != "" {
		t.Fatalf("founders pool mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, got.IndexOf(pool.Founders[1]))
	assert.Equal(t, -1, got.IndexOf(key()))
}

func TestDecodeRejectsOtherKind(t *testing.T) {
	data, err := Encode(&UserState{Owner: key(), HasPass: true})
	require.NoError(t, err)

	var md Metadata
	assert.ErrorIs(t, Decode(data, &md), ErrDiscriminator)
	assert.Error(t, Decode(data[:4], &md))
}

func TestLoadSaveExists(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	at := key()

	require.NoError(t, store.Update(ctx, func(tx storage.Tx) error {
		ok, err := Exists(ctx, tx, at)
		require.NoError(t, err)
		assert.False(t, ok)
		return Save(ctx, tx, at, &LockedTokenState{Owner: at, Amount: 940_000, LockDays: 7, Status: LockOpen})
	}))

	require.NoError(t, store.View(ctx, func(tx storage.Tx) error {
		ok, err := Exists(ctx, tx, at)
		require.NoError(t, err)
		assert.True(t, ok)

		var lock LockedTokenState
		require.NoError(t, Load(ctx, tx, at, &lock))
		assert.True(t, lock.Open())
		assert.Equal(t, "open", lock.Status.String())

		var missing UserState
		assert.ErrorIs(t, Load(ctx, tx, key(), &missing), storage.ErrNotFound)
		return nil
	}))
}

func TestAddressesDeterministic(t *testing.T) {
	program, sale, payment := key(), key(), key()
	a := NewAddresses(program, sale, payment)
	b := NewAddresses(program, sale, payment)
	alice, bob := key(), key()

	assert.Equal(t, a.Metadata(), b.Metadata())
	assert.Equal(t, a.Lock(alice), b.Lock(alice))
	assert.NotEqual(t, a.Lock(alice), a.Lock(bob))
	assert.NotEqual(t, a.UserState(alice), a.Lock(alice))
	assert.Equal(t, TokenAccountOf(alice, sale), a.SaleAccount(alice))
	assert.Equal(t, TokenAccountOf(alice, payment), a.PaymentAccount(alice))

	other := NewAddresses(key(), sale, payment)
	assert.NotEqual(t, a.Metadata(), other.Metadata())

	seen := map[solana.PublicKey]string{}
	for name, addr := range map[string]solana.PublicKey{
		"metadata":        a.Metadata(),
		"mint_authority":  a.MintAuthority(),
		"pool":            a.PoolAuthority(),
		"founders_pool":   a.FoundersPool(),
		"founder_auth":    a.FounderAuthority(),
		"vault_authority": a.VaultAuthority(alice),
	} {
		if prev, dup := seen[addr]; dup {
			t.Fatalf("%s and %s derive the same address", prev, name)
		}
		seen[addr] = name
	}
}
