package wallet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeystoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallets.csv")

	ks, err := Open(path)
	require.NoError(t, err)
	assert.Empty(t, ks.Names())

	alice, created, err := ks.Generate("alice")
	require.NoError(t, err)
	assert.True(t, created)
	again, created, err := ks.Generate("alice")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, alice.PublicKey, again.PublicKey)

	_, _, err = ks.Generate("bob")
	require.NoError(t, err)
	require.NoError(t, ks.Save())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, reopened.Names())

	got, err := reopened.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, alice.PublicKey, got.PublicKey)
}

func TestOpenRejectsBadKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallets.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,private_key\nalice,abc\n"), 0o600))

	_, err := Open(path)
	assert.ErrorContains(t, err, "alice")
}

func TestResolve(t *testing.T) {
	ks, err := Open(filepath.Join(t.TempDir(), "wallets.csv"))
	require.NoError(t, err)
	alice, _, err := ks.Generate("alice")
	require.NoError(t, err)

	key, err := ks.Resolve("alice")
	require.NoError(t, err)
	assert.Equal(t, alice.PublicKey, key)

	other := solana.NewWallet().PublicKey()
	key, err = ks.Resolve(other.String())
	require.NoError(t, err)
	assert.Equal(t, other, key)

	_, err = ks.Resolve("carol")
	assert.ErrorIs(t, err, ErrUnknownWallet)
}

func TestSignTransaction(t *testing.T) {
	w, err := NewWallet("payer", solana.NewWallet().PrivateKey.String())
	require.NoError(t, err)

	ix := solana.NewInstruction(solana.SystemProgramID, solana.AccountMetaSlice{
		solana.Meta(w.PublicKey).SIGNER().WRITE(),
	}, []byte{1})
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{}, solana.TransactionPayer(w.PublicKey))
	require.NoError(t, err)

	require.NoError(t, w.SignTransaction(tx))
	require.Len(t, tx.Signatures, 1)
	assert.NoError(t, tx.VerifySignatures())
}
