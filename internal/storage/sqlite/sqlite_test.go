package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/up-only/internal/storage"
	"github.com/rovshanmuradov/up-only/internal/storage/storagetest"
)

func TestSQLiteStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		s, err := Open(context.Background(), filepath.Join(t.TempDir(), "uponly.db"), zaptest.NewLogger(t))
		require.NoError(t, err)
		return s
	})
}

func TestSQLiteReopenKeepsAccounts(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "uponly.db")
	logger := zaptest.NewLogger(t)

	s, err := Open(ctx, path, logger)
	require.NoError(t, err)
	var k [32]byte
	k[0] = 7
	require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
		return tx.Put(ctx, k, "A", []byte("payload"))
	}))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, logger)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.View(ctx, func(tx storage.Tx) error {
		got, err := tx.Get(ctx, k)
		require.NoError(t, err)
		require.Equal(t, []byte("payload"), got)
		return nil
	}))
}
