// Package storagetest is the behavior every storage backend must share.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/up-only/internal/storage"
	"github.com/rovshanmuradov/up-only/internal/storage/models"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) storage.Store

var errAbort = errors.New("abort")

func key(b byte) solana.PublicKey {
	var k solana.PublicKey
	k[0] = b
	return k
}

// Run executes the shared suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		err := s.View(context.Background(), func(tx storage.Tx) error {
			_, err := tx.Get(context.Background(), key(1))
			return err
		})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("CommitAndRead", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
			if err := tx.Put(ctx, key(1), "A", []byte{1, 2, 3}); err != nil {
				return err
			}
			got, err := tx.Get(ctx, key(1))
			require.NoError(t, err)
			assert.Equal(t, []byte{1, 2, 3}, got, "writes are visible inside the transaction")
			return tx.Put(ctx, key(1), "A", []byte{4})
		}))

		require.NoError(t, s.View(ctx, func(tx storage.Tx) error {
			got, err := tx.Get(ctx, key(1))
			require.NoError(t, err)
			assert.Equal(t, []byte{4}, got)
			return nil
		}))
	})

	t.Run("RollbackOnError", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
			return tx.Put(ctx, key(1), "A", []byte{1})
		}))

		err := s.Update(ctx, func(tx storage.Tx) error {
			require.NoError(t, tx.Put(ctx, key(1), "A", []byte{9}))
			require.NoError(t, tx.Put(ctx, key(2), "A", []byte{9}))
			require.NoError(t, tx.Append(ctx, &models.Entry{Operation: "aborted", Signer: "x"}))
			return errAbort
		})
		assert.ErrorIs(t, err, errAbort)

		require.NoError(t, s.View(ctx, func(tx storage.Tx) error {
			got, err := tx.Get(ctx, key(1))
			require.NoError(t, err)
			assert.Equal(t, []byte{1}, got)
			_, err = tx.Get(ctx, key(2))
			assert.ErrorIs(t, err, storage.ErrNotFound)
			return nil
		}))

		entries, err := s.ListEntries(ctx, "x", 10, 0)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("ViewIsReadOnly", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()
		err := s.View(ctx, func(tx storage.Tx) error {
			return tx.Put(ctx, key(1), "A", []byte{1})
		})
		assert.ErrorIs(t, err, storage.ErrReadOnly)
	})

	t.Run("ScanByKindInKeyOrder", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
			for _, b := range []byte{3, 1, 2} {
				if err := tx.Put(ctx, key(b), "A", []byte{b}); err != nil {
					return err
				}
			}
			return tx.Put(ctx, key(9), "B", []byte{9})
		}))

		require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
			// staged write must be included
			require.NoError(t, tx.Put(ctx, key(4), "A", []byte{4}))

			var seen []byte
			err := tx.Scan(ctx, "A", func(k solana.PublicKey, data []byte) error {
				seen = append(seen, data[0])
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, []byte{1, 2, 3, 4}, seen)
			return nil
		}))
	})

	t.Run("JournalNewestFirst", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		for i, op := range []string{"buy", "sell", "buy"} {
			signer := "alice"
			if i == 1 {
				signer = "bob"
			}
			require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
				return tx.Append(ctx, &models.Entry{Operation: op, Signer: signer, PaymentAmount: uint64(i + 1)})
			}))
		}

		all, err := s.ListEntries(ctx, "", 10, 0)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, uint64(3), all[0].PaymentAmount)
		assert.False(t, all[0].CreatedAt.IsZero())

		alice, err := s.ListEntries(ctx, "alice", 1, 1)
		require.NoError(t, err)
		require.Len(t, alice, 1)
		assert.Equal(t, uint64(1), alice[0].PaymentAmount)
	})

	t.Run("LargeAmountsRoundTrip", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		const big = ^uint64(0) - 5
		require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
			return tx.Append(ctx, &models.Entry{Operation: "buy", Signer: "whale", PaymentAmount: big, ReserveAfter: big})
		}))
		entries, err := s.ListEntries(ctx, "whale", 1, 0)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, big, entries[0].PaymentAmount)
		assert.Equal(t, big, entries[0].ReserveAfter)
	})
}
