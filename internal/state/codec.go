package state

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/up-only/internal/storage"
)

const discriminatorLen = 8

var ErrDiscriminator = errors.New("state: account discriminator mismatch")

// Discriminator is the first eight bytes of sha256("account:<Kind>").
func Discriminator(kind string) []byte {
	return bin.Sighash("account", kind)
}

// Encode writes discriminator || borsh(rec).
func Encode(rec Record) ([]byte, error) {
	body, err := bin.MarshalBorsh(rec)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", rec.Kind(), err)
	}
	out := make([]byte, 0, discriminatorLen+len(body))
	out = append(out, Discriminator(rec.Kind())...)
	return append(out, body...), nil
}

// Decode fills rec from data produced by Encode.
func Decode(data []byte, rec Record) error {
	if len(data) < discriminatorLen {
		return fmt.Errorf("decode %s: %d bytes", rec.Kind(), len(data))
	}
	if !bytes.Equal(data[:discriminatorLen], Discriminator(rec.Kind())) {
		return fmt.Errorf("%w: want %s", ErrDiscriminator, rec.Kind())
	}
	if err := bin.UnmarshalBorsh(rec, data[discriminatorLen:]); err != nil {
		return fmt.Errorf("decode %s: %w", rec.Kind(), err)
	}
	return nil
}

// Load reads and decodes the record at key. It returns storage.ErrNotFound
// unwrapped-compatible when the account does not exist.
func Load(ctx context.Context, tx storage.Tx, key solana.PublicKey, rec Record) error {
	data, err := tx.Get(ctx, key)
	if err != nil {
		return err
	}
	return Decode(data, rec)
}

// Exists reports whether an account is stored at key.
func Exists(ctx context.Context, tx storage.Tx, key solana.PublicKey) (bool, error) {
	_, err := tx.Get(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Save encodes rec and stages it at key.
func Save(ctx context.Context, tx storage.Tx, key solana.PublicKey, rec Record) error {
	data, err := Encode(rec)
	if err != nil {
		return err
	}
	return tx.Put(ctx, key, rec.Kind(), data)
}
