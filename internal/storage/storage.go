// internal/storage/storage.go
package storage

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/up-only/internal/storage/models"
)

var (
	// ErrNotFound is returned by Tx.Get for an address with no account.
	ErrNotFound = errors.New("storage: account not found")
	// ErrReadOnly is returned by writes inside View.
	ErrReadOnly = errors.New("storage: read-only transaction")
)

// Tx is a view of the account space inside one transaction. Writes are
// visible to later reads of the same Tx and become durable only when the
// enclosing Update returns nil.
type Tx interface {
	Get(ctx context.Context, key solana.PublicKey) ([]byte, error)
	Put(ctx context.Context, key solana.PublicKey, kind string, data []byte) error
	// Scan visits every account of kind in key order.
	Scan(ctx context.Context, kind string, fn func(key solana.PublicKey, data []byte) error) error
	// Append stages a journal entry.
	Append(ctx context.Context, entry *models.Entry) error
}

// Store определяет интерфейс для работы с хранилищем аккаунтов
type Store interface {
	// Update runs fn in a read-write transaction. If fn returns an error
	// nothing it wrote is kept. fn may run more than once when the backend
	// retries a serialization conflict, so it must not have side effects
	// outside tx.
	Update(ctx context.Context, fn func(tx Tx) error) error
	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(tx Tx) error) error

	// Журнал операций
	ListEntries(ctx context.Context, signer string, limit, offset int) ([]*models.Entry, error)

	Close() error
}
