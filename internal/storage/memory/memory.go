// internal/storage/memory/memory.go
package memory

import (
	"bytes"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/up-only/internal/storage"
	"github.com/rovshanmuradov/up-only/internal/storage/models"
)

type account struct {
	kind string
	data []byte
}

// Store keeps every account in a map. Update holds the write lock for the
// whole transaction, so conflicting operations never interleave.
type Store struct {
	mu       sync.RWMutex
	accounts map[solana.PublicKey]account
	journal  []*models.Entry
	now      func() time.Time
}

var _ storage.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		accounts: make(map[solana.PublicKey]account),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Update(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s, writes: make(map[solana.PublicKey]account)}
	if err := fn(tx); err != nil {
		return err
	}
	for k, v := range tx.writes {
		s.accounts[k] = v
	}
	now := s.now()
	for _, e := range tx.entries {
		e.ID = uint64(len(s.journal) + 1)
		e.CreatedAt = now
		s.journal = append(s.journal, e)
	}
	return nil
}

func (s *Store) View(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&memTx{store: s, readOnly: true})
}

func (s *Store) ListEntries(_ context.Context, signer string, limit, offset int) ([]*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Entry
	skipped := 0
	// newest first, like the SQL backends
	for i := len(s.journal) - 1; i >= 0; i-- {
		e := s.journal[i]
		if signer != "" && e.Signer != signer {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		cp := *e
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) Close() error { return nil }

type memTx struct {
	store    *Store
	writes   map[solana.PublicKey]account
	entries  []*models.Entry
	readOnly bool
}

func (t *memTx) Get(_ context.Context, key solana.PublicKey) ([]byte, error) {
	if a, ok := t.writes[key]; ok {
		return bytes.Clone(a.data), nil
	}
	if a, ok := t.store.accounts[key]; ok {
		return bytes.Clone(a.data), nil
	}
	return nil, storage.ErrNotFound
}

func (t *memTx) Put(_ context.Context, key solana.PublicKey, kind string, data []byte) error {
	if t.readOnly {
		return storage.ErrReadOnly
	}
	t.writes[key] = account{kind: kind, data: bytes.Clone(data)}
	return nil
}

func (t *memTx) Scan(ctx context.Context, kind string, fn func(key solana.PublicKey, data []byte) error) error {
	seen := make(map[solana.PublicKey]account)
	for k, v := range t.store.accounts {
		if v.kind == kind {
			seen[k] = v
		}
	}
	for k, v := range t.writes {
		if v.kind == kind {
			seen[k] = v
		}
	}
	keys := make([]solana.PublicKey, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b solana.PublicKey) int { return bytes.Compare(a[:], b[:]) })

	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(k, bytes.Clone(seen[k].data)); err != nil {
			return err
		}
	}
	return nil
}

func (t *memTx) Append(_ context.Context, entry *models.Entry) error {
	if t.readOnly {
		return storage.ErrReadOnly
	}
	cp := *entry
	t.entries = append(t.entries, &cp)
	return nil
}
