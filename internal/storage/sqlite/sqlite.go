// internal/storage/sqlite/sqlite.go
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/rovshanmuradov/up-only/internal/storage"
	"github.com/rovshanmuradov/up-only/internal/storage/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	key        BLOB PRIMARY KEY,
	kind       TEXT NOT NULL,
	data       BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_accounts_kind ON accounts(kind, key);
CREATE TABLE IF NOT EXISTS journal (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	operation      TEXT NOT NULL,
	signer         TEXT NOT NULL,
	subject        TEXT NOT NULL DEFAULT '',
	payment_amount INTEGER NOT NULL DEFAULT 0,
	sale_amount    INTEGER NOT NULL DEFAULT 0,
	reserve_after  INTEGER NOT NULL DEFAULT 0,
	supply_after   INTEGER NOT NULL DEFAULT 0,
	created_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_journal_signer ON journal(signer, id);
`

// Store keeps accounts in a single SQLite file. One connection is used so
// write transactions are serialized by database/sql itself.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ storage.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}

	logger.Debug("SQLite store opened", zap.String("path", path))
	return &Store{db: db, logger: logger.Named("sqlite")}, nil
}

func (s *Store) Update(ctx context.Context, fn func(tx storage.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(&sqlTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn("Rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) View(ctx context.Context, fn func(tx storage.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck
	return fn(&sqlTx{tx: tx, readOnly: true})
}

func (s *Store) ListEntries(ctx context.Context, signer string, limit, offset int) ([]*models.Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, operation, signer, subject, payment_amount, sale_amount, reserve_after, supply_after, created_at
		FROM journal
		WHERE (? = '' OR signer = ?)
		ORDER BY id DESC
		LIMIT ? OFFSET ?`, signer, signer, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}
	defer rows.Close()

	var out []*models.Entry
	for rows.Next() {
		var (
			e                                   models.Entry
			id, pay, sale, reserve, supply, cat int64
		)
		if err := rows.Scan(&id, &e.Operation, &e.Signer, &e.Subject, &pay, &sale, &reserve, &supply, &cat); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		e.ID = uint64(id)
		e.PaymentAmount = uint64(pay)
		e.SaleAmount = uint64(sale)
		e.ReserveAfter = uint64(reserve)
		e.SupplyAfter = uint64(supply)
		e.CreatedAt = time.Unix(0, cat).UTC()
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

type sqlTx struct {
	tx       *sql.Tx
	readOnly bool
}

func (t *sqlTx) Get(ctx context.Context, key solana.PublicKey) ([]byte, error) {
	var data []byte
	err := t.tx.QueryRowContext(ctx, `SELECT data FROM accounts WHERE key = ?`, key[:]).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return data, nil
}

func (t *sqlTx) Put(ctx context.Context, key solana.PublicKey, kind string, data []byte) error {
	if t.readOnly {
		return storage.ErrReadOnly
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO accounts (key, kind, data, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET kind = excluded.kind, data = excluded.data, updated_at = excluded.updated_at`,
		key[:], kind, data, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (t *sqlTx) Scan(ctx context.Context, kind string, fn func(key solana.PublicKey, data []byte) error) error {
	rows, err := t.tx.QueryContext(ctx, `SELECT key, data FROM accounts WHERE kind = ? ORDER BY key`, kind)
	if err != nil {
		return fmt.Errorf("scan %s: %w", kind, err)
	}
	defer rows.Close()

	type row struct {
		key  solana.PublicKey
		data []byte
	}
	// Collect first: fn may issue queries on the same connection.
	var all []row
	for rows.Next() {
		var (
			raw  []byte
			data []byte
		)
		if err := rows.Scan(&raw, &data); err != nil {
			return fmt.Errorf("scan %s: %w", kind, err)
		}
		all = append(all, row{key: solana.PublicKeyFromBytes(raw), data: data})
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	for _, r := range all {
		if err := fn(r.key, r.data); err != nil {
			return err
		}
	}
	return nil
}

func (t *sqlTx) Append(ctx context.Context, e *models.Entry) error {
	if t.readOnly {
		return storage.ErrReadOnly
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO journal (operation, signer, subject, payment_amount, sale_amount, reserve_after, supply_after, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Operation, e.Signer, e.Subject,
		int64(e.PaymentAmount), int64(e.SaleAmount), int64(e.ReserveAfter), int64(e.SupplyAfter),
		time.Now().UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("append journal: %w", err)
	}
	return nil
}
