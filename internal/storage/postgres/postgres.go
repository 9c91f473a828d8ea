// internal/storage/postgres/postgres.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/up-only/internal/storage"
	"github.com/rovshanmuradov/up-only/internal/storage/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	key        BYTEA PRIMARY KEY,
	kind       TEXT NOT NULL,
	data       BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_accounts_kind ON accounts(kind, key);
CREATE TABLE IF NOT EXISTS journal (
	id             BIGSERIAL PRIMARY KEY,
	operation      TEXT NOT NULL,
	signer         TEXT NOT NULL,
	subject        TEXT NOT NULL DEFAULT '',
	payment_amount BIGINT NOT NULL DEFAULT 0,
	sale_amount    BIGINT NOT NULL DEFAULT 0,
	reserve_after  BIGINT NOT NULL DEFAULT 0,
	supply_after   BIGINT NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_journal_signer ON journal(signer, id);
`

// PostgreSQL error codes
const (
	pgErrSerializationFailure = "40001"
	pgErrDeadlockDetected     = "40P01"
	migrationLockID           = 101
)

// Options tune conflict retries.
type Options struct {
	MaxTries       uint
	InitialBackoff time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxTries == 0 {
		o.MaxTries = 8
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 10 * time.Millisecond
	}
	return o
}

// Store keeps accounts in PostgreSQL. Update runs at SERIALIZABLE isolation
// and re-runs the transaction when the server aborts it for a conflict.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	opts   Options
}

var _ storage.Store = (*Store)(nil)

// Open connects, pings and applies the schema.
func Open(ctx context.Context, dsn string, opts Options, logger *zap.Logger) (*Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Store{pool: pool, logger: logger.Named("postgres"), opts: opts.withDefaults()}
	if err := s.RunMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// RunMigrations applies the schema under an advisory lock so concurrent
// processes do not race on DDL.
func (s *Store) RunMigrations(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", migrationLockID) //nolint:errcheck

	if _, err := conn.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func isConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrSerializationFailure || pgErr.Code == pgErrDeadlockDetected
	}
	return false
}

func (s *Store) Update(ctx context.Context, fn func(tx storage.Tx) error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.opts.InitialBackoff
	policy.MaxInterval = s.opts.InitialBackoff * 20

	notify := func(err error, d time.Duration) {
		s.logger.Debug("Serialization conflict, retrying", zap.Error(err), zap.Duration("backoff", d))
	}

	op := func() (struct{}, error) {
		err := s.runTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, false, fn)
		if err != nil && !isConflict(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(s.opts.MaxTries),
		backoff.WithNotify(notify))
	return err
}

func (s *Store) View(ctx context.Context, fn func(tx storage.Tx) error) error {
	return s.runTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, true, fn)
}

func (s *Store) runTx(ctx context.Context, opts pgx.TxOptions, readOnly bool, fn func(tx storage.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(&pgTx{tx: tx, readOnly: readOnly}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Warn("Rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) ListEntries(ctx context.Context, signer string, limit, offset int) ([]*models.Entry, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, operation, signer, subject, payment_amount, sale_amount, reserve_after, supply_after, created_at
		FROM journal
		WHERE ($1 = '' OR signer = $1)
		ORDER BY id DESC
		LIMIT $2 OFFSET $3`, signer, lim, offset)
	if err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}
	defer rows.Close()

	var out []*models.Entry
	for rows.Next() {
		var (
			e                              models.Entry
			id, pay, sale, reserve, supply int64
		)
		if err := rows.Scan(&id, &e.Operation, &e.Signer, &e.Subject, &pay, &sale, &reserve, &supply, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		e.ID = uint64(id)
		e.PaymentAmount = uint64(pay)
		e.SaleAmount = uint64(sale)
		e.ReserveAfter = uint64(reserve)
		e.SupplyAfter = uint64(supply)
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

type pgTx struct {
	tx       pgx.Tx
	readOnly bool
}

func (t *pgTx) Get(ctx context.Context, key solana.PublicKey) ([]byte, error) {
	var data []byte
	err := t.tx.QueryRow(ctx, `SELECT data FROM accounts WHERE key = $1`, key[:]).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return data, nil
}

func (t *pgTx) Put(ctx context.Context, key solana.PublicKey, kind string, data []byte) error {
	if t.readOnly {
		return storage.ErrReadOnly
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO accounts (key, kind, data, updated_at) VALUES ($1, $2, $3, now())
		ON CONFLICT (key) DO UPDATE SET kind = EXCLUDED.kind, data = EXCLUDED.data, updated_at = now()`,
		key[:], kind, data)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (t *pgTx) Scan(ctx context.Context, kind string, fn func(key solana.PublicKey, data []byte) error) error {
	rows, err := t.tx.Query(ctx, `SELECT key, data FROM accounts WHERE kind = $1 ORDER BY key`, kind)
	if err != nil {
		return fmt.Errorf("scan %s: %w", kind, err)
	}
	type row struct {
		key  solana.PublicKey
		data []byte
	}
	var all []row
	for rows.Next() {
		var raw, data []byte
		if err := rows.Scan(&raw, &data); err != nil {
			rows.Close()
			return fmt.Errorf("scan %s: %w", kind, err)
		}
		all = append(all, row{key: solana.PublicKeyFromBytes(raw), data: data})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, r := range all {
		if err := fn(r.key, r.data); err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) Append(ctx context.Context, e *models.Entry) error {
	if t.readOnly {
		return storage.ErrReadOnly
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO journal (operation, signer, subject, payment_amount, sale_amount, reserve_after, supply_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.Operation, e.Signer, e.Subject,
		int64(e.PaymentAmount), int64(e.SaleAmount), int64(e.ReserveAfter), int64(e.SupplyAfter))
	if err != nil {
		return fmt.Errorf("append journal: %w", err)
	}
	return nil
}
