package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

// Postgres is a durable Store backend for state the engine needs to survive
// process restarts: closed-position history and the copy-trading queues.
// It keeps the same generic (bucket, key, value) shape as Mem so the two
// backends are interchangeable in tests, rather than mapping every bucket
// onto its own hand-written table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres opens a pool against dsn and ensures the backing table exists.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect postgres: %w", err)
	}
	p := &Postgres{pool: pool}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS engine_kv (
	bucket TEXT NOT NULL,
	key    BYTEA NOT NULL,
	value  BYTEA NOT NULL,
	PRIMARY KEY (bucket, key)
);
`
	_, err := p.pool.Exec(ctx, ddl)
	if err != nil {
		return fmt.Errorf("store: migrate engine_kv: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() { p.pool.Close() }

// Begin opens a Postgres transaction using the package-level background
// context; callers needing cancellation should use BeginCtx.
func (p *Postgres) Begin() (Tx, error) {
	return p.BeginCtx(context.Background())
}

// BeginCtx opens a Postgres transaction bound to ctx.
func (p *Postgres) BeginCtx(ctx context.Context) (Tx, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("store: begin postgres tx: %w", err)
	}
	return &pgTx{ctx: ctx, tx: tx}, nil
}

type pgTx struct {
	ctx context.Context
	tx  pgx.Tx
}

func (t *pgTx) Get(bucket string, key Key) ([]byte, error) {
	var value []byte
	err := t.tx.QueryRow(t.ctx,
		`SELECT value FROM engine_kv WHERE bucket = $1 AND key = $2`,
		bucket, []byte(key)).Scan(&value)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get %s: %w", bucket, err)
	}
	return value, nil
}

func (t *pgTx) Set(bucket string, key Key, value []byte) error {
	_, err := t.tx.Exec(t.ctx, `
INSERT INTO engine_kv (bucket, key, value) VALUES ($1, $2, $3)
ON CONFLICT (bucket, key) DO UPDATE SET value = EXCLUDED.value`,
		bucket, []byte(key), value)
	if err != nil {
		return fmt.Errorf("store: set %s: %w", bucket, err)
	}
	return nil
}

func (t *pgTx) Delete(bucket string, key Key) error {
	_, err := t.tx.Exec(t.ctx,
		`DELETE FROM engine_kv WHERE bucket = $1 AND key = $2`,
		bucket, []byte(key))
	if err != nil {
		return fmt.Errorf("store: delete %s: %w", bucket, err)
	}
	return nil
}

func (t *pgTx) scan(bucket string, from, to Key, desc bool, fn func(Entry) bool) error {
	query := `SELECT key, value FROM engine_kv WHERE bucket = $1`
	args := []any{bucket}
	if from != nil {
		args = append(args, []byte(from))
		query += fmt.Sprintf(" AND key >= $%d", len(args))
	}
	if to != nil {
		args = append(args, []byte(to))
		query += fmt.Sprintf(" AND key < $%d", len(args))
	}
	if desc {
		query += " ORDER BY key DESC"
	} else {
		query += " ORDER BY key ASC"
	}
	rows, err := t.tx.Query(t.ctx, query, args...)
	if err != nil {
		return fmt.Errorf("store: range %s: %w", bucket, err)
	}
	defer rows.Close()
	for rows.Next() {
		var k, v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return fmt.Errorf("store: scan %s: %w", bucket, err)
		}
		if !fn(Entry{Key: Key(k), Value: v}) {
			break
		}
	}
	return rows.Err()
}

// MultiGet issues one batched query for keys instead of len(keys) round
// trips, using pq.Array to bind the key list as a Postgres array parameter
// for the `= ANY($2)` match.
func (t *pgTx) MultiGet(bucket string, keys []Key) (map[string][]byte, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}
	raw := make([][]byte, len(keys))
	for i, k := range keys {
		raw[i] = []byte(k)
	}
	rows, err := t.tx.Query(t.ctx,
		`SELECT key, value FROM engine_kv WHERE bucket = $1 AND key = ANY($2)`,
		bucket, pq.Array(raw))
	if err != nil {
		return nil, fmt.Errorf("store: multiget %s: %w", bucket, err)
	}
	defer rows.Close()
	out := make(map[string][]byte, len(keys))
	for rows.Next() {
		var k, v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("store: multiget scan %s: %w", bucket, err)
		}
		out[string(k)] = v
	}
	return out, rows.Err()
}

func (t *pgTx) Range(bucket string, from, to Key, fn func(Entry) bool) error {
	return t.scan(bucket, from, to, false, fn)
}

func (t *pgTx) RangeDescending(bucket string, from, to Key, fn func(Entry) bool) error {
	return t.scan(bucket, from, to, true, fn)
}

func (t *pgTx) Commit() error {
	if err := t.tx.Commit(t.ctx); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

func (t *pgTx) Rollback() error {
	return t.tx.Rollback(t.ctx)
}
