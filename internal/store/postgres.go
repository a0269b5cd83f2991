package store

import (
	"context"
	"fmt"
	"iter"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLedger stores ledger entries in an append-only table.
type PostgresLedger struct {
	db    *pgxpool.Pool
	owned bool
}

// NewPostgresLedger uses an existing pool; Close leaves the pool open.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// OpenPostgresLedger connects to url, ensures the schema exists and owns the
// resulting pool.
func OpenPostgresLedger(ctx context.Context, url string) (*PostgresLedger, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	l := &PostgresLedger{db: pool, owned: true}
	if err := l.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return l, nil
}

// Pool exposes the underlying pool for collaborators sharing the database.
func (l *PostgresLedger) Pool() *pgxpool.Pool {
	return l.db
}

func (l *PostgresLedger) EnsureSchema(ctx context.Context) error {
	_, err := l.db.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS plan_ledger (
			id BIGSERIAL PRIMARY KEY,
			entry TEXT NOT NULL,
			appended_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("create plan_ledger: %w", err)
	}
	return nil
}

func (l *PostgresLedger) Append(ctx context.Context, line []byte) error {
	if len(line) == 0 {
		return ErrInvalidEntry
	}
	_, err := l.db.Exec(ctx, `INSERT INTO plan_ledger (entry) VALUES ($1)`, string(line))
	return err
}

func (l *PostgresLedger) ReadAll(ctx context.Context) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		rows, err := l.db.Query(ctx, `SELECT entry FROM plan_ledger ORDER BY id`)
		if err != nil {
			yield(nil, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			var entry string
			if err := rows.Scan(&entry); err != nil {
				yield(nil, err)
				return
			}
			if !yield([]byte(entry), nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, err)
		}
	}
}

func (l *PostgresLedger) Close() error {
	if l.owned {
		l.db.Close()
	}
	return nil
}
