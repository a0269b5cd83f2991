package store

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteLedger keeps ledger entries in an embedded SQLite database.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger opens (or creates) the database at path.
func NewSQLiteLedger(path string) (*SQLiteLedger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection serializes appends.
	db.SetMaxOpenConns(1)

	ledger := &SQLiteLedger{db: db}
	if err := ledger.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return ledger, nil
}

func (l *SQLiteLedger) initialize() error {
	_, err := l.db.Exec(`
	CREATE TABLE IF NOT EXISTS plan_ledger (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entry TEXT NOT NULL,
		appended_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`)
	if err != nil {
		return fmt.Errorf("failed to create ledger table: %w", err)
	}
	return nil
}

func (l *SQLiteLedger) Append(ctx context.Context, line []byte) error {
	if len(line) == 0 {
		return ErrInvalidEntry
	}
	_, err := l.db.ExecContext(ctx, `INSERT INTO plan_ledger (entry) VALUES (?)`, string(line))
	return err
}

func (l *SQLiteLedger) ReadAll(ctx context.Context) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		rows, err := l.db.QueryContext(ctx, `SELECT entry FROM plan_ledger ORDER BY id`)
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

func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}
