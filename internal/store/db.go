// Package store persists fetched tariff rates in SQLite so that repeated
// queries over the same window do not hit the Octopus API.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when no stored record matches.
var ErrNotFound = errors.New("record not found")

// DB wraps the SQL database connection
type DB struct {
	*sql.DB
}

// New opens (creating if needed) the database at dbPath.
func New(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &DB{db}, nil
}

// Migrate creates the schema. It is safe to run repeatedly.
func (db *DB) Migrate(ctx context.Context) error {
	migrations := []string{
		migrationRates,
		migrationRateIndexes,
	}

	for i, migration := range migrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// valid_from and valid_to are unix seconds. Open bounds are stored as the
// minimum and maximum int64 so that range predicates need no NULL handling.
const migrationRates = `
CREATE TABLE IF NOT EXISTS rates (
	id TEXT PRIMARY KEY,
	tariff_code TEXT NOT NULL,
	kind TEXT NOT NULL,
	payment_method TEXT NOT NULL DEFAULT '',
	value_exc_vat REAL NOT NULL,
	value_inc_vat REAL NOT NULL,
	valid_from INTEGER NOT NULL,
	valid_to INTEGER NOT NULL,
	fetched_at INTEGER NOT NULL
);
`

const migrationRateIndexes = `
CREATE UNIQUE INDEX IF NOT EXISTS idx_rates_window
	ON rates(tariff_code, kind, payment_method, valid_from);
CREATE INDEX IF NOT EXISTS idx_rates_valid_to
	ON rates(tariff_code, kind, valid_to);
`
