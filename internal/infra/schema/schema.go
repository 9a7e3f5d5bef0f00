// Package schema owns the table layout shared by the Postgres and SQLite
// backends. Both are migrated idempotently at start-up.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres creates the parties and entries tables. Entries cascade with their
// party and are indexed for ordered retrieval per party.
const Postgres = `
CREATE TABLE IF NOT EXISTS parties (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    number     TEXT NOT NULL,
    address    TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS parties_number_key ON parties (number);

CREATE TABLE IF NOT EXISTS entries (
    seq         BIGSERIAL UNIQUE,
    id          TEXT PRIMARY KEY,
    party_id    TEXT NOT NULL REFERENCES parties (id) ON DELETE CASCADE,
    kind        TEXT NOT NULL CHECK (kind IN ('credit', 'debit')),
    amount      NUMERIC(18, 2) NOT NULL CHECK (amount > 0),
    description TEXT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS entries_party_order_idx ON entries (party_id, created_at, seq);
`

// SQLite mirrors Postgres. Amounts are TEXT and timestamps are fixed-width
// UTC strings (see TimeLayout) so lexical order is chronological order.
const SQLite = `
CREATE TABLE IF NOT EXISTS parties (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    number     TEXT NOT NULL,
    address    TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_parties_number ON parties (number);

CREATE TABLE IF NOT EXISTS entries (
    seq         INTEGER PRIMARY KEY AUTOINCREMENT,
    id          TEXT NOT NULL UNIQUE,
    party_id    TEXT NOT NULL REFERENCES parties (id) ON DELETE CASCADE,
    kind        TEXT NOT NULL CHECK (kind IN ('credit', 'debit')),
    amount      TEXT NOT NULL,
    description TEXT NOT NULL,
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entries_party_order ON entries (party_id, created_at, seq);
`

// TimeLayout is the SQLite timestamp encoding, millisecond resolution.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// FormatTime encodes t for SQLite.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime decodes a SQLite timestamp.
func ParseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(TimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// MigratePostgres applies the Postgres schema.
func MigratePostgres(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, Postgres); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	return nil
}

// MigrateSQLite applies the SQLite schema.
func MigrateSQLite(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, SQLite); err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}
	return nil
}
