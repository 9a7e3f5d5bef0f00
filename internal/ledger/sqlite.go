package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/khata-ledger/khata/internal/apperr"
	"github.com/khata-ledger/khata/internal/infra/schema"
	"github.com/khata-ledger/khata/internal/money"
)

const sqliteEntryColumns = `id, party_id, kind, amount, description, created_at, updated_at, seq`

// SQLiteStore persists entries in a SQLite database migrated with
// schema.MigrateSQLite. Foreign keys must be enabled on the connection.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore constructs a SQLite-backed entry store.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Add(ctx context.Context, entry Entry) (Entry, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (id, party_id, kind, amount, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.PartyID, string(entry.Kind), entry.Amount.String(), entry.Description,
		schema.FormatTime(entry.CreatedAt), schema.FormatTime(entry.UpdatedAt),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey {
			return Entry{}, apperr.ErrPartyNotFound
		}
		return Entry{}, fmt.Errorf("insert entry: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return Entry{}, fmt.Errorf("entry seq: %w", err)
	}
	entry.Seq = seq
	return entry, nil
}

func (s *SQLiteStore) Get(ctx context.Context, partyID, entryID string) (Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteEntryColumns+` FROM entries WHERE id = ? AND party_id = ?`, entryID, partyID)
	entry, err := scanSQLiteEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, s.missing(ctx, entryID)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get entry: %w", err)
	}
	return entry, nil
}

func (s *SQLiteStore) Update(ctx context.Context, partyID, entryID string, change Change) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE entries SET kind = ?, amount = ?, description = ?, updated_at = ?
		WHERE id = ? AND party_id = ?
		RETURNING `+sqliteEntryColumns,
		string(change.Kind), change.Amount.String(), change.Description, schema.FormatTime(change.UpdatedAt),
		entryID, partyID,
	)
	entry, err := scanSQLiteEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, s.missing(ctx, entryID)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("update entry: %w", err)
	}
	return entry, nil
}

func (s *SQLiteStore) Remove(ctx context.Context, partyID, entryID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ? AND party_id = ?`, entryID, partyID)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if n == 0 {
		return s.missing(ctx, entryID)
	}
	return nil
}

func (s *SQLiteStore) ListByParty(ctx context.Context, partyID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteEntryColumns+` FROM entries WHERE party_id = ? ORDER BY created_at, seq`, partyID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		entry, err := scanSQLiteEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) RemoveByParty(ctx context.Context, partyID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE party_id = ?`, partyID)
	if err != nil {
		return 0, fmt.Errorf("delete party entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete party entries: %w", err)
	}
	return int(n), nil
}

func (s *SQLiteStore) LastCreatedAt(ctx context.Context, partyID string) (time.Time, error) {
	var last sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT max(created_at) FROM entries WHERE party_id = ?`, partyID).Scan(&last); err != nil {
		return time.Time{}, fmt.Errorf("last entry time: %w", err)
	}
	if !last.Valid {
		return time.Time{}, nil
	}
	return schema.ParseTime(last.String)
}

func (s *SQLiteStore) missing(ctx context.Context, entryID string) error {
	var owner string
	err := s.db.QueryRowContext(ctx, `SELECT party_id FROM entries WHERE id = ?`, entryID).Scan(&owner)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return apperr.ErrEntryNotFound
	case err != nil:
		return fmt.Errorf("probe entry: %w", err)
	}
	return apperr.ErrEntryNotOwned
}

func scanSQLiteEntry(row rowScanner) (Entry, error) {
	var (
		e                    Entry
		kind, amount         string
		createdAt, updatedAt string
	)
	if err := row.Scan(&e.ID, &e.PartyID, &kind, &amount, &e.Description, &createdAt, &updatedAt, &e.Seq); err != nil {
		return Entry{}, err
	}
	a, err := money.FromString(amount)
	if err != nil {
		return Entry{}, fmt.Errorf("decode amount %q: %w", amount, err)
	}
	if e.CreatedAt, err = schema.ParseTime(createdAt); err != nil {
		return Entry{}, err
	}
	if e.UpdatedAt, err = schema.ParseTime(updatedAt); err != nil {
		return Entry{}, err
	}
	e.Kind = Kind(kind)
	e.Amount = a
	return e, nil
}
