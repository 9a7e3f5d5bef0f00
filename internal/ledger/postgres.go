package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/khata-ledger/khata/internal/apperr"
	"github.com/khata-ledger/khata/internal/money"
)

const (
	pgForeignKeyViolation = "23503"

	entryColumns = `id, party_id, kind, amount::text, description, created_at, updated_at, seq`
)

// PostgresStore persists entries in PostgreSQL. Amounts travel as text and are
// stored as NUMERIC so no value passes through a float.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed entry store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Add inserts the entry; a missing party surfaces as apperr.ErrPartyNotFound.
func (s *PostgresStore) Add(ctx context.Context, entry Entry) (Entry, error) {
	const query = `
        INSERT INTO entries (id, party_id, kind, amount, description, created_at, updated_at)
        VALUES ($1, $2, $3, $4::numeric, $5, $6, $7)
        RETURNING seq`
	err := s.db.QueryRow(ctx, query,
		entry.ID, entry.PartyID, string(entry.Kind), entry.Amount.String(),
		entry.Description, entry.CreatedAt, entry.UpdatedAt,
	).Scan(&entry.Seq)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return Entry{}, apperr.ErrPartyNotFound
		}
		return Entry{}, fmt.Errorf("insert entry: %w", err)
	}
	return entry, nil
}

func (s *PostgresStore) Get(ctx context.Context, partyID, entryID string) (Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE id = $1 AND party_id = $2`
	entry, err := scanEntry(s.db.QueryRow(ctx, query, entryID, partyID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, s.missing(ctx, entryID)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get entry: %w", err)
	}
	return entry, nil
}

// Update changes the entry only when it belongs to partyID, in one statement.
func (s *PostgresStore) Update(ctx context.Context, partyID, entryID string, change Change) (Entry, error) {
	query := `
        UPDATE entries
        SET kind = $3, amount = $4::numeric, description = $5, updated_at = $6
        WHERE id = $1 AND party_id = $2
        RETURNING ` + entryColumns
	entry, err := scanEntry(s.db.QueryRow(ctx, query,
		entryID, partyID, string(change.Kind), change.Amount.String(), change.Description, change.UpdatedAt,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, s.missing(ctx, entryID)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("update entry: %w", err)
	}
	return entry, nil
}

func (s *PostgresStore) Remove(ctx context.Context, partyID, entryID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM entries WHERE id = $1 AND party_id = $2`, entryID, partyID)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missing(ctx, entryID)
	}
	return nil
}

func (s *PostgresStore) ListByParty(ctx context.Context, partyID string) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE party_id = $1 ORDER BY created_at, seq`
	rows, err := s.db.Query(ctx, query, partyID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
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

func (s *PostgresStore) RemoveByParty(ctx context.Context, partyID string) (int, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM entries WHERE party_id = $1`, partyID)
	if err != nil {
		return 0, fmt.Errorf("delete party entries: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) LastCreatedAt(ctx context.Context, partyID string) (time.Time, error) {
	var last *time.Time
	if err := s.db.QueryRow(ctx, `SELECT max(created_at) FROM entries WHERE party_id = $1`, partyID).Scan(&last); err != nil {
		return time.Time{}, fmt.Errorf("last entry time: %w", err)
	}
	if last == nil {
		return time.Time{}, nil
	}
	return last.UTC(), nil
}

// missing tells a foreign entry apart from one that does not exist.
func (s *PostgresStore) missing(ctx context.Context, entryID string) error {
	var owner string
	err := s.db.QueryRow(ctx, `SELECT party_id FROM entries WHERE id = $1`, entryID).Scan(&owner)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return apperr.ErrEntryNotFound
	case err != nil:
		return fmt.Errorf("probe entry: %w", err)
	}
	return apperr.ErrEntryNotOwned
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		e      Entry
		kind   string
		amount string
	)
	if err := row.Scan(&e.ID, &e.PartyID, &kind, &amount, &e.Description, &e.CreatedAt, &e.UpdatedAt, &e.Seq); err != nil {
		return Entry{}, err
	}
	a, err := money.FromString(amount)
	if err != nil {
		return Entry{}, fmt.Errorf("decode amount %q: %w", amount, err)
	}
	e.Kind = Kind(kind)
	e.Amount = a
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return e, nil
}
