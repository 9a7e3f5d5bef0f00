package party

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/khata-ledger/khata/internal/apperr"
)

// Repository persists parties. Create and Update enforce number uniqueness
// in the write itself and fail with apperr.ErrDuplicateContact.
type Repository interface {
	Create(ctx context.Context, p Party) error
	Get(ctx context.Context, id string) (Party, error)
	Update(ctx context.Context, p Party) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Party, error)
}

const pgUniqueViolation = "23505"

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed party repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the party unless its number is taken.
func (r *PostgresRepository) Create(ctx context.Context, p Party) error {
	cmd, err := r.db.Exec(ctx, `
        INSERT INTO parties (id, name, number, address, created_at, updated_at)
        SELECT $1::text, $2::text, $3::text, $4::text, $5::timestamptz, $6::timestamptz
        WHERE NOT EXISTS (SELECT 1 FROM parties WHERE number = $3::text)`,
		p.ID, p.Name, p.Number, p.Address, p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	if err != nil {
		return mapPgError("insert party", err)
	}
	if cmd.RowsAffected() == 0 {
		return apperr.ErrDuplicateContact
	}
	return nil
}

// Get fetches a party by id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Party, error) {
	row := r.db.QueryRow(ctx, `SELECT id, name, number, address, created_at, updated_at FROM parties WHERE id = $1`, id)
	p, err := scanParty(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Party{}, apperr.ErrNotFound
	}
	if err != nil {
		return Party{}, fmt.Errorf("get party: %w", err)
	}
	return p, nil
}

// Update rewrites name, number and address unless the number belongs to
// another party.
func (r *PostgresRepository) Update(ctx context.Context, p Party) error {
	cmd, err := r.db.Exec(ctx, `
        UPDATE parties SET name = $2, number = $3, address = $4, updated_at = $5
        WHERE id = $1 AND NOT EXISTS (SELECT 1 FROM parties WHERE number = $3 AND id <> $1)`,
		p.ID, p.Name, p.Number, p.Address, p.UpdatedAt.UTC())
	if err != nil {
		return mapPgError("update party", err)
	}
	if cmd.RowsAffected() > 0 {
		return nil
	}
	if _, err := r.Get(ctx, p.ID); err != nil {
		return err
	}
	return apperr.ErrDuplicateContact
}

// Delete removes the party; its entries go with it through the foreign key.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM parties WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete party: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// List returns every party, oldest first.
func (r *PostgresRepository) List(ctx context.Context) ([]Party, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, number, address, created_at, updated_at FROM parties ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list parties: %w", err)
	}
	defer rows.Close()

	var out []Party
	for rows.Next() {
		p, err := scanParty(rows)
		if err != nil {
			return nil, fmt.Errorf("scan party: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list parties: %w", err)
	}
	return out, nil
}

func mapPgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return apperr.ErrDuplicateContact
	}
	return fmt.Errorf("%s: %w", op, err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParty(row rowScanner) (Party, error) {
	var p Party
	if err := row.Scan(&p.ID, &p.Name, &p.Number, &p.Address, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Party{}, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}
