package party

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/khata-ledger/khata/internal/apperr"
	"github.com/khata-ledger/khata/internal/infra/schema"
)

// SQLiteRepository implements Repository on a SQLite database migrated with
// schema.MigrateSQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository builds a SQLite-backed party repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, p Party) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO parties (id, name, number, address, created_at, updated_at)
		SELECT ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (SELECT 1 FROM parties WHERE number = ?)`,
		p.ID, p.Name, p.Number, p.Address, schema.FormatTime(p.CreatedAt), schema.FormatTime(p.UpdatedAt), p.Number)
	if err != nil {
		return mapSQLiteError("insert party", err)
	}
	n, err := rowsAffected("insert party", res)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.ErrDuplicateContact
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (Party, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, number, address, created_at, updated_at FROM parties WHERE id = ?`, id)
	p, err := scanSQLiteParty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Party{}, apperr.ErrNotFound
	}
	if err != nil {
		return Party{}, fmt.Errorf("get party: %w", err)
	}
	return p, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, p Party) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE parties SET name = ?, number = ?, address = ?, updated_at = ?
		WHERE id = ? AND NOT EXISTS (SELECT 1 FROM parties WHERE number = ? AND id <> ?)`,
		p.Name, p.Number, p.Address, schema.FormatTime(p.UpdatedAt), p.ID, p.Number, p.ID)
	if err != nil {
		return mapSQLiteError("update party", err)
	}
	n, err := rowsAffected("update party", res)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := r.Get(ctx, p.ID); err != nil {
		return err
	}
	return apperr.ErrDuplicateContact
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM parties WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete party: %w", err)
	}
	n, err := rowsAffected("delete party", res)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]Party, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, number, address, created_at, updated_at FROM parties ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list parties: %w", err)
	}
	defer rows.Close()

	var out []Party
	for rows.Next() {
		p, err := scanSQLiteParty(rows)
		if err != nil {
			return nil, fmt.Errorf("scan party: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func rowsAffected(op string, res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

func mapSQLiteError(op string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return apperr.ErrDuplicateContact
	}
	return fmt.Errorf("%s: %w", op, err)
}

func scanSQLiteParty(row rowScanner) (Party, error) {
	var (
		p                    Party
		createdAt, updatedAt string
		err                  error
	)
	if err = row.Scan(&p.ID, &p.Name, &p.Number, &p.Address, &createdAt, &updatedAt); err != nil {
		return Party{}, err
	}
	if p.CreatedAt, err = schema.ParseTime(createdAt); err != nil {
		return Party{}, err
	}
	if p.UpdatedAt, err = schema.ParseTime(updatedAt); err != nil {
		return Party{}, err
	}
	return p, nil
}
