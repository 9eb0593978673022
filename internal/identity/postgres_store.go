package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore reads patients from the clinic database.
type PostgresStore struct {
	pool rowQuerier
}

// NewPostgresStore initializes a store backed by pgxpool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("identity: pgx pool required")
	}
	return &PostgresStore{pool: pool}
}

func newPostgresStoreWithQuerier(q rowQuerier) *PostgresStore {
	if q == nil {
		panic("identity: querier required")
	}
	return &PostgresStore{pool: q}
}

const patientColumns = `
	id::text, name, national_id,
	COALESCE(to_char(birth_date, 'YYYY-MM-DD'), ''),
	COALESCE(phone, ''), COALESCE(email, ''), COALESCE(notes, ''),
	created_at
`

// Find implements Store.
func (s *PostgresStore) Find(ctx context.Context, lookup Lookup, limit int) ([]Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE national_id = $1`
	args := []any{lookup.NationalID}
	if lookup.BirthDate != "" {
		query += ` AND birth_date = $2::date`
		args = append(args, lookup.BirthDate)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", max(limit, 1))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: select patients: %w", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var patients []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan patient: %w", ErrStoreUnavailable, err)
		}
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate patients: %w", ErrStoreUnavailable, err)
	}
	return patients, nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, id string) (Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id::text = $1`
	p, err := scanPatient(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Patient{}, ErrNotFound
	}
	if err != nil {
		return Patient{}, fmt.Errorf("%w: get patient: %w", ErrStoreUnavailable, err)
	}
	return p, nil
}

func scanPatient(row pgx.Row) (Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.NationalID,
		&p.BirthDate,
		&p.Phone,
		&p.Email,
		&p.Notes,
		&p.CreatedAt,
	)
	return p, err
}
