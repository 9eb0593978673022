package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores appointments in the clinic database.
type PostgresRepository struct {
	db querier
}

// NewPostgresRepository builds a repository over pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithQuerier(q querier) *PostgresRepository {
	if q == nil {
		panic("appointments: querier required")
	}
	return &PostgresRepository{db: q}
}

const appointmentColumns = `
	id::text, patient_id::text, COALESCE(title, ''), COALESCE(reason, ''),
	start_time, end_time, previous_start_time, status, created_at, updated_at
`

// Insert implements Repository.
func (r *PostgresRepository) Insert(ctx context.Context, appt Appointment) (Appointment, error) {
	query := `
		INSERT INTO appointments (id, patient_id, title, reason, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		appt.ID, appt.PatientID, appt.Title, appt.Reason,
		appt.StartTime, toTimestamptz(appt.EndTime), string(appt.Status),
	).Scan(&appt.CreatedAt, &appt.UpdatedAt)
	if err != nil {
		return Appointment{}, mapStoreError("insert appointment", err)
	}
	return appt, nil
}

// Get implements Repository.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	appt, err := scanAppointment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return Appointment{}, mapStoreError("get appointment", err)
	}
	return appt, nil
}

// ListByPatient implements Repository.
func (r *PostgresRepository) ListByPatient(ctx context.Context, patientID string) ([]Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE patient_id = $1 ORDER BY start_time ASC`
	rows, err := r.db.Query(ctx, query, patientID)
	if err != nil {
		return nil, mapStoreError("list appointments", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, mapStoreError("scan appointment", err)
		}
		out = append(out, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, mapStoreError("iterate appointments", err)
	}
	return out, nil
}

// UpdateIfStatus implements Repository. A write that matches no row means the
// status moved underneath us (or the row vanished); both surface as ErrStaleState.
func (r *PostgresRepository) UpdateIfStatus(ctx context.Context, next Appointment, expected Status) (Appointment, error) {
	query := `
		UPDATE appointments
		SET status = $1, start_time = $2, end_time = $3, previous_start_time = $4, updated_at = now()
		WHERE id = $5 AND status = $6
		RETURNING ` + appointmentColumns
	appt, err := scanAppointment(r.db.QueryRow(ctx, query,
		string(next.Status), next.StartTime, toTimestamptz(next.EndTime), toTimestamptz(next.PreviousStartTime),
		next.ID, string(expected),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Appointment{}, ErrStaleState
	}
	if err != nil {
		return Appointment{}, mapStoreError("update appointment", err)
	}
	return appt, nil
}

func scanAppointment(row pgx.Row) (Appointment, error) {
	var (
		appt               Appointment
		status             string
		endTime, prevStart pgtype.Timestamptz
	)
	err := row.Scan(
		&appt.ID,
		&appt.PatientID,
		&appt.Title,
		&appt.Reason,
		&appt.StartTime,
		&endTime,
		&prevStart,
		&status,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
	if err != nil {
		return Appointment{}, err
	}
	parsed, err := ParseStatus(status)
	if err != nil {
		return Appointment{}, err
	}
	appt.Status = parsed
	appt.EndTime = fromTimestamptz(endTime)
	appt.PreviousStartTime = fromTimestamptz(prevStart)
	return appt, nil
}

func toTimestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func fromTimestamptz(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time.UTC()
	return &t
}

func mapStoreError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "22P02":
			// Malformed uuid: no such appointment.
			return ErrNotFound
		case strings.HasPrefix(pgErr.Code, "23"):
			return fmt.Errorf("%w: %s: %s", ErrWriteRejected, op, pgErr.Message)
		}
	}
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
