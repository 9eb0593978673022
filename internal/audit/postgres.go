package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresStore appends to the message_audit table.
type PostgresStore struct {
	db    *sql.DB
	table string
}

// NewPostgresStore wraps db. table defaults to message_audit.
func NewPostgresStore(db *sql.DB, table string) *PostgresStore {
	if table == "" {
		table = "message_audit"
	}
	return &PostgresStore{db: db, table: table}
}

// Append implements Store. created_at comes from the database clock.
func (s *PostgresStore) Append(ctx context.Context, rec Record) (Record, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (
			id, session_id, sender_id, direction, channel,
			category, content, ai_generated, reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, s.table)

	err := s.db.QueryRowContext(ctx, query,
		rec.ID,
		rec.SessionID,
		nullString(rec.SenderID),
		string(rec.Direction),
		rec.Channel,
		rec.Category,
		rec.Content,
		rec.AIGenerated,
		nullString(rec.Reason),
	).Scan(&rec.CreatedAt)
	if err != nil {
		return Record{}, fmt.Errorf("audit: insert %s: %w", s.table, err)
	}
	return rec, nil
}

// Filter narrows Query results.
type Filter struct {
	SessionID string
	Direction Direction
	Category  string
	Since     time.Time
	Limit     int
}

// Query returns records newest first.
func (s *PostgresStore) Query(ctx context.Context, filter Filter) ([]Record, error) {
	query := fmt.Sprintf(`
		SELECT id, session_id, sender_id, direction, channel,
			   category, content, ai_generated, reason, created_at
		FROM %s
		WHERE 1 = 1
	`, s.table)
	var args []interface{}
	argIdx := 1

	if filter.SessionID != "" {
		query += fmt.Sprintf(" AND session_id = $%d", argIdx)
		args = append(args, filter.SessionID)
		argIdx++
	}
	if filter.Direction != "" {
		query += fmt.Sprintf(" AND direction = $%d", argIdx)
		args = append(args, string(filter.Direction))
		argIdx++
	}
	if filter.Category != "" {
		query += fmt.Sprintf(" AND category = $%d", argIdx)
		args = append(args, filter.Category)
		argIdx++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.Since)
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query %s: %w", s.table, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var direction string
		var senderID, reason sql.NullString
		if err := rows.Scan(
			&r.ID, &r.SessionID, &senderID, &direction, &r.Channel,
			&r.Category, &r.Content, &r.AIGenerated, &reason, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("audit: scan record: %w", err)
		}
		r.Direction = Direction(direction)
		r.SenderID = senderID.String
		r.Reason = reason.String
		records = append(records, r)
	}
	return records, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
