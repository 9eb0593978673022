package documents

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// PostgresRepository reads the documents table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository wraps db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ListByPatient implements Repository.
func (r *PostgresRepository) ListByPatient(ctx context.Context, patientID string, types []Type) ([]Document, error) {
	query := `
		SELECT id::text, patient_id::text, type, COALESCE(title, ''), url, created_at
		FROM documents
		WHERE patient_id = $1
	`
	args := []interface{}{patientID}
	if len(types) > 0 {
		tags := make([]string, len(types))
		for i, t := range types {
			tags[i] = string(t)
		}
		query += " AND type = ANY($2)"
		args = append(args, pq.Array(tags))
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query documents: %w", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		var docType string
		if err := rows.Scan(&d.ID, &d.PatientID, &docType, &d.Title, &d.URL, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan document: %w", ErrStoreUnavailable, err)
		}
		d.Type = ParseType(docType)
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate documents: %w", ErrStoreUnavailable, err)
	}
	return docs, nil
}
