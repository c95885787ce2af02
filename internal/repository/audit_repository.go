package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/watchtowerhq/watchtower/internal/model"
)

// AuditRepository provides data access methods for the append-only audit_log table.
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new AuditRepository with the provided database connection.
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Insert appends an audit entry.
func (r *AuditRepository) Insert(ctx context.Context, e *model.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}

	query := `
        INSERT INTO audit_log (id, timestamp, action, detail)
        VALUES (?, ?, ?, ?)
    `

	_, err := r.db.ExecContext(ctx, query,
		e.ID,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.Action,
		nullString(e.Detail),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}

	return nil
}

// List returns the newest audit entries up to limit, newest first.
func (r *AuditRepository) List(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	query := `
        SELECT id, timestamp, action, detail
        FROM audit_log
        ORDER BY timestamp DESC
        LIMIT ?
    `

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	entries := []model.AuditEntry{}

	for rows.Next() {
		var e model.AuditEntry
		var timestampStr string
		var detail sql.NullString

		if err := rows.Scan(&e.ID, &timestampStr, &e.Action, &detail); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		e.Timestamp, err = ParseTime(timestampStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse audit timestamp: %w", err)
		}

		e.Detail = detail.String
		entries = append(entries, e)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log: %w", err)
	}

	return entries, nil
}
