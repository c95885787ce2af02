package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/watchtowerhq/watchtower/internal/model"
)

// BaselineRepository provides data access methods for the baseline_markers
// table. Markers are append-only; the newest marker is the active baseline.
type BaselineRepository struct {
	db *sql.DB
}

// NewBaselineRepository creates a new BaselineRepository with the provided database connection.
func NewBaselineRepository(db *sql.DB) *BaselineRepository {
	return &BaselineRepository{db: db}
}

// Insert appends a baseline marker.
func (r *BaselineRepository) Insert(ctx context.Context, m *model.BaselineMarker) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	query := `
        INSERT INTO baseline_markers (id, value, marked_at, reason, created_at)
        VALUES (?, ?, ?, ?, ?)
    `

	_, err := r.db.ExecContext(ctx, query,
		m.ID,
		m.Value,
		m.MarkedAt.UTC().Format(time.RFC3339Nano),
		nullString(m.Reason),
		m.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert baseline marker: %w", err)
	}

	return nil
}

// Latest returns the active baseline marker, or nil when none has been set.
func (r *BaselineRepository) Latest(ctx context.Context) (*model.BaselineMarker, error) {
	query := `
        SELECT id, value, marked_at, reason, created_at
        FROM baseline_markers
        ORDER BY created_at DESC, rowid DESC
        LIMIT 1
    `

	var m model.BaselineMarker
	var markedAtStr, createdAtStr string
	var reason sql.NullString

	err := r.db.QueryRowContext(ctx, query).Scan(
		&m.ID,
		&m.Value,
		&markedAtStr,
		&reason,
		&createdAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan baseline marker: %w", err)
	}

	m.MarkedAt, err = ParseTime(markedAtStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse baseline timestamp: %w", err)
	}

	m.CreatedAt, err = ParseTime(createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse baseline timestamp: %w", err)
	}

	m.Reason = reason.String
	return &m, nil
}
