package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/watchtowerhq/watchtower/internal/apperrors"
	"github.com/watchtowerhq/watchtower/internal/model"
)

// PeakRepository provides data access methods for the append-only
// peak_records table. Rows are never updated or deleted; the current peak is
// the newest row.
type PeakRepository struct {
	db *sql.DB
}

// NewPeakRepository creates a new PeakRepository with the provided database connection.
func NewPeakRepository(db *sql.DB) *PeakRepository {
	return &PeakRepository{db: db}
}

// Insert appends a peak record.
func (r *PeakRepository) Insert(ctx context.Context, p *model.PeakRecord) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	query := `
        INSERT INTO peak_records (id, peak_value, achieved_at, source)
        VALUES (?, ?, ?, ?)
    `

	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.PeakValue,
		p.AchievedAt.UTC().Format(time.RFC3339Nano),
		string(p.Source),
	)
	if err != nil {
		return fmt.Errorf("failed to insert peak record: %w", err)
	}

	return nil
}

// Latest returns the most recently written peak record, or ErrNoPeak when
// the history is empty.
func (r *PeakRepository) Latest(ctx context.Context) (model.PeakRecord, error) {
	query := `
        SELECT id, peak_value, achieved_at, source
        FROM peak_records
        ORDER BY achieved_at DESC, rowid DESC
        LIMIT 1
    `

	var p model.PeakRecord
	var achievedAtStr, source string

	err := r.db.QueryRowContext(ctx, query).Scan(
		&p.ID,
		&p.PeakValue,
		&achievedAtStr,
		&source,
	)
	if err == sql.ErrNoRows {
		return model.PeakRecord{}, apperrors.ErrNoPeak
	}
	if err != nil {
		return model.PeakRecord{}, fmt.Errorf("failed to scan peak record: %w", err)
	}

	p.AchievedAt, err = ParseTime(achievedAtStr)
	if err != nil {
		return model.PeakRecord{}, fmt.Errorf("failed to parse peak timestamp: %w", err)
	}

	p.Source = model.PeakSource(source)
	return p, nil
}

// LatestAnchor returns the most recent observed or manually corrected peak
// record, or ErrNoPeak. Withdrawal-adjusted rows are skipped: they restate a
// peak that already accounts for money leaving, and drawdown math adds those
// withdrawals back from the flow log itself. Using them as the anchor would
// count the same withdrawal twice.
func (r *PeakRepository) LatestAnchor(ctx context.Context) (model.PeakRecord, error) {
	query := `
        SELECT id, peak_value, achieved_at, source
        FROM peak_records
        WHERE source != ?
        ORDER BY achieved_at DESC, rowid DESC
        LIMIT 1
    `

	var p model.PeakRecord
	var achievedAtStr, source string

	err := r.db.QueryRowContext(ctx, query, string(model.PeakWithdrawalAdjusted)).Scan(
		&p.ID,
		&p.PeakValue,
		&achievedAtStr,
		&source,
	)
	if err == sql.ErrNoRows {
		return model.PeakRecord{}, apperrors.ErrNoPeak
	}
	if err != nil {
		return model.PeakRecord{}, fmt.Errorf("failed to scan peak record: %w", err)
	}

	p.AchievedAt, err = ParseTime(achievedAtStr)
	if err != nil {
		return model.PeakRecord{}, fmt.Errorf("failed to parse peak timestamp: %w", err)
	}

	p.Source = model.PeakSource(source)
	return p, nil
}

// History returns the newest peak records up to limit, newest first.
func (r *PeakRepository) History(ctx context.Context, limit int) ([]model.PeakRecord, error) {
	query := `
        SELECT id, peak_value, achieved_at, source
        FROM peak_records
        ORDER BY achieved_at DESC, rowid DESC
        LIMIT ?
    `

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query peak records: %w", err)
	}
	defer rows.Close()

	records := []model.PeakRecord{}

	for rows.Next() {
		var p model.PeakRecord
		var achievedAtStr, source string

		if err := rows.Scan(&p.ID, &p.PeakValue, &achievedAtStr, &source); err != nil {
			return nil, fmt.Errorf("failed to scan peak record: %w", err)
		}

		p.AchievedAt, err = ParseTime(achievedAtStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse peak timestamp: %w", err)
		}

		p.Source = model.PeakSource(source)
		records = append(records, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating peak records: %w", err)
	}

	return records, nil
}
