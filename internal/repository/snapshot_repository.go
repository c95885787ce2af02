package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/watchtowerhq/watchtower/internal/apperrors"
	"github.com/watchtowerhq/watchtower/internal/model"
)

// SnapshotRepository provides data access methods for the portfolio_snapshots
// table. Writes are serialized by a mutex so concurrent samplers and
// administrative endpoints never interleave inserts.
type SnapshotRepository struct {
	db      *sql.DB
	writeMu sync.Mutex
}

// NewSnapshotRepository creates a new SnapshotRepository with the provided database connection.
func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Append inserts a snapshot and returns its generated ID. The snapshot is
// written with synced = 0; the remote store marks it synced after upload.
func (r *SnapshotRepository) Append(ctx context.Context, s *model.Snapshot) (string, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	positions, err := json.Marshal(s.Positions)
	if err != nil {
		return "", fmt.Errorf("failed to encode positions: %w", err)
	}

	if s.ID == "" {
		s.ID = uuid.New().String()
	}

	query := `
        INSERT INTO portfolio_snapshots (
            id, timestamp, total_value, cash_balance,
            primary_balance, primary_value, primary_price,
            staked_balance, staked_value,
            positions, position_count, emergency, synced
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
    `

	_, err = r.db.ExecContext(ctx, query,
		s.ID,
		s.Timestamp.UTC().Format(time.RFC3339Nano),
		s.TotalValue,
		s.CashBalance,
		s.PrimaryBalance,
		s.PrimaryValue,
		s.PrimaryPrice,
		s.StakedBalance,
		s.StakedValue,
		string(positions),
		len(s.Positions),
		boolToInt(s.Emergency),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert snapshot: %w", err)
	}

	return s.ID, nil
}

// Latest returns the most recent snapshot, or ErrNoSnapshot when the table is empty.
func (r *SnapshotRepository) Latest(ctx context.Context) (model.Snapshot, error) {
	query := selectSnapshot + ` ORDER BY timestamp DESC LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, query))
}

// First returns the oldest snapshot, used as the default PnL baseline.
func (r *SnapshotRepository) First(ctx context.Context) (model.Snapshot, error) {
	query := selectSnapshot + ` ORDER BY timestamp ASC LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, query))
}

// FirstAfter returns the oldest snapshot at or after the given time.
func (r *SnapshotRepository) FirstAfter(ctx context.Context, t time.Time) (model.Snapshot, error) {
	query := selectSnapshot + ` WHERE timestamp >= ? ORDER BY timestamp ASC LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, t.UTC().Format(time.RFC3339Nano)))
}

// Range returns snapshots between since and until inclusive, oldest first.
func (r *SnapshotRepository) Range(ctx context.Context, since, until time.Time) ([]model.Snapshot, error) {
	if since.After(until) {
		return nil, apperrors.ErrInvalidDateRange
	}

	query := selectSnapshot + ` WHERE timestamp >= ? AND timestamp <= ? ORDER BY timestamp ASC`

	rows, err := r.db.QueryContext(ctx, query,
		since.UTC().Format(time.RFC3339Nano),
		until.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	return r.scanAll(rows)
}

// ListUnsynced returns snapshots not yet uploaded to the remote store,
// oldest first, capped at limit.
func (r *SnapshotRepository) ListUnsynced(ctx context.Context, limit int) ([]model.Snapshot, error) {
	query := selectSnapshot + ` WHERE synced = 0 ORDER BY timestamp ASC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unsynced snapshots: %w", err)
	}
	defer rows.Close()

	return r.scanAll(rows)
}

// MarkSynced flags a snapshot as uploaded to the remote store.
func (r *SnapshotRepository) MarkSynced(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE portfolio_snapshots SET synced = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark snapshot synced: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperrors.ErrNoSnapshot
	}

	return nil
}

// DeleteOlderThan removes snapshots older than the cutoff. Unsynced snapshots
// are retained regardless of age so the remote store never loses history.
func (r *SnapshotRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM portfolio_snapshots WHERE timestamp < ? AND synced = 1`,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old snapshots: %w", err)
	}

	return result.RowsAffected()
}

const selectSnapshot = `
    SELECT id, timestamp, total_value, cash_balance,
           primary_balance, primary_value, primary_price,
           staked_balance, staked_value,
           positions, position_count, emergency
    FROM portfolio_snapshots
`

func (r *SnapshotRepository) scanOne(row *sql.Row) (model.Snapshot, error) {
	var s model.Snapshot
	var timestampStr, positionsStr string
	var emergency int

	err := row.Scan(
		&s.ID,
		&timestampStr,
		&s.TotalValue,
		&s.CashBalance,
		&s.PrimaryBalance,
		&s.PrimaryValue,
		&s.PrimaryPrice,
		&s.StakedBalance,
		&s.StakedValue,
		&positionsStr,
		&s.PositionCount,
		&emergency,
	)
	if err == sql.ErrNoRows {
		return model.Snapshot{}, apperrors.ErrNoSnapshot
	}
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("failed to scan snapshot: %w", err)
	}

	if err := finishSnapshot(&s, timestampStr, positionsStr, emergency); err != nil {
		return model.Snapshot{}, err
	}

	return s, nil
}

func (r *SnapshotRepository) scanAll(rows *sql.Rows) ([]model.Snapshot, error) {
	snapshots := []model.Snapshot{}

	for rows.Next() {
		var s model.Snapshot
		var timestampStr, positionsStr string
		var emergency int

		err := rows.Scan(
			&s.ID,
			&timestampStr,
			&s.TotalValue,
			&s.CashBalance,
			&s.PrimaryBalance,
			&s.PrimaryValue,
			&s.PrimaryPrice,
			&s.StakedBalance,
			&s.StakedValue,
			&positionsStr,
			&s.PositionCount,
			&emergency,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}

		if err := finishSnapshot(&s, timestampStr, positionsStr, emergency); err != nil {
			return nil, err
		}

		snapshots = append(snapshots, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return snapshots, nil
}

func finishSnapshot(s *model.Snapshot, timestampStr, positionsStr string, emergency int) error {
	var err error
	s.Timestamp, err = ParseTime(timestampStr)
	if err != nil {
		return fmt.Errorf("failed to parse snapshot timestamp: %w", err)
	}

	if err := json.Unmarshal([]byte(positionsStr), &s.Positions); err != nil {
		return fmt.Errorf("failed to decode positions: %w", err)
	}

	s.Emergency = emergency != 0
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
