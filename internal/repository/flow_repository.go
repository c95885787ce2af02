package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/watchtowerhq/watchtower/internal/apperrors"
	"github.com/watchtowerhq/watchtower/internal/model"
)

// FlowRepository provides data access methods for the capital_flows table.
// The external_reference column is unique, which makes flow recording
// idempotent: replayed events surface as ErrDuplicateFlow.
type FlowRepository struct {
	db *sql.DB
}

// NewFlowRepository creates a new FlowRepository with the provided database connection.
func NewFlowRepository(db *sql.DB) *FlowRepository {
	return &FlowRepository{db: db}
}

// Insert records a capital flow. Returns ErrDuplicateFlow when a flow with
// the same external reference was already recorded.
func (r *FlowRepository) Insert(ctx context.Context, f *model.CapitalFlow) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}

	query := `
        INSERT INTO capital_flows (
            id, timestamp, flow_type, amount_usd,
            asset_id, asset_amount, external_reference, notes
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `

	_, err := r.db.ExecContext(ctx, query,
		f.ID,
		f.Timestamp.UTC().Format(time.RFC3339Nano),
		string(f.FlowType),
		f.AmountUSD,
		nullString(f.AssetID),
		nullFloat(f.AssetAmount),
		f.ExternalReference,
		nullString(f.Notes),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return apperrors.ErrDuplicateFlow
		}
		return fmt.Errorf("failed to insert capital flow: %w", err)
	}

	return nil
}

// TotalsSince returns the summed deposits and withdrawals recorded at or
// after the given time. Both totals are non-negative.
func (r *FlowRepository) TotalsSince(ctx context.Context, since time.Time) (deposits, withdrawals float64, err error) {
	query := `
        SELECT
            COALESCE(SUM(CASE WHEN flow_type = 'deposit' THEN amount_usd ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN flow_type = 'withdrawal' THEN amount_usd ELSE 0 END), 0)
        FROM capital_flows
        WHERE timestamp >= ?
    `

	err = r.db.QueryRowContext(ctx, query, since.UTC().Format(time.RFC3339Nano)).
		Scan(&deposits, &withdrawals)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sum capital flows: %w", err)
	}

	return deposits, withdrawals, nil
}

// ListSince returns flows recorded at or after the given time, oldest first.
func (r *FlowRepository) ListSince(ctx context.Context, since time.Time) ([]model.CapitalFlow, error) {
	query := `
        SELECT id, timestamp, flow_type, amount_usd,
               asset_id, asset_amount, external_reference, notes
        FROM capital_flows
        WHERE timestamp >= ?
        ORDER BY timestamp ASC
    `

	rows, err := r.db.QueryContext(ctx, query, since.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to query capital flows: %w", err)
	}
	defer rows.Close()

	flows := []model.CapitalFlow{}

	for rows.Next() {
		var f model.CapitalFlow
		var timestampStr, flowType string
		var assetID, notes sql.NullString
		var assetAmount sql.NullFloat64

		err := rows.Scan(
			&f.ID,
			&timestampStr,
			&flowType,
			&f.AmountUSD,
			&assetID,
			&assetAmount,
			&f.ExternalReference,
			&notes,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan capital flow: %w", err)
		}

		f.Timestamp, err = ParseTime(timestampStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse flow timestamp: %w", err)
		}

		f.FlowType = model.FlowType(flowType)
		f.AssetID = assetID.String
		f.AssetAmount = assetAmount.Float64
		f.Notes = notes.String

		flows = append(flows, f)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating capital flows: %w", err)
	}

	return flows, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f float64) any {
	if f == 0 {
		return nil
	}
	return f
}
