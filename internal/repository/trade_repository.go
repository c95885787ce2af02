package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/watchtowerhq/watchtower/internal/model"
)

// TradeRepository provides data access methods for the closed_trades and
// entry_prices tables.
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository creates a new TradeRepository with the provided database connection.
func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// InsertClosedTrade records a completed round trip.
func (r *TradeRepository) InsertClosedTrade(ctx context.Context, t *model.ClosedTrade) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}

	query := `
        INSERT INTO closed_trades (
            id, timestamp, asset_id, symbol,
            entry_price, exit_price, amount, pnl_usd, pnl_percent
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `

	_, err := r.db.ExecContext(ctx, query,
		t.ID,
		t.Timestamp.UTC().Format(time.RFC3339Nano),
		t.AssetID,
		nullString(t.Symbol),
		t.EntryPrice,
		t.ExitPrice,
		t.Amount,
		t.PnLUSD,
		t.PnLPercent,
	)
	if err != nil {
		return fmt.Errorf("failed to insert closed trade: %w", err)
	}

	return nil
}

// ListClosedTrades returns the newest closed trades up to limit, newest first.
func (r *TradeRepository) ListClosedTrades(ctx context.Context, limit int) ([]model.ClosedTrade, error) {
	query := `
        SELECT id, timestamp, asset_id, symbol,
               entry_price, exit_price, amount, pnl_usd, pnl_percent
        FROM closed_trades
        ORDER BY timestamp DESC
        LIMIT ?
    `

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query closed trades: %w", err)
	}
	defer rows.Close()

	trades := []model.ClosedTrade{}

	for rows.Next() {
		var t model.ClosedTrade
		var timestampStr string
		var symbol sql.NullString

		err := rows.Scan(
			&t.ID,
			&timestampStr,
			&t.AssetID,
			&symbol,
			&t.EntryPrice,
			&t.ExitPrice,
			&t.Amount,
			&t.PnLUSD,
			&t.PnLPercent,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan closed trade: %w", err)
		}

		t.Timestamp, err = ParseTime(timestampStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse trade timestamp: %w", err)
		}

		t.Symbol = symbol.String
		trades = append(trades, t)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating closed trades: %w", err)
	}

	return trades, nil
}

// Streak derives the win/loss streak from the closed trade history. The
// consecutive counters walk back from the most recent trade and stop at the
// first sign change, so at most one of them is non-zero.
func (r *TradeRepository) Streak(ctx context.Context) (model.TradeStreak, error) {
	query := `SELECT pnl_usd FROM closed_trades ORDER BY timestamp DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return model.TradeStreak{}, fmt.Errorf("failed to query closed trades: %w", err)
	}
	defer rows.Close()

	var streak model.TradeStreak
	streakBroken := false

	for rows.Next() {
		var pnl float64
		if err := rows.Scan(&pnl); err != nil {
			return model.TradeStreak{}, fmt.Errorf("failed to scan trade pnl: %w", err)
		}

		win := pnl > 0
		if win {
			streak.TotalWins++
		} else {
			streak.TotalLosses++
		}

		if streakBroken {
			continue
		}

		switch {
		case win && streak.ConsecutiveLosses == 0:
			streak.ConsecutiveWins++
		case !win && streak.ConsecutiveWins == 0:
			streak.ConsecutiveLosses++
		default:
			streakBroken = true
		}
	}

	if err = rows.Err(); err != nil {
		return model.TradeStreak{}, fmt.Errorf("error iterating closed trades: %w", err)
	}

	return streak, nil
}

// GetEntryPrice returns the recorded entry price for an asset, or nil when
// none was recorded.
func (r *TradeRepository) GetEntryPrice(ctx context.Context, assetID string) (*model.EntryPrice, error) {
	query := `SELECT asset_id, price, recorded_at FROM entry_prices WHERE asset_id = ?`

	var e model.EntryPrice
	var recordedAtStr string

	err := r.db.QueryRowContext(ctx, query, assetID).Scan(&e.AssetID, &e.Price, &recordedAtStr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan entry price: %w", err)
	}

	e.RecordedAt, err = ParseTime(recordedAtStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse entry price timestamp: %w", err)
	}

	return &e, nil
}

// RecordEntryPrice stores the first observed price for an asset. Later calls
// for the same asset are ignored so the original basis is preserved.
func (r *TradeRepository) RecordEntryPrice(ctx context.Context, e *model.EntryPrice) error {
	query := `
        INSERT INTO entry_prices (asset_id, price, recorded_at)
        VALUES (?, ?, ?)
        ON CONFLICT (asset_id) DO NOTHING
    `

	_, err := r.db.ExecContext(ctx, query,
		e.AssetID,
		e.Price,
		e.RecordedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to record entry price: %w", err)
	}

	return nil
}

// DeleteEntryPrice removes the entry price for a fully exited position.
func (r *TradeRepository) DeleteEntryPrice(ctx context.Context, assetID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM entry_prices WHERE asset_id = ?`, assetID)
	if err != nil {
		return fmt.Errorf("failed to delete entry price: %w", err)
	}
	return nil
}
