package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/watchtowerhq/watchtower/internal/model"
	"github.com/watchtowerhq/watchtower/internal/repository"
)

// SnapshotBuilder provides a fluent interface for creating test snapshots.
//
// Example usage:
//
//	// Simple creation with defaults
//	snap := testutil.NewSnapshot().Build(t, db)
//
//	// Customized snapshot
//	snap := testutil.NewSnapshot().
//	    WithTotalValue(1200).
//	    At(time.Now().Add(-time.Hour)).
//	    Build(t, db)
type SnapshotBuilder struct {
	snapshot model.Snapshot
}

// NewSnapshot creates a SnapshotBuilder with sensible defaults: $1000 total,
// split between cash, the primary holding and one position.
func NewSnapshot() *SnapshotBuilder {
	return &SnapshotBuilder{
		snapshot: model.Snapshot{
			Timestamp:      time.Now().UTC(),
			TotalValue:     1000,
			CashBalance:    300,
			PrimaryBalance: 4,
			PrimaryPrice:   150,
			PrimaryValue:   600,
			Positions: map[string]model.Position{
				"token-a": {Amount: 100, Price: 1, Value: 100},
			},
			PositionCount: 1,
		},
	}
}

// At sets the snapshot timestamp.
func (b *SnapshotBuilder) At(ts time.Time) *SnapshotBuilder {
	b.snapshot.Timestamp = ts.UTC()
	return b
}

// WithTotalValue sets the total value without touching the parts. Tests that
// care about consistency should set the parts instead.
func (b *SnapshotBuilder) WithTotalValue(v float64) *SnapshotBuilder {
	b.snapshot.TotalValue = v
	return b
}

// WithCash sets the cash balance and recomputes the total.
func (b *SnapshotBuilder) WithCash(v float64) *SnapshotBuilder {
	b.snapshot.CashBalance = v
	return b.recompute()
}

// WithPrimary sets the primary holding and recomputes the total.
func (b *SnapshotBuilder) WithPrimary(amount, price float64) *SnapshotBuilder {
	b.snapshot.PrimaryBalance = amount
	b.snapshot.PrimaryPrice = price
	b.snapshot.PrimaryValue = amount * price
	return b.recompute()
}

// WithPosition adds or replaces a position and recomputes the total.
func (b *SnapshotBuilder) WithPosition(assetID string, amount, price float64) *SnapshotBuilder {
	b.snapshot.Positions[assetID] = model.Position{
		Amount: amount,
		Price:  price,
		Value:  amount * price,
	}
	b.snapshot.PositionCount = len(b.snapshot.Positions)
	return b.recompute()
}

// WithoutPositions clears all positions and recomputes the total.
func (b *SnapshotBuilder) WithoutPositions() *SnapshotBuilder {
	b.snapshot.Positions = map[string]model.Position{}
	b.snapshot.PositionCount = 0
	return b.recompute()
}

// Emergency marks the snapshot as an emergency placeholder.
func (b *SnapshotBuilder) Emergency() *SnapshotBuilder {
	b.snapshot.Emergency = true
	return b
}

func (b *SnapshotBuilder) recompute() *SnapshotBuilder {
	b.snapshot.TotalValue = b.snapshot.CashBalance +
		b.snapshot.PrimaryValue +
		b.snapshot.StakedValue +
		b.snapshot.PositionsValue()
	return b
}

// Snapshot returns the built snapshot without persisting it.
func (b *SnapshotBuilder) Snapshot() model.Snapshot {
	return b.snapshot
}

// Build persists the snapshot and returns it.
func (b *SnapshotBuilder) Build(t *testing.T, db *sql.DB) model.Snapshot {
	t.Helper()

	repo := repository.NewSnapshotRepository(db)
	if _, err := repo.Append(context.Background(), &b.snapshot); err != nil {
		t.Fatalf("Failed to create test snapshot: %v", err)
	}
	return b.snapshot
}

// FlowBuilder provides a fluent interface for creating test capital flows.
type FlowBuilder struct {
	flow model.CapitalFlow
}

// NewFlow creates a FlowBuilder for a $100 deposit with a unique reference.
func NewFlow() *FlowBuilder {
	return &FlowBuilder{
		flow: model.CapitalFlow{
			Timestamp:         time.Now().UTC(),
			FlowType:          model.FlowDeposit,
			AmountUSD:         100,
			ExternalReference: MakeReference(),
		},
	}
}

// Withdrawal turns the flow into a withdrawal.
func (b *FlowBuilder) Withdrawal() *FlowBuilder {
	b.flow.FlowType = model.FlowWithdrawal
	return b
}

// WithAmount sets the USD amount.
func (b *FlowBuilder) WithAmount(v float64) *FlowBuilder {
	b.flow.AmountUSD = v
	return b
}

// WithReference sets the external reference.
func (b *FlowBuilder) WithReference(ref string) *FlowBuilder {
	b.flow.ExternalReference = ref
	return b
}

// At sets the flow timestamp.
func (b *FlowBuilder) At(ts time.Time) *FlowBuilder {
	b.flow.Timestamp = ts.UTC()
	return b
}

// Flow returns the built flow without persisting it.
func (b *FlowBuilder) Flow() model.CapitalFlow {
	return b.flow
}

// Build persists the flow and returns it.
func (b *FlowBuilder) Build(t *testing.T, db *sql.DB) model.CapitalFlow {
	t.Helper()

	repo := repository.NewFlowRepository(db)
	if err := repo.Insert(context.Background(), &b.flow); err != nil {
		t.Fatalf("Failed to create test flow: %v", err)
	}
	return b.flow
}

// TradeBuilder provides a fluent interface for creating test closed trades.
type TradeBuilder struct {
	trade model.ClosedTrade
}

// NewTrade creates a TradeBuilder for a winning trade.
func NewTrade() *TradeBuilder {
	return &TradeBuilder{
		trade: model.ClosedTrade{
			Timestamp:  time.Now().UTC(),
			AssetID:    "token-a",
			EntryPrice: 1,
			ExitPrice:  2,
			Amount:     10,
			PnLUSD:     10,
			PnLPercent: 100,
		},
	}
}

// Losing turns the trade into a loss of the same size.
func (b *TradeBuilder) Losing() *TradeBuilder {
	b.trade.ExitPrice = b.trade.EntryPrice / 2
	b.trade.PnLUSD = -b.trade.PnLUSD
	b.trade.PnLPercent = -50
	return b
}

// WithAsset sets the asset ID.
func (b *TradeBuilder) WithAsset(assetID string) *TradeBuilder {
	b.trade.AssetID = assetID
	return b
}

// At sets the trade timestamp.
func (b *TradeBuilder) At(ts time.Time) *TradeBuilder {
	b.trade.Timestamp = ts.UTC()
	return b
}

// Build persists the trade and returns it.
func (b *TradeBuilder) Build(t *testing.T, db *sql.DB) model.ClosedTrade {
	t.Helper()

	repo := repository.NewTradeRepository(db)
	if err := repo.InsertClosedTrade(context.Background(), &b.trade); err != nil {
		t.Fatalf("Failed to create test trade: %v", err)
	}
	return b.trade
}
