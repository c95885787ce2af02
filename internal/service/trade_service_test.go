package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchtowerhq/watchtower/internal/model"
	"github.com/watchtowerhq/watchtower/internal/repository"
	"github.com/watchtowerhq/watchtower/internal/testutil"
)

func TestRecordClosedTrade(t *testing.T) {
	ctx := context.Background()

	t.Run("derives pnl from prices when omitted", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestTradeService(t, db)

		trade := &model.ClosedTrade{
			AssetID:    "token-a",
			EntryPrice: 2,
			ExitPrice:  3,
			Amount:     10,
		}
		require.NoError(t, svc.RecordClosedTrade(ctx, trade))

		assert.InDelta(t, 10, trade.PnLUSD, 1e-9)
		assert.InDelta(t, 50, trade.PnLPercent, 1e-9)

		stored, err := svc.RecentTrades(ctx, 1)
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.InDelta(t, 10, stored[0].PnLUSD, 1e-9)
	})

	t.Run("reported pnl is kept as-is", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestTradeService(t, db)

		trade := &model.ClosedTrade{
			AssetID:    "token-a",
			EntryPrice: 2,
			ExitPrice:  3,
			Amount:     10,
			PnLUSD:     7.5,
			PnLPercent: 37.5,
		}
		require.NoError(t, svc.RecordClosedTrade(ctx, trade))
		assert.InDelta(t, 7.5, trade.PnLUSD, 1e-9)
	})

	t.Run("clears the entry price for the asset", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestTradeService(t, db)
		trades := repository.NewTradeRepository(db)

		require.NoError(t, trades.RecordEntryPrice(ctx, &model.EntryPrice{
			AssetID:    "token-a",
			Price:      2,
			RecordedAt: time.Now(),
		}))

		require.NoError(t, svc.RecordClosedTrade(ctx, &model.ClosedTrade{
			AssetID:    "token-a",
			EntryPrice: 2,
			ExitPrice:  4,
			Amount:     5,
		}))

		entry, err := trades.GetEntryPrice(ctx, "token-a")
		require.NoError(t, err)
		assert.Nil(t, entry)
	})

	t.Run("asset id is required", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestTradeService(t, db)

		err := svc.RecordClosedTrade(ctx, &model.ClosedTrade{EntryPrice: 1, ExitPrice: 2})
		assert.Error(t, err)
	})
}
