package service_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchtowerhq/watchtower/internal/dispatch"
	"github.com/watchtowerhq/watchtower/internal/model"
	"github.com/watchtowerhq/watchtower/internal/repository"
	"github.com/watchtowerhq/watchtower/internal/service"
	"github.com/watchtowerhq/watchtower/internal/testutil"
)

// newTriggerHarness wires a TriggerService against a running coordinator
// whose agent records every delivered alert.
func newTriggerHarness(t *testing.T, db *sql.DB, grace time.Duration) (*service.TriggerService, *testutil.FakeAgent, *dispatch.Coordinator) {
	t.Helper()

	agent := testutil.NewFakeAgent()
	coordinator := dispatch.NewCoordinator(agent, testutil.DiscardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = coordinator.Run(ctx) }()

	svc := service.NewTriggerService(
		testutil.TestTriggerConfig(),
		grace,
		repository.NewTradeRepository(db),
		testutil.NewTestPeakService(t, db),
		testutil.NewTestPnLService(t, db),
		coordinator,
		testutil.DiscardLogger(),
	)
	return svc, agent, coordinator
}

// waitForAlert blocks until the agent has been invoked and the execution gate
// has been released again, then returns the delivered alert.
func waitForAlert(t *testing.T, agent *testutil.FakeAgent, coordinator *dispatch.Coordinator) dispatch.Alert {
	t.Helper()

	select {
	case <-agent.Invoked:
	case <-time.After(time.Second):
		t.Fatal("expected an alert to be dispatched")
	}
	require.Eventually(t, func() bool { return !coordinator.Busy() }, time.Second, time.Millisecond)

	alert, ok := agent.LastAlert()
	require.True(t, ok)
	return alert
}

func requireNoAlert(t *testing.T, agent *testutil.FakeAgent, before int) {
	t.Helper()
	require.Never(t, func() bool { return agent.AlertCount() > before },
		100*time.Millisecond, 10*time.Millisecond)
}

// balancedSnapshot builds a snapshot that trips no rule: cash and primary
// inside their bands, every position under the size trigger, nothing dusty.
func balancedSnapshot() *testutil.SnapshotBuilder {
	return testutil.NewSnapshot().
		WithoutPositions().
		WithCash(300).
		WithPrimary(1, 150).
		WithPosition("alpha", 140, 1).
		WithPosition("beta", 140, 1).
		WithPosition("gamma", 140, 1).
		WithPosition("delta", 130, 1)
}

func TestTriggerRisk(t *testing.T) {
	ctx := context.Background()

	t.Run("balance floor outranks maintenance", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc, agent, coordinator := newTriggerHarness(t, db, 0)

		// Both the floor and a dust position are breached; risk wins.
		snap := testutil.NewSnapshot().
			WithoutPositions().
			WithCash(30).
			WithPrimary(1, 9).
			WithPosition("dusty", 1, 0.5).
			Snapshot()

		svc.Evaluate(ctx, snap, nil)

		alert := waitForAlert(t, agent, coordinator)
		assert.Equal(t, "balance_floor", alert.Rule)
		assert.Equal(t, model.TriggerRisk, alert.Category)
		assert.Nil(t, alert.Previous)
	})

	t.Run("risk rules share one cooldown", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc, agent, coordinator := newTriggerHarness(t, db, 0)

		snap := testutil.NewSnapshot().WithoutPositions().WithCash(30).WithPrimary(0, 0).Snapshot()

		svc.Evaluate(ctx, snap, nil)
		waitForAlert(t, agent, coordinator)

		svc.Evaluate(ctx, snap, nil)
		requireNoAlert(t, agent, 1)
	})

	t.Run("drawdown breach", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc, agent, coordinator := newTriggerHarness(t, db, 0)

		peaks := testutil.NewTestPeakService(t, db)
		require.NoError(t, peaks.Observe(ctx, 1000, time.Now().Add(-time.Hour)))

		snap := testutil.NewSnapshot().WithoutPositions().WithCash(650).WithPrimary(0, 0).Snapshot()

		svc.Evaluate(ctx, snap, nil)

		alert := waitForAlert(t, agent, coordinator)
		assert.Equal(t, "drawdown_limit", alert.Rule)
	})

	t.Run("max loss on adjusted pnl", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc, agent, coordinator := newTriggerHarness(t, db, 0)

		testutil.NewSnapshot().WithTotalValue(1000).At(time.Now().Add(-2 * time.Hour)).Build(t, db)
		current := testutil.NewSnapshot().WithTotalValue(880).Build(t, db)

		svc.Evaluate(ctx, current, nil)

		alert := waitForAlert(t, agent, coordinator)
		assert.Equal(t, "max_loss", alert.Rule)
	})

	t.Run("consecutive loss streak", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc, agent, coordinator := newTriggerHarness(t, db, 0)

		for i := 0; i < 6; i++ {
			testutil.NewTrade().Losing().At(time.Now().Add(-time.Duration(i) * time.Minute)).Build(t, db)
		}

		svc.Evaluate(ctx, balancedSnapshot().Snapshot(), nil)

		alert := waitForAlert(t, agent, coordinator)
		assert.Equal(t, "loss_streak", alert.Rule)
	})
}

func TestTriggerAnalysis(t *testing.T) {
	ctx := context.Background()

	t.Run("oversized positions alert per asset", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc, agent, coordinator := newTriggerHarness(t, db, 0)

		snap := testutil.NewSnapshot().
			WithoutPositions().
			WithCash(300).
			WithPrimary(1, 150).
			WithPosition("alpha", 200, 1).
			WithPosition("beta", 200, 1).
			Snapshot()

		svc.Evaluate(ctx, snap, nil)
		first := waitForAlert(t, agent, coordinator)
		assert.Equal(t, "position_size", first.Rule)
		assert.Equal(t, "alpha", first.AssetID)

		// Alpha is now on cooldown; beta gets its own review.
		svc.Evaluate(ctx, snap, nil)
		second := waitForAlert(t, agent, coordinator)
		assert.Equal(t, "position_size", second.Rule)
		assert.Equal(t, "beta", second.AssetID)
	})

	t.Run("gain multiple against the recorded entry", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc, agent, coordinator := newTriggerHarness(t, db, 0)

		trades := repository.NewTradeRepository(db)
		require.NoError(t, trades.RecordEntryPrice(ctx, &model.EntryPrice{
			AssetID:    "alpha",
			Price:      1,
			RecordedAt: time.Now().Add(-24 * time.Hour),
		}))

		snap := testutil.NewSnapshot().
			WithoutPositions().
			WithCash(300).
			WithPrimary(1, 150).
			WithPosition("alpha", 40, 3).
			WithPosition("beta", 140, 1).
			WithPosition("gamma", 140, 1).
			WithPosition("delta", 140, 1).
			Snapshot()

		svc.Evaluate(ctx, snap, nil)

		alert := waitForAlert(t, agent, coordinator)
		assert.Equal(t, "gain_multiple", alert.Rule)
		assert.Equal(t, "alpha", alert.AssetID)
	})
}

func TestTriggerMaintenance(t *testing.T) {
	ctx := context.Background()

	t.Run("dust position", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc, agent, coordinator := newTriggerHarness(t, db, 0)

		snap := balancedSnapshot().WithPosition("dusty", 1, 0.5).Snapshot()

		svc.Evaluate(ctx, snap, nil)

		alert := waitForAlert(t, agent, coordinator)
		assert.Equal(t, "dust_position", alert.Rule)
		assert.Equal(t, "dusty", alert.AssetID)
	})

	t.Run("cash emergency", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc, agent, coordinator := newTriggerHarness(t, db, 0)

		snap := testutil.NewSnapshot().
			WithoutPositions().
			WithCash(30).
			WithPrimary(1, 150).
			WithPosition("alpha", 140, 1).
			WithPosition("beta", 140, 1).
			WithPosition("gamma", 140, 1).
			WithPosition("delta", 140, 1).
			WithPosition("epsilon", 140, 1).
			WithPosition("zeta", 120, 1).
			Snapshot()

		svc.Evaluate(ctx, snap, nil)

		alert := waitForAlert(t, agent, coordinator)
		assert.Equal(t, "cash_emergency", alert.Rule)
	})

	t.Run("primary allocation out of band", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc, agent, coordinator := newTriggerHarness(t, db, 0)

		snap := testutil.NewSnapshot().
			WithoutPositions().
			WithCash(300).
			WithPrimary(2, 200).
			WithPosition("alpha", 100, 1).
			WithPosition("beta", 100, 1).
			WithPosition("gamma", 100, 1).
			Snapshot()

		svc.Evaluate(ctx, snap, nil)

		alert := waitForAlert(t, agent, coordinator)
		assert.Equal(t, "primary_allocation", alert.Rule)
	})

	t.Run("unexplained cash increase flags a realized gain", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc, agent, coordinator := newTriggerHarness(t, db, 0)

		previous := balancedSnapshot().Snapshot()
		current := testutil.NewSnapshot().
			WithoutPositions().
			WithCash(400).
			WithPrimary(1, 150).
			WithPosition("alpha", 140, 1).
			WithPosition("beta", 140, 1).
			WithPosition("gamma", 140, 1).
			Snapshot()

		svc.Evaluate(ctx, current, &previous)

		alert := waitForAlert(t, agent, coordinator)
		assert.Equal(t, "realized_gain", alert.Rule)

		// The agent receives both snapshots of the pair that fired the rule.
		require.NotNil(t, alert.Previous)
		assert.InDelta(t, previous.CashBalance, alert.Previous.CashBalance, 1e-9)
		assert.InDelta(t, current.TotalValue, alert.Snapshot.TotalValue, 1e-9)
	})

	t.Run("matching primary sale suppresses the realized gain alert", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc, agent, _ := newTriggerHarness(t, db, 0)

		previous := testutil.NewSnapshot().
			WithoutPositions().
			WithCash(300).
			WithPrimary(1, 200).
			WithPosition("alpha", 140, 1).
			WithPosition("beta", 140, 1).
			WithPosition("gamma", 140, 1).
			WithPosition("delta", 130, 1).
			Snapshot()
		// Cash rose 100 while the primary holding shed 90: a rebalance.
		current := testutil.NewSnapshot().
			WithoutPositions().
			WithCash(400).
			WithPrimary(1, 110).
			WithPosition("alpha", 140, 1).
			WithPosition("beta", 140, 1).
			WithPosition("gamma", 140, 1).
			WithPosition("delta", 130, 1).
			Snapshot()

		svc.Evaluate(ctx, current, &previous)
		requireNoAlert(t, agent, 0)
	})
}

func TestTriggerSuppression(t *testing.T) {
	ctx := context.Background()

	t.Run("startup grace mutes everything", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc, agent, _ := newTriggerHarness(t, db, time.Hour)

		snap := testutil.NewSnapshot().WithoutPositions().WithCash(10).WithPrimary(0, 0).Snapshot()

		svc.Evaluate(ctx, snap, nil)
		requireNoAlert(t, agent, 0)
	})

	t.Run("emergency snapshots are never evaluated", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc, agent, _ := newTriggerHarness(t, db, 0)

		snap := testutil.NewSnapshot().Emergency().WithTotalValue(0).Snapshot()

		svc.Evaluate(ctx, snap, nil)
		requireNoAlert(t, agent, 0)
	})

	t.Run("alert is dropped while an execution holds the gate", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc, agent, coordinator := newTriggerHarness(t, db, 0)

		agent.Block = make(chan struct{})

		floor := testutil.NewSnapshot().WithoutPositions().WithCash(30).WithPrimary(0, 0).Snapshot()
		svc.Evaluate(ctx, floor, nil)

		select {
		case <-agent.Invoked:
		case <-time.After(time.Second):
			t.Fatal("expected the first alert to reach the agent")
		}

		// A maintenance rule fires while the agent is still working; the
		// coordinator drops it rather than queueing a second execution.
		dusty := balancedSnapshot().WithPosition("dusty", 1, 0.5).Snapshot()
		svc.Evaluate(ctx, dusty, nil)
		requireNoAlert(t, agent, 1)

		close(agent.Block)
		require.Eventually(t, func() bool { return !coordinator.Busy() }, time.Second, time.Millisecond)
		assert.Equal(t, 1, agent.AlertCount())
	})
}
