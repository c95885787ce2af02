package service_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchtowerhq/watchtower/internal/apperrors"
	"github.com/watchtowerhq/watchtower/internal/model"
	"github.com/watchtowerhq/watchtower/internal/remote"
	"github.com/watchtowerhq/watchtower/internal/repository"
	"github.com/watchtowerhq/watchtower/internal/service"
	"github.com/watchtowerhq/watchtower/internal/testutil"
)

func newSamplerHarness(t *testing.T, db *sql.DB, source *testutil.FakeBalanceSource, oracle *testutil.FakeOracle, store remote.Store) *service.SamplerService {
	t.Helper()

	return service.NewSamplerService(
		source,
		oracle,
		repository.NewSnapshotRepository(db),
		repository.NewTradeRepository(db),
		repository.NewAuditRepository(db),
		testutil.NewTestPeakService(t, db),
		nil,
		store,
		testutil.TestAccount(),
		testutil.TestSamplerConfig(),
		testutil.DiscardLogger(),
	)
}

func defaultBalances() model.Balances {
	return model.Balances{
		Cash:          300,
		PrimaryAmount: 4,
		StakedAmount:  1,
		Positions:     map[string]float64{"token-a": 100},
	}
}

func defaultPrices() map[string]float64 {
	return map[string]float64{
		"primary-coin": 150,
		"token-a":      1,
	}
}

func TestSamplerSample(t *testing.T) {
	ctx := context.Background()

	t.Run("values and persists the account", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		source := testutil.NewFakeBalanceSource(defaultBalances())
		oracle := testutil.NewFakeOracle(defaultPrices())
		sampler := newSamplerHarness(t, db, source, oracle, nil)

		snap, err := sampler.Sample(ctx)
		require.NoError(t, err)

		// 300 cash + 4*150 primary + 1*150 staked + 100 position.
		assert.InDelta(t, 1150, snap.TotalValue, 1e-9)
		assert.True(t, snap.ConsistentTotal())
		assert.Equal(t, 1, snap.PositionCount)

		stored, err := repository.NewSnapshotRepository(db).Latest(ctx)
		require.NoError(t, err)
		assert.Equal(t, snap.ID, stored.ID)
		assert.InDelta(t, snap.TotalValue, stored.TotalValue, 1e-9)

		// First observed price becomes the position's entry basis.
		entry, err := repository.NewTradeRepository(db).GetEntryPrice(ctx, "token-a")
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.InDelta(t, 1, entry.Price, 1e-9)
	})

	t.Run("missing primary price aborts the cycle", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		source := testutil.NewFakeBalanceSource(defaultBalances())
		oracle := testutil.NewFakeOracle(map[string]float64{"token-a": 1})
		sampler := newSamplerHarness(t, db, source, oracle, nil)

		_, err := sampler.Sample(ctx)
		assert.ErrorIs(t, err, apperrors.ErrPriceUnavailable)

		_, err = repository.NewSnapshotRepository(db).Latest(ctx)
		assert.ErrorIs(t, err, apperrors.ErrNoSnapshot)
	})

	t.Run("implausible price falls back to the previous one", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		source := testutil.NewFakeBalanceSource(defaultBalances())
		oracle := testutil.NewFakeOracle(defaultPrices())
		sampler := newSamplerHarness(t, db, source, oracle, nil)

		_, err := sampler.Sample(ctx)
		require.NoError(t, err)

		// A quote three orders of magnitude above the cap must not be trusted.
		oracle.SetPrice("token-a", 5000)

		snap, err := sampler.Sample(ctx)
		require.NoError(t, err)
		pos, ok := snap.Positions["token-a"]
		require.True(t, ok)
		assert.InDelta(t, 1, pos.Price, 1e-9)
	})

	t.Run("implausible price without history drops the position", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		source := testutil.NewFakeBalanceSource(defaultBalances())
		oracle := testutil.NewFakeOracle(map[string]float64{
			"primary-coin": 150,
			"token-a":      5000,
		})
		sampler := newSamplerHarness(t, db, source, oracle, nil)

		snap, err := sampler.Sample(ctx)
		require.NoError(t, err)
		assert.NotContains(t, snap.Positions, "token-a")
		assert.InDelta(t, 1050, snap.TotalValue, 1e-9)
	})

	t.Run("implausible position value drops the position", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		balances := defaultBalances()
		balances.Positions["token-a"] = 2_000_000
		source := testutil.NewFakeBalanceSource(balances)
		oracle := testutil.NewFakeOracle(defaultPrices())
		sampler := newSamplerHarness(t, db, source, oracle, nil)

		snap, err := sampler.Sample(ctx)
		require.NoError(t, err)
		assert.NotContains(t, snap.Positions, "token-a")
	})

	t.Run("snapshot is mirrored and marked synced", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		source := testutil.NewFakeBalanceSource(defaultBalances())
		oracle := testutil.NewFakeOracle(defaultPrices())
		store := &testutil.FakeRemoteStore{}
		sampler := newSamplerHarness(t, db, source, oracle, store)

		snap, err := sampler.Sample(ctx)
		require.NoError(t, err)

		require.Eventually(t, func() bool { return store.PutCount() == 1 },
			time.Second, 10*time.Millisecond)
		assert.Equal(t, snap.ID, store.Puts[0].ID)

		repo := repository.NewSnapshotRepository(db)
		require.Eventually(t, func() bool {
			unsynced, err := repo.ListUnsynced(ctx, 10)
			return err == nil && len(unsynced) == 0
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("upload failure leaves the snapshot unsynced", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		source := testutil.NewFakeBalanceSource(defaultBalances())
		oracle := testutil.NewFakeOracle(defaultPrices())
		store := &testutil.FakeRemoteStore{Err: errors.New("bucket unreachable")}
		sampler := newSamplerHarness(t, db, source, oracle, store)

		_, err := sampler.Sample(ctx)
		require.NoError(t, err)

		unsynced, err := repository.NewSnapshotRepository(db).ListUnsynced(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, unsynced, 1)
	})
}

func TestSamplerForceSample(t *testing.T) {
	ctx := context.Background()

	t.Run("forced sample is audited", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		source := testutil.NewFakeBalanceSource(defaultBalances())
		oracle := testutil.NewFakeOracle(defaultPrices())
		sampler := newSamplerHarness(t, db, source, oracle, nil)

		snap, err := sampler.ForceSample(ctx)
		require.NoError(t, err)
		assert.InDelta(t, 1150, snap.TotalValue, 1e-9)

		entries, err := repository.NewAuditRepository(db).List(ctx, 10)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "forced_sample", entries[0].Action)
	})

	t.Run("failed cycle leaves no audit trail", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		source := testutil.NewFakeBalanceSource(defaultBalances())
		oracle := testutil.NewFakeOracle(map[string]float64{"token-a": 1})
		sampler := newSamplerHarness(t, db, source, oracle, nil)

		_, err := sampler.ForceSample(ctx)
		assert.ErrorIs(t, err, apperrors.ErrPriceUnavailable)

		entries, err := repository.NewAuditRepository(db).List(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

// blockingSource parks GetBalances until released so tests can hold a sample
// cycle open.
type blockingSource struct {
	entered chan struct{}
	release chan struct{}
}

func (s *blockingSource) GetBalances(ctx context.Context) (model.Balances, error) {
	select {
	case s.entered <- struct{}{}:
	default:
	}

	select {
	case <-s.release:
		return defaultBalances(), nil
	case <-ctx.Done():
		return model.Balances{}, ctx.Err()
	}
}

func TestSamplerBusy(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	source := &blockingSource{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	oracle := testutil.NewFakeOracle(defaultPrices())

	sampler := service.NewSamplerService(
		source,
		oracle,
		repository.NewSnapshotRepository(db),
		repository.NewTradeRepository(db),
		repository.NewAuditRepository(db),
		testutil.NewTestPeakService(t, db),
		nil,
		nil,
		testutil.TestAccount(),
		testutil.TestSamplerConfig(),
		testutil.DiscardLogger(),
	)

	done := make(chan error, 1)
	go func() {
		_, err := sampler.Sample(ctx)
		done <- err
	}()

	select {
	case <-source.entered:
	case <-time.After(time.Second):
		t.Fatal("first sample never started")
	}

	_, err := sampler.Sample(ctx)
	assert.ErrorIs(t, err, apperrors.ErrSamplerBusy)

	close(source.release)
	require.NoError(t, <-done)

	// The cycle token is returned; sampling works again.
	_, err = sampler.Sample(ctx)
	require.NoError(t, err)
}

func TestSamplerEmergencyStartup(t *testing.T) {
	db := testutil.SetupTestDB(t)
	source := testutil.NewFakeBalanceSource(model.Balances{})
	source.Err = errors.New("wallet service down")
	oracle := testutil.NewFakeOracle(nil)
	sampler := newSamplerHarness(t, db, source, oracle, nil)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		_ = sampler.Run(ctx)
		close(runDone)
	}()

	// With no stored history and no reachable account state, startup must
	// still leave a placeholder so downstream queries have a floor.
	repo := repository.NewSnapshotRepository(db)
	require.Eventually(t, func() bool {
		snap, err := repo.Latest(context.Background())
		return err == nil && snap.Emergency
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-runDone:
	case <-time.After(time.Second):
		t.Fatal("sampler did not stop on cancellation")
	}
}
