package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/watchtowerhq/watchtower/internal/apperrors"
	"github.com/watchtowerhq/watchtower/internal/repository"
	"github.com/watchtowerhq/watchtower/internal/testutil"
)

func TestFlowInsertDuplicate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewFlowRepository(db)
	ctx := context.Background()

	flow := testutil.NewFlow().WithReference("sig-once").Flow()
	if err := repo.Insert(ctx, &flow); err != nil {
		t.Fatalf("Failed to insert flow: %v", err)
	}

	replay := testutil.NewFlow().WithReference("sig-once").WithAmount(999).Flow()
	if err := repo.Insert(ctx, &replay); !errors.Is(err, apperrors.ErrDuplicateFlow) {
		t.Errorf("Expected ErrDuplicateFlow, got %v", err)
	}

	flows, err := repo.ListSince(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Failed to list flows: %v", err)
	}
	if len(flows) != 1 {
		t.Errorf("Expected 1 flow after replay, got %d", len(flows))
	}
}

func TestFlowTotalsSince(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewFlowRepository(db)
	ctx := context.Background()

	testutil.NewFlow().WithAmount(100).At(time.Now().Add(-3 * time.Hour)).Build(t, db)
	testutil.NewFlow().WithAmount(250).At(time.Now().Add(-time.Hour)).Build(t, db)
	testutil.NewFlow().Withdrawal().WithAmount(80).At(time.Now().Add(-time.Hour)).Build(t, db)

	t.Run("sums each type separately", func(t *testing.T) {
		deposits, withdrawals, err := repo.TotalsSince(ctx, time.Now().Add(-24*time.Hour))
		if err != nil {
			t.Fatalf("Failed to sum flows: %v", err)
		}
		if deposits != 350 {
			t.Errorf("Expected deposits 350, got %f", deposits)
		}
		if withdrawals != 80 {
			t.Errorf("Expected withdrawals 80, got %f", withdrawals)
		}
	})

	t.Run("older flows fall outside the window", func(t *testing.T) {
		deposits, withdrawals, err := repo.TotalsSince(ctx, time.Now().Add(-2*time.Hour))
		if err != nil {
			t.Fatalf("Failed to sum flows: %v", err)
		}
		if deposits != 250 {
			t.Errorf("Expected deposits 250, got %f", deposits)
		}
		if withdrawals != 80 {
			t.Errorf("Expected withdrawals 80, got %f", withdrawals)
		}
	})

	t.Run("empty ledger sums to zero", func(t *testing.T) {
		emptyDB := testutil.SetupTestDB(t)
		deposits, withdrawals, err := repository.NewFlowRepository(emptyDB).
			TotalsSince(ctx, time.Now().Add(-time.Hour))
		if err != nil {
			t.Fatalf("Failed to sum flows: %v", err)
		}
		if deposits != 0 || withdrawals != 0 {
			t.Errorf("Expected zero totals, got %f / %f", deposits, withdrawals)
		}
	})
}

func TestFlowListSinceOrdering(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewFlowRepository(db)
	ctx := context.Background()

	newer := testutil.NewFlow().At(time.Now()).Build(t, db)
	older := testutil.NewFlow().At(time.Now().Add(-time.Hour)).Build(t, db)

	flows, err := repo.ListSince(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Failed to list flows: %v", err)
	}
	if len(flows) != 2 {
		t.Fatalf("Expected 2 flows, got %d", len(flows))
	}
	if flows[0].ID != older.ID || flows[1].ID != newer.ID {
		t.Error("Expected flows ordered oldest first")
	}
}
