package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/watchtowerhq/watchtower/internal/config"
	"github.com/watchtowerhq/watchtower/internal/repository"
	"github.com/watchtowerhq/watchtower/internal/testutil"
)

func testJobsConfig() config.JobsConfig {
	return config.JobsConfig{
		RemoteSyncSchedule: "@every 5m",
		CleanupSchedule:    "@daily",
		SnapshotRetention:  24 * time.Hour,
	}
}

func TestResyncSnapshots(t *testing.T) {
	t.Run("uploads pending snapshots oldest first", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		repo := repository.NewSnapshotRepository(db)
		store := &testutil.FakeRemoteStore{}

		first := testutil.NewSnapshot().At(time.Now().Add(-2 * time.Hour)).Build(t, db)
		second := testutil.NewSnapshot().At(time.Now().Add(-time.Hour)).Build(t, db)

		s := New(repo, store, testJobsConfig(), testutil.DiscardLogger())
		s.resyncSnapshots()

		if store.PutCount() != 2 {
			t.Fatalf("Expected 2 uploads, got %d", store.PutCount())
		}
		if store.Puts[0].ID != first.ID || store.Puts[1].ID != second.ID {
			t.Error("Expected uploads ordered oldest first")
		}

		pending, err := repo.ListUnsynced(context.Background(), 10)
		if err != nil {
			t.Fatalf("Failed to list unsynced snapshots: %v", err)
		}
		if len(pending) != 0 {
			t.Errorf("Expected no pending snapshots, got %d", len(pending))
		}
	})

	t.Run("upload failure leaves the batch pending", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		repo := repository.NewSnapshotRepository(db)
		store := &testutil.FakeRemoteStore{Err: errors.New("bucket unreachable")}

		testutil.NewSnapshot().At(time.Now().Add(-time.Hour)).Build(t, db)

		s := New(repo, store, testJobsConfig(), testutil.DiscardLogger())
		s.resyncSnapshots()

		pending, err := repo.ListUnsynced(context.Background(), 10)
		if err != nil {
			t.Fatalf("Failed to list unsynced snapshots: %v", err)
		}
		if len(pending) != 1 {
			t.Errorf("Expected the snapshot to stay pending, got %d", len(pending))
		}
	})
}

func TestPruneSnapshots(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewSnapshotRepository(db)
	ctx := context.Background()

	old := testutil.NewSnapshot().At(time.Now().Add(-48 * time.Hour)).Build(t, db)
	recent := testutil.NewSnapshot().At(time.Now()).Build(t, db)

	if err := repo.MarkSynced(ctx, old.ID); err != nil {
		t.Fatalf("Failed to mark snapshot synced: %v", err)
	}
	if err := repo.MarkSynced(ctx, recent.ID); err != nil {
		t.Fatalf("Failed to mark snapshot synced: %v", err)
	}

	s := New(repo, nil, testJobsConfig(), testutil.DiscardLogger())
	s.pruneSnapshots()

	remaining, err := repo.Range(ctx, time.Now().Add(-96*time.Hour), time.Now())
	if err != nil {
		t.Fatalf("Failed to query snapshots: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != recent.ID {
		t.Errorf("Expected only the recent snapshot to survive, got %d", len(remaining))
	}
}
