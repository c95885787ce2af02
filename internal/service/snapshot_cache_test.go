package service

import (
	"fmt"
	"testing"

	"github.com/watchtowerhq/watchtower/internal/model"
)

func TestSnapshotCache(t *testing.T) {
	t.Run("empty cache has no snapshots", func(t *testing.T) {
		cache := newSnapshotCache(4)

		if _, ok := cache.latest(); ok {
			t.Error("expected no latest snapshot in empty cache")
		}
		if _, ok := cache.previous(); ok {
			t.Error("expected no previous snapshot in empty cache")
		}
	})

	t.Run("latest and previous track insertion order", func(t *testing.T) {
		cache := newSnapshotCache(4)
		cache.add(model.Snapshot{ID: "one"})
		cache.add(model.Snapshot{ID: "two"})

		latest, ok := cache.latest()
		if !ok || latest.ID != "two" {
			t.Errorf("expected latest 'two', got %q", latest.ID)
		}

		previous, ok := cache.previous()
		if !ok || previous.ID != "one" {
			t.Errorf("expected previous 'one', got %q", previous.ID)
		}
	})

	t.Run("full cache evicts the oldest", func(t *testing.T) {
		cache := newSnapshotCache(3)
		for i := 0; i < 5; i++ {
			cache.add(model.Snapshot{ID: fmt.Sprintf("snap-%d", i)})
		}

		if len(cache.items) != 3 {
			t.Fatalf("expected length 3, got %d", len(cache.items))
		}

		latest, _ := cache.latest()
		if latest.ID != "snap-4" {
			t.Errorf("expected latest 'snap-4', got %q", latest.ID)
		}

		previous, _ := cache.previous()
		if previous.ID != "snap-3" {
			t.Errorf("expected previous 'snap-3', got %q", previous.ID)
		}
	})
}
