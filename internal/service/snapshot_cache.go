package service

import (
	"sync"

	"github.com/watchtowerhq/watchtower/internal/model"
)

// snapshotCache is a bounded in-memory window over the most recent
// snapshots. When full, adding a snapshot evicts the oldest one.
type snapshotCache struct {
	mu    sync.RWMutex
	items []model.Snapshot
	size  int
}

func newSnapshotCache(size int) *snapshotCache {
	return &snapshotCache{
		items: make([]model.Snapshot, 0, size),
		size:  size,
	}
}

func (c *snapshotCache) add(s model.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.items) == c.size {
		copy(c.items, c.items[1:])
		c.items = c.items[:len(c.items)-1]
	}
	c.items = append(c.items, s)
}

// latest returns the newest cached snapshot and whether one exists.
func (c *snapshotCache) latest() (model.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.items) == 0 {
		return model.Snapshot{}, false
	}
	return c.items[len(c.items)-1], true
}

// previous returns the second-newest cached snapshot and whether one exists.
func (c *snapshotCache) previous() (model.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.items) < 2 {
		return model.Snapshot{}, false
	}
	return c.items[len(c.items)-2], true
}
