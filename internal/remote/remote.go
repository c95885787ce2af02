package remote

import (
	"context"

	"github.com/watchtowerhq/watchtower/internal/model"
)

// Store is the best-effort remote snapshot store. Failures are reported but
// never block the sampling loop; unsynced snapshots are retried by the
// re-sync job.
type Store interface {
	// PutSnapshot uploads one snapshot. The implementation derives the
	// object key from the snapshot timestamp and ID.
	PutSnapshot(ctx context.Context, s model.Snapshot) error
}
