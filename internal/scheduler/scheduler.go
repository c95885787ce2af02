package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/watchtowerhq/watchtower/internal/config"
	"github.com/watchtowerhq/watchtower/internal/remote"
	"github.com/watchtowerhq/watchtower/internal/repository"
)

// resyncBatchSize caps how many unsynced snapshots one re-sync run uploads.
const resyncBatchSize = 100

// Scheduler runs the background maintenance jobs: re-syncing snapshots that
// missed their remote upload and pruning local history past retention.
type Scheduler struct {
	cron      *cron.Cron
	snapshots *repository.SnapshotRepository
	remote    remote.Store
	cfg       config.JobsConfig
	log       zerolog.Logger
}

// New creates a scheduler. The remote store may be nil, in which case only
// the retention job is registered.
func New(
	snapshots *repository.SnapshotRepository,
	remoteStore remote.Store,
	cfg config.JobsConfig,
	log zerolog.Logger,
) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		snapshots: snapshots,
		remote:    remoteStore,
		cfg:       cfg,
		log:       log.With().Str("component", "scheduler").Logger(),
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if s.remote != nil {
		if _, err := s.cron.AddFunc(s.cfg.RemoteSyncSchedule, s.resyncSnapshots); err != nil {
			return err
		}
	}
	if _, err := s.cron.AddFunc(s.cfg.CleanupSchedule, s.pruneSnapshots); err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info().
		Str("resync", s.cfg.RemoteSyncSchedule).
		Str("cleanup", s.cfg.CleanupSchedule).
		Msg("maintenance jobs scheduled")
	return nil
}

// Stop stops the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// resyncSnapshots retries remote uploads for snapshots that are still
// unsynced, oldest first.
func (s *Scheduler) resyncSnapshots() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pending, err := s.snapshots.ListUnsynced(ctx, resyncBatchSize)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list unsynced snapshots")
		return
	}
	if len(pending) == 0 {
		return
	}

	synced := 0
	for _, snap := range pending {
		if err := s.remote.PutSnapshot(ctx, snap); err != nil {
			s.log.Warn().Err(err).Str("snapshot", snap.ID).Msg("re-sync upload failed")
			break
		}
		if err := s.snapshots.MarkSynced(ctx, snap.ID); err != nil {
			s.log.Warn().Err(err).Str("snapshot", snap.ID).Msg("failed to mark snapshot synced")
			continue
		}
		synced++
	}

	s.log.Info().Int("synced", synced).Int("pending", len(pending)-synced).Msg("snapshot re-sync finished")
}

// pruneSnapshots deletes synced snapshots older than the retention window.
func (s *Scheduler) pruneSnapshots() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-s.cfg.SnapshotRetention)
	deleted, err := s.snapshots.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.log.Error().Err(err).Msg("snapshot retention cleanup failed")
		return
	}
	if deleted > 0 {
		s.log.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("old snapshots pruned")
	}
}
