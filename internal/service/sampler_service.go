package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/watchtowerhq/watchtower/internal/apperrors"
	"github.com/watchtowerhq/watchtower/internal/balance"
	"github.com/watchtowerhq/watchtower/internal/config"
	"github.com/watchtowerhq/watchtower/internal/model"
	"github.com/watchtowerhq/watchtower/internal/oracle"
	"github.com/watchtowerhq/watchtower/internal/remote"
	"github.com/watchtowerhq/watchtower/internal/repository"
)

// SamplerService is the only writer of snapshots. It periodically values the
// tracked account, persists the result locally, mirrors it to the remote
// store best-effort, and hands each snapshot to the trigger engine.
type SamplerService struct {
	source    balance.Source
	oracle    oracle.PriceOracle
	snapshots *repository.SnapshotRepository
	trades    *repository.TradeRepository
	audit     *repository.AuditRepository
	peaks     *PeakService
	triggers  *TriggerService
	remote    remote.Store

	account config.AccountConfig
	cfg     config.SamplerConfig
	cache   *snapshotCache
	log     zerolog.Logger

	// sampling guards against overlapping cycles; a forced sample while the
	// loop is mid-cycle returns ErrSamplerBusy instead of double-writing.
	sampling chan struct{}
}

// NewSamplerService creates a new SamplerService. The remote store and
// trigger service may be nil; sampling then runs local-only and silent.
func NewSamplerService(
	source balance.Source,
	priceOracle oracle.PriceOracle,
	snapshots *repository.SnapshotRepository,
	trades *repository.TradeRepository,
	audit *repository.AuditRepository,
	peaks *PeakService,
	triggers *TriggerService,
	remoteStore remote.Store,
	account config.AccountConfig,
	cfg config.SamplerConfig,
	log zerolog.Logger,
) *SamplerService {
	s := &SamplerService{
		source:    source,
		oracle:    priceOracle,
		snapshots: snapshots,
		trades:    trades,
		audit:     audit,
		peaks:     peaks,
		triggers:  triggers,
		remote:    remoteStore,
		account:   account,
		cfg:       cfg,
		cache:     newSnapshotCache(cfg.CacheSize),
		log:       log.With().Str("service", "sampler").Logger(),
		sampling:  make(chan struct{}, 1),
	}
	s.sampling <- struct{}{}
	return s
}

// Run drives the sampling loop until the context is cancelled. The interval
// stretches to the throttled value while the price oracle reports
// back-pressure and snaps back when the signal clears. On shutdown a final
// sample is taken so the stored history ends at the moment the process did.
func (s *SamplerService) Run(ctx context.Context) error {
	s.ensureInitial(ctx)

	timer := time.NewTimer(s.interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.finalSample()
			return ctx.Err()
		case <-timer.C:
			if _, err := s.Sample(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.log.Warn().Err(err).Msg("sample cycle skipped")
			}
			timer.Reset(s.interval())
		}
	}
}

// Sample performs one full cycle: fetch balances, price everything, persist,
// mirror, evaluate triggers. Returns ErrSamplerBusy when a cycle is already
// in flight.
func (s *SamplerService) Sample(ctx context.Context) (model.Snapshot, error) {
	select {
	case <-s.sampling:
	default:
		return model.Snapshot{}, apperrors.ErrSamplerBusy
	}
	defer func() { s.sampling <- struct{}{} }()

	snapshot, err := s.buildSnapshot(ctx)
	if err != nil {
		return model.Snapshot{}, err
	}

	if _, err := s.snapshots.Append(ctx, &snapshot); err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: %s", apperrors.ErrStoreUnavailable, err)
	}

	s.cache.add(snapshot)
	previous, hadPrevious := s.cache.previous()
	s.mirror(snapshot)

	if err := s.peaks.Observe(ctx, snapshot.TotalValue, snapshot.Timestamp); err != nil {
		s.log.Warn().Err(err).Msg("failed to record peak observation")
	}

	if s.triggers != nil {
		prev := &previous
		if !hadPrevious {
			prev = nil
		}
		s.triggers.Evaluate(ctx, snapshot, prev)
	}

	s.log.Debug().
		Float64("total_value", snapshot.TotalValue).
		Int("positions", snapshot.PositionCount).
		Msg("snapshot recorded")

	return snapshot, nil
}

// ForceSample runs one cycle outside the regular cadence and writes an audit
// entry. Backs the manual sample endpoint.
func (s *SamplerService) ForceSample(ctx context.Context) (model.Snapshot, error) {
	snapshot, err := s.Sample(ctx)
	if err != nil {
		return model.Snapshot{}, err
	}

	entry := &model.AuditEntry{
		Timestamp: time.Now().UTC(),
		Action:    "forced_sample",
		Detail:    fmt.Sprintf("snapshot taken at total value %.2f", snapshot.TotalValue),
	}
	if err := s.audit.Insert(ctx, entry); err != nil {
		s.log.Warn().Err(err).Msg("failed to write forced sample audit entry")
	}

	return snapshot, nil
}

// Latest returns the newest snapshot, preferring the in-memory cache.
func (s *SamplerService) Latest(ctx context.Context) (model.Snapshot, error) {
	if snap, ok := s.cache.latest(); ok {
		return snap, nil
	}
	return s.snapshots.Latest(ctx)
}

// buildSnapshot fetches balances and prices and assembles a consistent
// valuation. The primary asset price is mandatory; positions with
// implausible prices fall back to the previous snapshot's price or are
// dropped so one bad quote cannot distort the total.
func (s *SamplerService) buildSnapshot(ctx context.Context) (model.Snapshot, error) {
	balances, err := s.source.GetBalances(ctx)
	if err != nil {
		return model.Snapshot{}, err
	}

	assetIDs := make([]string, 0, len(balances.Positions)+1)
	assetIDs = append(assetIDs, s.account.PrimaryAssetID)
	for id := range balances.Positions {
		assetIDs = append(assetIDs, id)
	}

	prices, err := s.oracle.GetPrices(ctx, assetIDs)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: %s", apperrors.ErrPriceUnavailable, err)
	}

	primaryPrice, ok := prices[s.account.PrimaryAssetID]
	if !ok || primaryPrice <= 0 {
		return model.Snapshot{}, apperrors.ErrPriceUnavailable
	}

	now := time.Now().UTC()
	previous, _ := s.cache.latest()

	snapshot := model.Snapshot{
		Timestamp:      now,
		CashBalance:    balances.Cash,
		PrimaryBalance: balances.PrimaryAmount,
		PrimaryPrice:   primaryPrice,
		PrimaryValue:   balances.PrimaryAmount * primaryPrice,
		StakedBalance:  balances.StakedAmount,
		StakedValue:    balances.StakedAmount * primaryPrice,
		Positions:      map[string]model.Position{},
	}

	for assetID, amount := range balances.Positions {
		if amount <= 0 {
			continue
		}

		price, ok := prices[assetID]
		if !ok || price <= 0 || price > s.cfg.MaxPositionPrice {
			fallback, found := previous.Positions[assetID]
			if !found {
				s.log.Warn().
					Str("asset", assetID).
					Float64("price", price).
					Msg("position dropped, no plausible price")
				continue
			}
			price = fallback.Price
		}

		value := amount * price
		if value > s.cfg.MaxPositionValue {
			s.log.Warn().
				Str("asset", assetID).
				Float64("value", value).
				Msg("position dropped, implausible value")
			continue
		}

		snapshot.Positions[assetID] = model.Position{
			Amount: amount,
			Price:  price,
			Value:  value,
		}

		s.recordEntryPrice(ctx, assetID, price, now)
	}

	snapshot.PositionCount = len(snapshot.Positions)
	snapshot.TotalValue = snapshot.CashBalance +
		snapshot.PrimaryValue +
		snapshot.StakedValue +
		snapshot.PositionsValue()

	return snapshot, nil
}

// recordEntryPrice stores the first observed price for a position so the
// analysis rules can estimate unrealized multiples. Existing entries win.
func (s *SamplerService) recordEntryPrice(ctx context.Context, assetID string, price float64, at time.Time) {
	err := s.trades.RecordEntryPrice(ctx, &model.EntryPrice{
		AssetID:    assetID,
		Price:      price,
		RecordedAt: at,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("asset", assetID).Msg("failed to record entry price")
	}
}

// mirror uploads the snapshot to the remote store in a detached goroutine.
// Failures leave the snapshot unsynced; the re-sync job retries later.
func (s *SamplerService) mirror(snapshot model.Snapshot) {
	if s.remote == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.MirrorTimeout)
		defer cancel()

		if err := s.remote.PutSnapshot(ctx, snapshot); err != nil {
			s.log.Warn().Err(err).Msg("remote mirror failed, will re-sync")
			return
		}
		if err := s.snapshots.MarkSynced(ctx, snapshot.ID); err != nil {
			s.log.Warn().Err(err).Msg("failed to mark snapshot synced")
		}
	}()
}

// ensureInitial guarantees at least one snapshot exists before the loop
// starts. When neither the store nor a live sample can provide one, an
// emergency placeholder is written so downstream queries have a floor.
func (s *SamplerService) ensureInitial(ctx context.Context) {
	if latest, err := s.snapshots.Latest(ctx); err == nil {
		s.cache.add(latest)
		return
	} else if !errors.Is(err, apperrors.ErrNoSnapshot) {
		s.log.Warn().Err(err).Msg("failed to load latest snapshot")
	}

	if _, err := s.Sample(ctx); err == nil {
		return
	}

	emergency := model.Snapshot{
		Timestamp: time.Now().UTC(),
		Positions: map[string]model.Position{},
		Emergency: true,
	}
	if _, err := s.snapshots.Append(ctx, &emergency); err != nil {
		s.log.Error().Err(err).Msg("failed to write emergency snapshot")
		return
	}
	s.cache.add(emergency)
	s.log.Warn().Msg("emergency snapshot written, no account state available")
}

// finalSample flushes one last snapshot during shutdown, bounded by the
// shutdown grace period.
func (s *SamplerService) finalSample() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGrace)
	defer cancel()

	if _, err := s.Sample(ctx); err != nil && !errors.Is(err, apperrors.ErrSamplerBusy) {
		s.log.Warn().Err(err).Msg("final shutdown sample failed")
		return
	}
	s.log.Info().Msg("final shutdown sample recorded")
}

func (s *SamplerService) interval() time.Duration {
	if s.oracle.Throttled() {
		return s.cfg.ThrottledInterval
	}
	return s.cfg.BaseInterval
}
