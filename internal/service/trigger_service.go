package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/watchtowerhq/watchtower/internal/apperrors"
	"github.com/watchtowerhq/watchtower/internal/config"
	"github.com/watchtowerhq/watchtower/internal/dispatch"
	"github.com/watchtowerhq/watchtower/internal/model"
	"github.com/watchtowerhq/watchtower/internal/repository"
)

// TriggerService evaluates threshold rules against each new snapshot and
// dispatches at most one alert per cycle. Categories are strictly ordered:
// risk beats analysis, analysis beats maintenance. Cooldowns start when a
// rule fires, whether or not the dispatch was accepted.
type TriggerService struct {
	cfg       config.TriggerConfig
	initGrace time.Duration
	startedAt time.Time

	trades      *repository.TradeRepository
	peaks       *PeakService
	pnl         *PnLService
	coordinator *dispatch.Coordinator
	log         zerolog.Logger

	mu              sync.Mutex
	lastRisk        time.Time
	lastMaintenance time.Time
	lastAnalysis    map[string]time.Time
}

// NewTriggerService creates a new TriggerService.
func NewTriggerService(
	cfg config.TriggerConfig,
	initGrace time.Duration,
	trades *repository.TradeRepository,
	peaks *PeakService,
	pnl *PnLService,
	coordinator *dispatch.Coordinator,
	log zerolog.Logger,
) *TriggerService {
	return &TriggerService{
		cfg:          cfg,
		initGrace:    initGrace,
		startedAt:    time.Now(),
		trades:       trades,
		peaks:        peaks,
		pnl:          pnl,
		coordinator:  coordinator,
		log:          log.With().Str("service", "triggers").Logger(),
		lastAnalysis: map[string]time.Time{},
	}
}

// Evaluate runs all rules against the snapshot and dispatches the first
// alert found in priority order. Emergency snapshots and the startup grace
// period are skipped entirely.
func (s *TriggerService) Evaluate(ctx context.Context, snapshot model.Snapshot, previous *model.Snapshot) {
	if snapshot.Emergency {
		return
	}
	if time.Since(s.startedAt) < s.initGrace {
		s.log.Debug().Msg("trigger evaluation suppressed during startup grace")
		return
	}

	alert := s.evaluateRisk(ctx, snapshot)
	if alert == nil {
		alert = s.evaluateAnalysis(ctx, snapshot)
	}
	if alert == nil {
		alert = s.evaluateMaintenance(snapshot, previous)
	}
	if alert == nil {
		return
	}

	alert.Snapshot = snapshot
	alert.Previous = previous
	alert.FiredAt = time.Now().UTC()

	s.log.Warn().
		Str("rule", alert.Rule).
		Str("category", string(alert.Category)).
		Str("message", alert.Message).
		Msg("trigger fired")

	if err := s.coordinator.Dispatch(*alert); err != nil {
		if errors.Is(err, apperrors.ErrDispatcherSaturate) {
			s.log.Info().Str("rule", alert.Rule).Msg("execution in flight, alert dropped")
			return
		}
		s.log.Error().Err(err).Str("rule", alert.Rule).Msg("dispatch failed")
	}
}

// evaluateRisk checks the capital protection rules. All four share one
// global cooldown so a cascading drop produces one alert, not a storm.
func (s *TriggerService) evaluateRisk(ctx context.Context, snapshot model.Snapshot) *dispatch.Alert {
	s.mu.Lock()
	onCooldown := time.Since(s.lastRisk) < s.cfg.RiskCooldown
	s.mu.Unlock()
	if onCooldown {
		return nil
	}

	var alert *dispatch.Alert

	switch {
	case snapshot.TotalValue < s.cfg.MinimumBalanceUSD:
		alert = &dispatch.Alert{
			Rule:     "balance_floor",
			Category: model.TriggerRisk,
			Message: fmt.Sprintf("total value %.2f below minimum %.2f",
				snapshot.TotalValue, s.cfg.MinimumBalanceUSD),
		}
	default:
		alert = s.checkDrawdown(ctx, snapshot)
		if alert == nil {
			alert = s.checkMaxLoss(ctx)
		}
		if alert == nil {
			alert = s.checkLossStreak(ctx)
		}
	}

	if alert != nil {
		s.mu.Lock()
		s.lastRisk = time.Now()
		s.mu.Unlock()
	}
	return alert
}

func (s *TriggerService) checkDrawdown(ctx context.Context, snapshot model.Snapshot) *dispatch.Alert {
	drawdown, err := s.peaks.CurrentDrawdownPct(ctx, snapshot.TotalValue)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNoPeak) {
			s.log.Warn().Err(err).Msg("drawdown check failed")
		}
		return nil
	}
	if drawdown > s.cfg.DrawdownLimitPct {
		return nil
	}
	return &dispatch.Alert{
		Rule:     "drawdown_limit",
		Category: model.TriggerRisk,
		Message: fmt.Sprintf("drawdown %.2f%% breached limit %.2f%%",
			drawdown, s.cfg.DrawdownLimitPct),
	}
}

func (s *TriggerService) checkMaxLoss(ctx context.Context) *dispatch.Alert {
	result, err := s.pnl.SinceBaseline(ctx)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNoSnapshot) {
			s.log.Warn().Err(err).Msg("max loss check failed")
		}
		return nil
	}
	if !result.Valid || result.AdjustedPercentagePnL > -s.cfg.MaxLossPct {
		return nil
	}
	return &dispatch.Alert{
		Rule:     "max_loss",
		Category: model.TriggerRisk,
		Message: fmt.Sprintf("adjusted pnl %.2f%% breached max loss %.2f%%",
			result.AdjustedPercentagePnL, s.cfg.MaxLossPct),
	}
}

func (s *TriggerService) checkLossStreak(ctx context.Context) *dispatch.Alert {
	streak, err := s.trades.Streak(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("loss streak check failed")
		return nil
	}
	if streak.ConsecutiveLosses < s.cfg.ConsecutiveLossLimit {
		return nil
	}
	return &dispatch.Alert{
		Rule:     "loss_streak",
		Category: model.TriggerRisk,
		Message: fmt.Sprintf("%d consecutive losing trades (limit %d)",
			streak.ConsecutiveLosses, s.cfg.ConsecutiveLossLimit),
	}
}

// evaluateAnalysis checks per-position review rules. Cooldowns are per
// asset, so one hot position does not mute review of the others.
func (s *TriggerService) evaluateAnalysis(ctx context.Context, snapshot model.Snapshot) *dispatch.Alert {
	if snapshot.TotalValue <= 0 {
		return nil
	}

	for _, assetID := range sortedAssetIDs(snapshot.Positions) {
		s.mu.Lock()
		onCooldown := time.Since(s.lastAnalysis[assetID]) < s.cfg.AnalysisCooldown
		s.mu.Unlock()
		if onCooldown {
			continue
		}

		pos := snapshot.Positions[assetID]
		alert := s.checkPosition(ctx, assetID, pos, snapshot.TotalValue)
		if alert == nil {
			continue
		}

		s.mu.Lock()
		s.lastAnalysis[assetID] = time.Now()
		s.mu.Unlock()
		return alert
	}

	return nil
}

func (s *TriggerService) checkPosition(ctx context.Context, assetID string, pos model.Position, totalValue float64) *dispatch.Alert {
	if fraction := pos.Value / totalValue; fraction >= s.cfg.PositionSizeTrigger {
		return &dispatch.Alert{
			Rule:     "position_size",
			Category: model.TriggerAnalysis,
			AssetID:  assetID,
			Message: fmt.Sprintf("position %s is %.1f%% of portfolio (trigger %.1f%%)",
				assetID, fraction*100, s.cfg.PositionSizeTrigger*100),
		}
	}

	entry, err := s.trades.GetEntryPrice(ctx, assetID)
	if err != nil {
		s.log.Warn().Err(err).Str("asset", assetID).Msg("entry price lookup failed")
		return nil
	}
	if entry == nil || entry.Price <= 0 {
		return nil
	}

	if multiple := pos.Price / entry.Price; multiple >= s.cfg.GainMultipleTrigger {
		return &dispatch.Alert{
			Rule:     "gain_multiple",
			Category: model.TriggerAnalysis,
			AssetID:  assetID,
			Message: fmt.Sprintf("position %s is up %.1fx from entry (trigger %.1fx)",
				assetID, multiple, s.cfg.GainMultipleTrigger),
		}
	}

	return nil
}

// evaluateMaintenance checks portfolio hygiene rules under one shared
// cooldown. Dust and allocation look at the current snapshot only; the
// realized gain sweep compares against the previous one.
func (s *TriggerService) evaluateMaintenance(snapshot model.Snapshot, previous *model.Snapshot) *dispatch.Alert {
	s.mu.Lock()
	onCooldown := time.Since(s.lastMaintenance) < s.cfg.MaintenanceCooldown
	s.mu.Unlock()
	if onCooldown {
		return nil
	}

	alert := s.checkDust(snapshot)
	if alert == nil {
		alert = s.checkAllocation(snapshot)
	}
	if alert == nil && previous != nil {
		alert = s.checkRealizedGain(snapshot, *previous)
	}

	if alert != nil {
		s.mu.Lock()
		s.lastMaintenance = time.Now()
		s.mu.Unlock()
	}
	return alert
}

// checkDust flags positions worth less than the dust threshold. The primary
// and cash holdings are not positions and are never dust.
func (s *TriggerService) checkDust(snapshot model.Snapshot) *dispatch.Alert {
	for _, assetID := range sortedAssetIDs(snapshot.Positions) {
		pos := snapshot.Positions[assetID]
		if pos.Value > 0 && pos.Value < s.cfg.DustThresholdUSD {
			return &dispatch.Alert{
				Rule:     "dust_position",
				Category: model.TriggerMaintenance,
				AssetID:  assetID,
				Message: fmt.Sprintf("position %s worth %.4f is below dust threshold %.2f",
					assetID, pos.Value, s.cfg.DustThresholdUSD),
			}
		}
	}
	return nil
}

func (s *TriggerService) checkAllocation(snapshot model.Snapshot) *dispatch.Alert {
	if snapshot.TotalValue <= 0 {
		return nil
	}

	cashFrac := snapshot.CashBalance / snapshot.TotalValue
	if cashFrac < s.cfg.CashEmergencyPct {
		return &dispatch.Alert{
			Rule:     "cash_emergency",
			Category: model.TriggerMaintenance,
			Message: fmt.Sprintf("cash at %.1f%% of portfolio, emergency floor is %.1f%%",
				cashFrac*100, s.cfg.CashEmergencyPct*100),
		}
	}
	if cashFrac < s.cfg.CashMinPct {
		return &dispatch.Alert{
			Rule:     "cash_low",
			Category: model.TriggerMaintenance,
			Message: fmt.Sprintf("cash at %.1f%% of portfolio, minimum is %.1f%%",
				cashFrac*100, s.cfg.CashMinPct*100),
		}
	}

	primaryFrac := (snapshot.PrimaryValue + snapshot.StakedValue) / snapshot.TotalValue
	if primaryFrac < s.cfg.PrimaryMinPct || primaryFrac > s.cfg.PrimaryMaxPct {
		return &dispatch.Alert{
			Rule:     "primary_allocation",
			Category: model.TriggerMaintenance,
			Message: fmt.Sprintf("primary holding at %.1f%% of portfolio, band is %.1f%%-%.1f%%",
				primaryFrac*100, s.cfg.PrimaryMinPct*100, s.cfg.PrimaryMaxPct*100),
		}
	}

	return nil
}

// checkRealizedGain flags a cash increase that is not explained by selling
// down the primary holding. When the primary value dropped by at least the
// tolerance share of the cash increase, the move was an internal rebalance
// and no alert fires.
func (s *TriggerService) checkRealizedGain(snapshot, previous model.Snapshot) *dispatch.Alert {
	cashIncrease := snapshot.CashBalance - previous.CashBalance
	if cashIncrease <= 0 {
		return nil
	}

	primaryDecrease := previous.PrimaryValue - snapshot.PrimaryValue
	if primaryDecrease >= s.cfg.RebalanceTolerance*cashIncrease {
		return nil
	}

	return &dispatch.Alert{
		Rule:     "realized_gain",
		Category: model.TriggerMaintenance,
		Message: fmt.Sprintf("cash increased %.2f without a matching primary sale, likely realized gain",
			cashIncrease),
	}
}

func sortedAssetIDs(positions map[string]model.Position) []string {
	ids := make([]string, 0, len(positions))
	for id := range positions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
