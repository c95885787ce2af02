package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/watchtowerhq/watchtower/internal/model"
	"github.com/watchtowerhq/watchtower/internal/repository"
)

// PnLService computes capital-flow-aware profit and loss. Raw PnL compares
// two valuations directly; adjusted PnL backs deposits and withdrawals out
// so that moving money is never mistaken for making or losing it.
type PnLService struct {
	snapshots *repository.SnapshotRepository
	flows     *repository.FlowRepository
	baselines *repository.BaselineRepository
	audit     *repository.AuditRepository
	log       zerolog.Logger
}

// NewPnLService creates a new PnLService.
func NewPnLService(
	snapshots *repository.SnapshotRepository,
	flows *repository.FlowRepository,
	baselines *repository.BaselineRepository,
	audit *repository.AuditRepository,
	log zerolog.Logger,
) *PnLService {
	return &PnLService{
		snapshots: snapshots,
		flows:     flows,
		baselines: baselines,
		audit:     audit,
		log:       log.With().Str("service", "pnl").Logger(),
	}
}

// Compute derives a PnLResult from a start value, a current value, and the
// capital flow totals for the period. An invalid baseline yields a flagged
// result, not an error; a non-positive current value yields a valid zero
// result so downstream consumers keep functioning.
func Compute(startValue, currentValue, deposits, withdrawals float64, periodStart, periodEnd time.Time) model.PnLResult {
	result := model.PnLResult{
		StartValue:       startValue,
		CurrentValue:     currentValue,
		PeriodStart:      periodStart,
		PeriodEnd:        periodEnd,
		TotalDeposits:    deposits,
		TotalWithdrawals: withdrawals,
	}

	if startValue <= 0 {
		result.Reason = "invalid baseline value"
		return result
	}
	result.Valid = true

	if currentValue <= 0 {
		result.Reason = "no current value"
		return result
	}

	result.AbsolutePnL = currentValue - startValue
	result.PercentagePnL = result.AbsolutePnL / startValue * 100

	result.AdjustedPnL = currentValue - startValue - deposits + withdrawals
	result.AdjustedPercentagePnL = result.AdjustedPnL / startValue * 100
	result.CapitalFlowImpact = deposits - withdrawals

	return result
}

// Period computes PnL from the oldest snapshot at or after since to the
// latest snapshot.
func (s *PnLService) Period(ctx context.Context, since time.Time) (model.PnLResult, error) {
	start, err := s.snapshots.FirstAfter(ctx, since)
	if err != nil {
		return model.PnLResult{}, err
	}

	latest, err := s.snapshots.Latest(ctx)
	if err != nil {
		return model.PnLResult{}, err
	}

	return s.between(ctx, start, latest)
}

// SinceBaseline computes PnL from the active baseline marker. When no marker
// has been set the oldest non-emergency snapshot is the baseline.
func (s *PnLService) SinceBaseline(ctx context.Context) (model.PnLResult, error) {
	latest, err := s.snapshots.Latest(ctx)
	if err != nil {
		return model.PnLResult{}, err
	}

	marker, err := s.baselines.Latest(ctx)
	if err != nil {
		return model.PnLResult{}, err
	}

	if marker != nil {
		deposits, withdrawals, err := s.flows.TotalsSince(ctx, marker.MarkedAt)
		if err != nil {
			return model.PnLResult{}, err
		}
		return Compute(marker.Value, latest.TotalValue, deposits, withdrawals,
			marker.MarkedAt, latest.Timestamp), nil
	}

	first, err := s.snapshots.First(ctx)
	if err != nil {
		return model.PnLResult{}, err
	}
	if first.Emergency {
		// An emergency placeholder has no meaningful value; report an
		// invalid baseline until a real snapshot becomes the oldest usable one.
		return Compute(0, latest.TotalValue, 0, 0, first.Timestamp, latest.Timestamp), nil
	}

	return s.between(ctx, first, latest)
}

// ResetBaseline pins PnL-since-baseline to the latest snapshot's value and
// writes an audit entry.
func (s *PnLService) ResetBaseline(ctx context.Context, reason string) (model.BaselineMarker, error) {
	latest, err := s.snapshots.Latest(ctx)
	if err != nil {
		return model.BaselineMarker{}, err
	}

	marker := &model.BaselineMarker{
		Value:    latest.TotalValue,
		MarkedAt: latest.Timestamp,
		Reason:   reason,
	}
	if err := s.baselines.Insert(ctx, marker); err != nil {
		return model.BaselineMarker{}, err
	}

	entry := &model.AuditEntry{
		Timestamp: time.Now().UTC(),
		Action:    "baseline_reset",
		Detail:    fmt.Sprintf("baseline set to %.2f: %s", marker.Value, reason),
	}
	if err := s.audit.Insert(ctx, entry); err != nil {
		s.log.Warn().Err(err).Msg("failed to write baseline reset audit entry")
	}

	s.log.Info().Float64("value", marker.Value).Str("reason", reason).Msg("pnl baseline reset")
	return *marker, nil
}

func (s *PnLService) between(ctx context.Context, start, end model.Snapshot) (model.PnLResult, error) {
	deposits, withdrawals, err := s.flows.TotalsSince(ctx, start.Timestamp)
	if err != nil {
		return model.PnLResult{}, err
	}

	startValue := start.TotalValue
	if start.Emergency {
		startValue = 0
	}

	return Compute(startValue, end.TotalValue, deposits, withdrawals,
		start.Timestamp, end.Timestamp), nil
}
