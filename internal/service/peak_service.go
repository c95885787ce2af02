package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/watchtowerhq/watchtower/internal/apperrors"
	"github.com/watchtowerhq/watchtower/internal/model"
	"github.com/watchtowerhq/watchtower/internal/repository"
)

// PeakService owns the all-time-high history used for drawdown checks. The
// history is append-only; corrections and withdrawal adjustments are new
// rows, leaving the old ones as an audit trail.
type PeakService struct {
	peaks *repository.PeakRepository
	flows *repository.FlowRepository
	audit *repository.AuditRepository
	log   zerolog.Logger
}

// NewPeakService creates a new PeakService.
func NewPeakService(
	peaks *repository.PeakRepository,
	flows *repository.FlowRepository,
	audit *repository.AuditRepository,
	log zerolog.Logger,
) *PeakService {
	return &PeakService{
		peaks: peaks,
		flows: flows,
		audit: audit,
		log:   log.With().Str("service", "peak").Logger(),
	}
}

// Observe records a new peak when the observed total value exceeds the
// current one. Called by the sampler on every snapshot.
func (s *PeakService) Observe(ctx context.Context, totalValue float64, at time.Time) error {
	if totalValue <= 0 {
		return nil
	}

	current, err := s.peaks.Latest(ctx)
	if err != nil && !errors.Is(err, apperrors.ErrNoPeak) {
		return err
	}
	if err == nil && totalValue <= current.PeakValue {
		return nil
	}

	record := &model.PeakRecord{
		PeakValue:  totalValue,
		AchievedAt: at.UTC(),
		Source:     model.PeakObserved,
	}
	if err := s.peaks.Insert(ctx, record); err != nil {
		return err
	}

	s.log.Info().Float64("peak", totalValue).Msg("new portfolio peak")
	return nil
}

// Current returns the active peak record, or ErrNoPeak.
func (s *PeakService) Current(ctx context.Context) (model.PeakRecord, error) {
	return s.peaks.Latest(ctx)
}

// History returns the newest peak records up to limit.
func (s *PeakService) History(ctx context.Context, limit int) ([]model.PeakRecord, error) {
	return s.peaks.History(ctx, limit)
}

// CurrentDrawdownPct returns the flow-adjusted drawdown from the peak as a
// non-positive percentage. Withdrawals since the peak are added back and
// deposits backed out so that moving money never looks like losing it:
//
//	drawdown = (current + withdrawals - deposits - peak) / peak * 100
//
// The anchor is the latest observed or manually corrected peak, never a
// withdrawal-adjusted row: those already bake the withdrawal into the peak
// value, and anchoring on one would count the same withdrawal twice and make
// a withdrawal worsen the reported percentage. A portfolio above its adjusted
// peak reports 0, never a positive number.
func (s *PeakService) CurrentDrawdownPct(ctx context.Context, currentValue float64) (float64, error) {
	peak, err := s.peaks.LatestAnchor(ctx)
	if err != nil {
		return 0, err
	}
	if peak.PeakValue <= 0 {
		return 0, nil
	}

	deposits, withdrawals, err := s.flows.TotalsSince(ctx, peak.AchievedAt)
	if err != nil {
		return 0, err
	}

	drawdown := (currentValue + withdrawals - deposits - peak.PeakValue) / peak.PeakValue * 100
	if drawdown > 0 {
		drawdown = 0
	}
	return drawdown, nil
}

// LowerForWithdrawal proactively lowers the peak by the withdrawn amount,
// clamped at zero. Without this, a withdrawal would register as a drawdown
// the moment the next snapshot lands.
func (s *PeakService) LowerForWithdrawal(ctx context.Context, amountUSD float64) error {
	if amountUSD <= 0 {
		return apperrors.ErrInvalidFlowAmount
	}

	peak, err := s.peaks.Latest(ctx)
	if err != nil {
		if errors.Is(err, apperrors.ErrNoPeak) {
			return nil
		}
		return err
	}

	newPeak := peak.PeakValue - amountUSD
	if newPeak < 0 {
		newPeak = 0
	}

	record := &model.PeakRecord{
		PeakValue:  newPeak,
		AchievedAt: time.Now().UTC(),
		Source:     model.PeakWithdrawalAdjusted,
	}
	if err := s.peaks.Insert(ctx, record); err != nil {
		return err
	}

	s.log.Info().
		Float64("old_peak", peak.PeakValue).
		Float64("new_peak", newPeak).
		Float64("withdrawal", amountUSD).
		Msg("peak lowered for withdrawal")

	return nil
}

// CorrectPeak writes a manual peak correction and an audit entry. Used by
// operators when the recorded peak is known to be wrong.
func (s *PeakService) CorrectPeak(ctx context.Context, value float64, reason string) (model.PeakRecord, error) {
	if value <= 0 {
		return model.PeakRecord{}, apperrors.ErrInvalidPeakValue
	}

	record := &model.PeakRecord{
		PeakValue:  value,
		AchievedAt: time.Now().UTC(),
		Source:     model.PeakManualCorrection,
	}
	if err := s.peaks.Insert(ctx, record); err != nil {
		return model.PeakRecord{}, err
	}

	entry := &model.AuditEntry{
		Timestamp: time.Now().UTC(),
		Action:    "peak_correction",
		Detail:    fmt.Sprintf("peak set to %.2f: %s", value, reason),
	}
	if err := s.audit.Insert(ctx, entry); err != nil {
		s.log.Warn().Err(err).Msg("failed to write peak correction audit entry")
	}

	s.log.Info().Float64("peak", value).Str("reason", reason).Msg("peak manually corrected")
	return *record, nil
}
