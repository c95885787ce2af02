package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/watchtowerhq/watchtower/internal/apperrors"
	"github.com/watchtowerhq/watchtower/internal/config"
	"github.com/watchtowerhq/watchtower/internal/model"
	"github.com/watchtowerhq/watchtower/internal/oracle"
	"github.com/watchtowerhq/watchtower/internal/repository"
)

// LedgerService owns the capital flow ledger. It classifies raw transfer
// events against the tracked account, prices them, and records the resulting
// deposits and withdrawals exactly once per external reference.
type LedgerService struct {
	flows   *repository.FlowRepository
	peaks   *PeakService
	audit   *repository.AuditRepository
	oracle  oracle.PriceOracle
	account config.AccountConfig
	log     zerolog.Logger
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(
	flows *repository.FlowRepository,
	peaks *PeakService,
	audit *repository.AuditRepository,
	priceOracle oracle.PriceOracle,
	account config.AccountConfig,
	log zerolog.Logger,
) *LedgerService {
	return &LedgerService{
		flows:   flows,
		peaks:   peaks,
		audit:   audit,
		oracle:  priceOracle,
		account: account,
		log:     log.With().Str("service", "ledger").Logger(),
	}
}

// Record appends a capital flow to the ledger. Replays of the same external
// reference return FlowDuplicateIgnored without writing anything; a recorded
// withdrawal also lowers the peak so the next drawdown check stays honest.
func (s *LedgerService) Record(ctx context.Context, flow *model.CapitalFlow) (model.FlowRecordResult, error) {
	if flow.ExternalReference == "" {
		return model.FlowRejected, apperrors.ErrMissingReference
	}
	if flow.AmountUSD <= 0 {
		return model.FlowRejected, apperrors.ErrInvalidFlowAmount
	}
	if flow.FlowType != model.FlowDeposit && flow.FlowType != model.FlowWithdrawal {
		return model.FlowRejected, apperrors.ErrInvalidFlowType
	}
	if flow.Timestamp.IsZero() {
		flow.Timestamp = time.Now().UTC()
	}

	if err := s.flows.Insert(ctx, flow); err != nil {
		if errors.Is(err, apperrors.ErrDuplicateFlow) {
			s.log.Debug().
				Str("reference", flow.ExternalReference).
				Msg("duplicate capital flow ignored")
			return model.FlowDuplicateIgnored, nil
		}
		return model.FlowRejected, err
	}

	s.log.Info().
		Str("type", string(flow.FlowType)).
		Float64("amount_usd", flow.AmountUSD).
		Str("reference", flow.ExternalReference).
		Msg("capital flow recorded")

	if flow.FlowType == model.FlowWithdrawal {
		if err := s.peaks.LowerForWithdrawal(ctx, flow.AmountUSD); err != nil {
			// The flow itself is durable; a missed peak adjustment only makes
			// the next drawdown check more conservative.
			s.log.Warn().Err(err).Msg("failed to adjust peak after withdrawal")
		}
	}

	return model.FlowRecorded, nil
}

// RecordManual records an operator-submitted flow and writes an audit entry
// when the flow lands. Duplicates and rejections are not audited; nothing was
// changed. The automated transfer feed goes through Record directly.
func (s *LedgerService) RecordManual(ctx context.Context, flow *model.CapitalFlow) (model.FlowRecordResult, error) {
	result, err := s.Record(ctx, flow)
	if err != nil || result != model.FlowRecorded {
		return result, err
	}

	entry := &model.AuditEntry{
		Timestamp: time.Now().UTC(),
		Action:    "manual_flow",
		Detail: fmt.Sprintf("%s of %.2f (%s)",
			flow.FlowType, flow.AmountUSD, flow.ExternalReference),
	}
	if err := s.audit.Insert(ctx, entry); err != nil {
		s.log.Warn().Err(err).Msg("failed to write manual flow audit entry")
	}

	return result, nil
}

// ProcessTransfer classifies a raw transfer event against the tracked
// account, values it in USD, and records the resulting flow. Events that do
// not touch the tracked account, or that cannot be valued, are rejected.
func (s *LedgerService) ProcessTransfer(ctx context.Context, event model.TransferEvent) (model.FlowRecordResult, error) {
	var flowType model.FlowType
	switch s.account.TrackedAddress {
	case event.To:
		flowType = model.FlowDeposit
	case event.From:
		flowType = model.FlowWithdrawal
	default:
		return model.FlowRejected, apperrors.ErrUnknownCounterparty
	}

	if event.Amount <= 0 {
		return model.FlowRejected, apperrors.ErrInvalidFlowAmount
	}

	amountUSD, err := s.valueTransfer(ctx, event.AssetID, event.Amount)
	if err != nil {
		return model.FlowRejected, err
	}

	flow := &model.CapitalFlow{
		Timestamp:         time.Now().UTC(),
		FlowType:          flowType,
		AmountUSD:         amountUSD,
		AssetID:           event.AssetID,
		AssetAmount:       event.Amount,
		ExternalReference: event.ExternalReference,
	}

	return s.Record(ctx, flow)
}

// TotalsSince returns summed deposits and withdrawals at or after the given time.
func (s *LedgerService) TotalsSince(ctx context.Context, since time.Time) (deposits, withdrawals float64, err error) {
	return s.flows.TotalsSince(ctx, since)
}

// ListSince returns flows recorded at or after the given time, oldest first.
func (s *LedgerService) ListSince(ctx context.Context, since time.Time) ([]model.CapitalFlow, error) {
	return s.flows.ListSince(ctx, since)
}

// valueTransfer converts an asset amount to USD. Cash-equivalent assets are
// valued 1:1; everything else uses the current oracle price.
func (s *LedgerService) valueTransfer(ctx context.Context, assetID string, amount float64) (float64, error) {
	if assetID == s.account.CashAssetID {
		return amount, nil
	}

	prices, err := s.oracle.GetPrices(ctx, []string{assetID})
	if err != nil {
		return 0, fmt.Errorf("failed to price transfer asset: %w", err)
	}

	price, ok := prices[assetID]
	if !ok || price <= 0 {
		return 0, fmt.Errorf("%w: no price for asset %s", apperrors.ErrFlowRejected, assetID)
	}

	return amount * price, nil
}
