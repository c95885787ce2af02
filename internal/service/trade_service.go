package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/watchtowerhq/watchtower/internal/apperrors"
	"github.com/watchtowerhq/watchtower/internal/model"
	"github.com/watchtowerhq/watchtower/internal/repository"
)

// TradeService records closed trades reported by the execution side and
// exposes the derived win/loss statistics.
type TradeService struct {
	trades *repository.TradeRepository
	log    zerolog.Logger
}

// NewTradeService creates a new TradeService.
func NewTradeService(trades *repository.TradeRepository, log zerolog.Logger) *TradeService {
	return &TradeService{
		trades: trades,
		log:    log.With().Str("service", "trades").Logger(),
	}
}

// RecordClosedTrade stores a completed round trip, derives its PnL when the
// reporter did not, and clears the asset's entry price so the next position
// starts a fresh basis.
func (s *TradeService) RecordClosedTrade(ctx context.Context, trade *model.ClosedTrade) error {
	if trade.AssetID == "" {
		return fmt.Errorf("%w: asset id required", apperrors.ErrFlowRejected)
	}
	if trade.Timestamp.IsZero() {
		trade.Timestamp = time.Now().UTC()
	}

	if trade.PnLUSD == 0 && trade.EntryPrice > 0 {
		trade.PnLUSD = (trade.ExitPrice - trade.EntryPrice) * trade.Amount
		trade.PnLPercent = (trade.ExitPrice - trade.EntryPrice) / trade.EntryPrice * 100
	}

	if err := s.trades.InsertClosedTrade(ctx, trade); err != nil {
		return err
	}

	if err := s.trades.DeleteEntryPrice(ctx, trade.AssetID); err != nil {
		s.log.Warn().Err(err).Str("asset", trade.AssetID).Msg("failed to clear entry price")
	}

	s.log.Info().
		Str("asset", trade.AssetID).
		Float64("pnl_usd", trade.PnLUSD).
		Msg("closed trade recorded")

	return nil
}

// Streak returns the current win/loss streak and totals.
func (s *TradeService) Streak(ctx context.Context) (model.TradeStreak, error) {
	return s.trades.Streak(ctx)
}

// RecentTrades returns the newest closed trades up to limit.
func (s *TradeService) RecentTrades(ctx context.Context, limit int) ([]model.ClosedTrade, error) {
	return s.trades.ListClosedTrades(ctx, limit)
}
