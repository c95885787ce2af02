package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/watchtowerhq/watchtower/internal/apperrors"
	"github.com/watchtowerhq/watchtower/internal/model"
	"github.com/watchtowerhq/watchtower/internal/repository"
	"github.com/watchtowerhq/watchtower/internal/service"
	"github.com/watchtowerhq/watchtower/internal/validation"
)

// PortfolioHandler handles portfolio state HTTP requests
type PortfolioHandler struct {
	sampler   *service.SamplerService
	pnl       *service.PnLService
	peaks     *service.PeakService
	trades    *service.TradeService
	snapshots *repository.SnapshotRepository
}

// NewPortfolioHandler creates a new PortfolioHandler
func NewPortfolioHandler(
	sampler *service.SamplerService,
	pnl *service.PnLService,
	peaks *service.PeakService,
	trades *service.TradeService,
	snapshots *repository.SnapshotRepository,
) *PortfolioHandler {
	return &PortfolioHandler{
		sampler:   sampler,
		pnl:       pnl,
		peaks:     peaks,
		trades:    trades,
		snapshots: snapshots,
	}
}

// SummaryResponse combines the latest snapshot with the derived figures the
// dashboard needs in one call.
type SummaryResponse struct {
	Snapshot    model.Snapshot    `json:"snapshot"`
	PnL         model.PnLResult   `json:"pnl"`
	PeakValue   float64           `json:"peakValue"`
	DrawdownPct float64           `json:"drawdownPct"`
	Streak      model.TradeStreak `json:"streak"`
}

// Summary returns the latest snapshot plus PnL, drawdown and streak figures.
//
// Endpoint: GET /api/portfolio/summary
func (h *PortfolioHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snapshot, err := h.sampler.Latest(ctx)
	if err != nil {
		if errors.Is(err, apperrors.ErrNoSnapshot) {
			respondError(w, http.StatusNotFound, "no snapshot available", "")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load snapshot", err.Error())
		return
	}

	summary := SummaryResponse{Snapshot: snapshot}

	if pnl, err := h.pnl.SinceBaseline(ctx); err == nil {
		summary.PnL = pnl
	}

	if peak, err := h.peaks.Current(ctx); err == nil {
		summary.PeakValue = peak.PeakValue
		if dd, err := h.peaks.CurrentDrawdownPct(ctx, snapshot.TotalValue); err == nil {
			summary.DrawdownPct = dd
		}
	}

	if streak, err := h.trades.Streak(ctx); err == nil {
		summary.Streak = streak
	}

	respondJSON(w, http.StatusOK, summary)
}

// History returns snapshots since the given time, oldest first.
//
// Endpoint: GET /api/portfolio/history?since=2026-08-01&until=2026-08-23
// The until parameter is optional and defaults to now.
func (h *PortfolioHandler) History(w http.ResponseWriter, r *http.Request) {
	sinceStr := r.URL.Query().Get("since")
	if sinceStr == "" {
		respondError(w, http.StatusBadRequest, "since query parameter is required", "")
		return
	}

	since, err := validation.ParseTime(sinceStr)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid since parameter", err.Error())
		return
	}

	until := time.Now().UTC()
	if untilStr := r.URL.Query().Get("until"); untilStr != "" {
		until, err = validation.ParseTime(untilStr)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid until parameter", err.Error())
			return
		}
	}

	snapshots, err := h.snapshots.Range(r.Context(), since, until)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidDateRange) {
			respondError(w, http.StatusBadRequest, "invalid date range", "since must not be after until")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load history", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, snapshots)
}

// Sample forces an immediate snapshot outside the regular cadence. The
// operation is audit-logged.
//
// Endpoint: POST /api/portfolio/sample
func (h *PortfolioHandler) Sample(w http.ResponseWriter, r *http.Request) {
	// Detach from the request context so a client disconnect cannot abandon
	// a half-finished sample.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	snapshot, err := h.sampler.ForceSample(ctx)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrSamplerBusy):
			respondError(w, http.StatusConflict, "a sample is already in progress", "")
		case errors.Is(err, apperrors.ErrPriceUnavailable),
			errors.Is(err, apperrors.ErrBalancesUnavailable):
			respondError(w, http.StatusServiceUnavailable, "upstream data unavailable", err.Error())
		default:
			respondError(w, http.StatusInternalServerError, "sample failed", err.Error())
		}
		return
	}

	respondJSON(w, http.StatusCreated, snapshot)
}
