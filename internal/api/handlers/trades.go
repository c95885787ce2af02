package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/watchtowerhq/watchtower/internal/api/request"
	"github.com/watchtowerhq/watchtower/internal/model"
	"github.com/watchtowerhq/watchtower/internal/service"
	"github.com/watchtowerhq/watchtower/internal/validation"
)

const defaultTradeLimit = 50

// TradeHandler handles closed trade HTTP requests
type TradeHandler struct {
	trades *service.TradeService
}

// NewTradeHandler creates a new TradeHandler
func NewTradeHandler(trades *service.TradeService) *TradeHandler {
	return &TradeHandler{trades: trades}
}

// List returns the newest closed trades.
//
// Endpoint: GET /api/trades?limit=50
func (h *TradeHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultTradeLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit parameter", "")
			return
		}
		limit = parsed
	}

	trades, err := h.trades.RecentTrades(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load trades", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, trades)
}

// Streak returns the current win/loss streak and totals.
//
// Endpoint: GET /api/trades/streak
func (h *TradeHandler) Streak(w http.ResponseWriter, r *http.Request) {
	streak, err := h.trades.Streak(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to derive streak", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, streak)
}

// Create records a closed trade reported by the execution side.
//
// Endpoint: POST /api/trades/closed
func (h *TradeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req request.ClosedTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateClosedTrade(req); err != nil {
		respondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	timestamp := time.Now().UTC()
	if req.Timestamp != "" {
		timestamp, _ = validation.ParseTime(req.Timestamp)
	}

	trade := &model.ClosedTrade{
		Timestamp:  timestamp,
		AssetID:    req.AssetID,
		Symbol:     req.Symbol,
		EntryPrice: req.EntryPrice,
		ExitPrice:  req.ExitPrice,
		Amount:     req.Amount,
		PnLUSD:     req.PnLUSD,
		PnLPercent: req.PnLPercent,
	}

	if err := h.trades.RecordClosedTrade(r.Context(), trade); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to record trade", err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, trade)
}
