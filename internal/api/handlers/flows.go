package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/watchtowerhq/watchtower/internal/api/request"
	"github.com/watchtowerhq/watchtower/internal/model"
	"github.com/watchtowerhq/watchtower/internal/service"
	"github.com/watchtowerhq/watchtower/internal/validation"
)

// FlowHandler handles capital flow HTTP requests
type FlowHandler struct {
	ledger *service.LedgerService
}

// NewFlowHandler creates a new FlowHandler
func NewFlowHandler(ledger *service.LedgerService) *FlowHandler {
	return &FlowHandler{ledger: ledger}
}

// List returns capital flows since the given time, oldest first.
//
// Endpoint: GET /api/flows?since=2026-08-01
// When since is omitted, all flows are returned.
func (h *FlowHandler) List(w http.ResponseWriter, r *http.Request) {
	since := time.Time{}
	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		parsed, err := validation.ParseTime(sinceStr)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid since parameter", err.Error())
			return
		}
		since = parsed
	}

	flows, err := h.ledger.ListSince(r.Context(), since)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load flows", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, flows)
}

// FlowRecordResponse reports how a submitted flow was handled.
type FlowRecordResponse struct {
	Result string            `json:"result"`
	Flow   *model.CapitalFlow `json:"flow,omitempty"`
}

// Create records a manual capital flow. Replays of the same external
// reference return 200 with result "duplicate_ignored" rather than an error.
//
// Endpoint: POST /api/flows
func (h *FlowHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateCreateFlow(req); err != nil {
		respondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	timestamp := time.Now().UTC()
	if req.Timestamp != "" {
		timestamp, _ = validation.ParseTime(req.Timestamp)
	}

	flow := &model.CapitalFlow{
		Timestamp:         timestamp,
		FlowType:          model.FlowType(req.FlowType),
		AmountUSD:         req.AmountUSD,
		AssetID:           req.AssetID,
		AssetAmount:       req.AssetAmount,
		ExternalReference: req.ExternalReference,
		Notes:             req.Notes,
	}

	result, err := h.ledger.RecordManual(r.Context(), flow)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to record flow", err.Error())
		return
	}

	switch result {
	case model.FlowRecorded:
		respondJSON(w, http.StatusCreated, FlowRecordResponse{Result: result.String(), Flow: flow})
	case model.FlowDuplicateIgnored:
		respondJSON(w, http.StatusOK, FlowRecordResponse{Result: result.String()})
	default:
		respondError(w, http.StatusUnprocessableEntity, "flow rejected", result.String())
	}
}
