package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/watchtowerhq/watchtower/internal/api/request"
	"github.com/watchtowerhq/watchtower/internal/apperrors"
	"github.com/watchtowerhq/watchtower/internal/service"
	"github.com/watchtowerhq/watchtower/internal/validation"
)

const defaultPeakHistoryLimit = 50

// PeakHandler handles peak history HTTP requests
type PeakHandler struct {
	peaks *service.PeakService
}

// NewPeakHandler creates a new PeakHandler
func NewPeakHandler(peaks *service.PeakService) *PeakHandler {
	return &PeakHandler{peaks: peaks}
}

// History returns the newest peak records.
//
// Endpoint: GET /api/peak?limit=50
func (h *PeakHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := defaultPeakHistoryLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit parameter", "")
			return
		}
		limit = parsed
	}

	records, err := h.peaks.History(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load peak history", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, records)
}

// Correct writes a manual peak correction.
//
// Endpoint: POST /api/peak/correct
func (h *PeakHandler) Correct(w http.ResponseWriter, r *http.Request) {
	var req request.CorrectPeakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateCorrectPeak(req); err != nil {
		respondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	record, err := h.peaks.CorrectPeak(r.Context(), req.Value, req.Reason)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidPeakValue) {
			respondError(w, http.StatusBadRequest, "invalid peak value", "")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to correct peak", err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, record)
}
