package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/watchtowerhq/watchtower/internal/api/request"
	"github.com/watchtowerhq/watchtower/internal/apperrors"
	"github.com/watchtowerhq/watchtower/internal/service"
)

// BaselineHandler handles PnL baseline HTTP requests
type BaselineHandler struct {
	pnl *service.PnLService
}

// NewBaselineHandler creates a new BaselineHandler
func NewBaselineHandler(pnl *service.PnLService) *BaselineHandler {
	return &BaselineHandler{pnl: pnl}
}

// Reset pins the PnL baseline to the latest snapshot. The body is optional.
//
// Endpoint: POST /api/baseline/reset
func (h *BaselineHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req request.ResetBaselineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	marker, err := h.pnl.ResetBaseline(r.Context(), req.Reason)
	if err != nil {
		if errors.Is(err, apperrors.ErrNoSnapshot) {
			respondError(w, http.StatusConflict, "no snapshot to baseline against", "")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to reset baseline", err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, marker)
}
