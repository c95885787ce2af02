package handlers

import (
	"net/http"
	"strconv"

	"github.com/watchtowerhq/watchtower/internal/repository"
)

const defaultAuditLimit = 100

// AuditHandler handles audit log HTTP requests
type AuditHandler struct {
	audit *repository.AuditRepository
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(audit *repository.AuditRepository) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// List returns the newest audit entries.
//
// Endpoint: GET /api/audit?limit=100
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultAuditLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit parameter", "")
			return
		}
		limit = parsed
	}

	entries, err := h.audit.List(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load audit log", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, entries)
}
