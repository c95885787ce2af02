package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/watchtowerhq/watchtower/internal/api/request"
	"github.com/watchtowerhq/watchtower/internal/apperrors"
	"github.com/watchtowerhq/watchtower/internal/model"
	"github.com/watchtowerhq/watchtower/internal/service"
	"github.com/watchtowerhq/watchtower/internal/validation"
)

// WebhookHandler handles inbound wallet-activity webhooks
type WebhookHandler struct {
	ledger *service.LedgerService
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(ledger *service.LedgerService) *WebhookHandler {
	return &WebhookHandler{ledger: ledger}
}

// TransferResponse reports the classification outcome per event.
type TransferResponse struct {
	Reference string `json:"reference"`
	Result    string `json:"result"`
	Detail    string `json:"detail,omitempty"`
}

// Transfers ingests a batch of raw transfer events. Every event gets an
// individual outcome; a rejected event never fails the batch. Replays are
// reported as duplicate_ignored.
//
// Endpoint: POST /api/webhooks/transfers
func (h *WebhookHandler) Transfers(w http.ResponseWriter, r *http.Request) {
	var events []request.TransferEventRequest
	if err := json.NewDecoder(r.Body).Decode(&events); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if len(events) == 0 {
		respondError(w, http.StatusBadRequest, "empty event batch", "")
		return
	}

	results := make([]TransferResponse, 0, len(events))

	for _, ev := range events {
		outcome := TransferResponse{Reference: ev.ExternalReference}

		if err := validation.ValidateTransferEvent(ev); err != nil {
			outcome.Result = model.FlowRejected.String()
			outcome.Detail = err.Error()
			results = append(results, outcome)
			continue
		}

		result, err := h.ledger.ProcessTransfer(r.Context(), model.TransferEvent{
			From:              ev.From,
			To:                ev.To,
			AssetID:           ev.AssetID,
			Amount:            ev.Amount,
			ExternalReference: ev.ExternalReference,
		})

		outcome.Result = result.String()
		if err != nil && !errors.Is(err, apperrors.ErrUnknownCounterparty) {
			outcome.Detail = err.Error()
		}
		results = append(results, outcome)
	}

	respondJSON(w, http.StatusOK, results)
}
