package validation

import (
	"strings"

	"github.com/watchtowerhq/watchtower/internal/api/request"
)

// ValidateTransferEvent checks a wallet-activity webhook entry.
func ValidateTransferEvent(req request.TransferEventRequest) error {
	errors := make(map[string]string)

	if strings.TrimSpace(req.From) == "" && strings.TrimSpace(req.To) == "" {
		errors["from"] = "at least one of from and to is required"
	}

	if strings.TrimSpace(req.AssetID) == "" {
		errors["assetId"] = "assetId is required"
	}

	if req.Amount <= 0 {
		errors["amount"] = "amount must be positive"
	}

	if strings.TrimSpace(req.ExternalReference) == "" {
		errors["externalReference"] = "externalReference is required"
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}
	return nil
}
