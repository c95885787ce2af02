package validation

import (
	"strings"

	"github.com/watchtowerhq/watchtower/internal/api/request"
)

// ValidateClosedTrade checks a closed trade report.
func ValidateClosedTrade(req request.ClosedTradeRequest) error {
	errors := make(map[string]string)

	if strings.TrimSpace(req.AssetID) == "" {
		errors["assetId"] = "assetId is required"
	}

	if req.Amount <= 0 {
		errors["amount"] = "amount must be positive"
	}

	if req.EntryPrice < 0 || req.ExitPrice < 0 {
		errors["prices"] = "prices cannot be negative"
	}

	// Without an entry price the PnL cannot be derived, so it must be reported
	if req.EntryPrice == 0 && req.PnLUSD == 0 {
		errors["pnlUsd"] = "pnlUsd is required when entryPrice is omitted"
	}

	if req.Timestamp != "" {
		if _, err := ParseTime(req.Timestamp); err != nil {
			errors["timestamp"] = "timestamp must be RFC3339 or YYYY-MM-DD"
		}
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}
	return nil
}
