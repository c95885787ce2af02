package validation

import (
	"strings"

	"github.com/watchtowerhq/watchtower/internal/api/request"
	"github.com/watchtowerhq/watchtower/internal/model"
)

// ValidateCreateFlow checks a manual capital flow request.
// Checks all required fields and validates their formats and constraints.
func ValidateCreateFlow(req request.CreateFlowRequest) error {
	errors := make(map[string]string)

	switch model.FlowType(req.FlowType) {
	case model.FlowDeposit, model.FlowWithdrawal:
	default:
		errors["flowType"] = "flowType must be 'deposit' or 'withdrawal'"
	}

	if req.AmountUSD <= 0 {
		errors["amountUsd"] = "amountUsd must be positive"
	}

	if strings.TrimSpace(req.ExternalReference) == "" {
		errors["externalReference"] = "externalReference is required"
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
