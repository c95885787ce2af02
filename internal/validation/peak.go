package validation

import (
	"strings"

	"github.com/watchtowerhq/watchtower/internal/api/request"
)

// ValidateCorrectPeak checks a manual peak correction request.
func ValidateCorrectPeak(req request.CorrectPeakRequest) error {
	errors := make(map[string]string)

	if req.Value <= 0 {
		errors["value"] = "value must be positive"
	}

	if strings.TrimSpace(req.Reason) == "" {
		errors["reason"] = "reason is required"
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}
	return nil
}
