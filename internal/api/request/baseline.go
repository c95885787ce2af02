package request

// ResetBaselineRequest represents the request body for resetting the PnL
// baseline to the latest snapshot.
type ResetBaselineRequest struct {
	Reason string `json:"reason,omitempty"`
}
