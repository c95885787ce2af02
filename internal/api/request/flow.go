package request

// CreateFlowRequest represents the request body for recording a manual
// capital flow. Timestamp is optional RFC3339; it defaults to now.
type CreateFlowRequest struct {
	FlowType          string  `json:"flowType"`
	AmountUSD         float64 `json:"amountUsd"`
	AssetID           string  `json:"assetId,omitempty"`
	AssetAmount       float64 `json:"assetAmount,omitempty"`
	ExternalReference string  `json:"externalReference"`
	Notes             string  `json:"notes,omitempty"`
	Timestamp         string  `json:"timestamp,omitempty"`
}
