package request

// ClosedTradeRequest represents the request body for reporting a completed
// round trip. PnL fields are optional; they are derived from the prices when
// omitted. Timestamp is optional RFC3339.
type ClosedTradeRequest struct {
	AssetID    string  `json:"assetId"`
	Symbol     string  `json:"symbol,omitempty"`
	EntryPrice float64 `json:"entryPrice"`
	ExitPrice  float64 `json:"exitPrice"`
	Amount     float64 `json:"amount"`
	PnLUSD     float64 `json:"pnlUsd,omitempty"`
	PnLPercent float64 `json:"pnlPercent,omitempty"`
	Timestamp  string  `json:"timestamp,omitempty"`
}
