package request

// TransferEventRequest represents one entry from the external
// wallet-activity feed.
type TransferEventRequest struct {
	From              string  `json:"from"`
	To                string  `json:"to"`
	AssetID           string  `json:"assetId"`
	Amount            float64 `json:"amount"`
	ExternalReference string  `json:"externalReference"`
}
