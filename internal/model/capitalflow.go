package model

import "time"

// FlowType distinguishes money moving into the tracked account from money
// moving out of it.
type FlowType string

const (
	FlowDeposit    FlowType = "deposit"
	FlowWithdrawal FlowType = "withdrawal"
)

// CapitalFlow is an external deposit or withdrawal, immutable once recorded.
// ExternalReference is the idempotency key (typically the on-chain
// transaction signature); the ledger guarantees a given reference is
// recorded at most once.
type CapitalFlow struct {
	ID                string    `json:"id"`
	Timestamp         time.Time `json:"timestamp"`
	FlowType          FlowType  `json:"flowType"`
	AmountUSD         float64   `json:"amountUsd"`
	AssetID           string    `json:"assetId"`
	AssetAmount       float64   `json:"assetAmount"`
	ExternalReference string    `json:"externalReference"`
	Notes             string    `json:"notes,omitempty"`
}

// FlowRecordResult is the typed outcome of recording a capital flow.
type FlowRecordResult int

const (
	// FlowRecorded means the flow was appended to the ledger.
	FlowRecorded FlowRecordResult = iota
	// FlowDuplicateIgnored means a flow with the same external reference
	// already exists; nothing was written. Not an error.
	FlowDuplicateIgnored
	// FlowRejected means the event could not be classified as a flow into
	// or out of the tracked account (unknown counterparty, unpriceable
	// asset, zero amount) and was discarded.
	FlowRejected
)

func (r FlowRecordResult) String() string {
	switch r {
	case FlowRecorded:
		return "recorded"
	case FlowDuplicateIgnored:
		return "duplicate_ignored"
	case FlowRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// TransferEvent is a raw entry from the external wallet-activity feed. The
// ledger classifies each event against the tracked account and discards the
// rest.
type TransferEvent struct {
	From              string  `json:"from"`
	To                string  `json:"to"`
	AssetID           string  `json:"assetId"`
	Amount            float64 `json:"amount"`
	ExternalReference string  `json:"externalReference"`
}
